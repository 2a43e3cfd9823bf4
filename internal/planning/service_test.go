package planning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/repository"
	"github.com/hitoshi/careercompass/internal/security"
)

// --- モック定義 ---

type mockGoalRepo struct {
	createFn       func(ctx context.Context, goal *model.Goal) error
	listByUserFn   func(ctx context.Context, userID string) ([]*model.Goal, error)
	findForUserFn  func(ctx context.Context, userID, goalID string) (*model.Goal, error)
	updateStatusFn func(ctx context.Context, userID, goalID string, status model.GoalStatus) error
	deleteFn       func(ctx context.Context, userID, goalID string) error
}

func (m *mockGoalRepo) Create(ctx context.Context, goal *model.Goal) error {
	if m.createFn != nil {
		return m.createFn(ctx, goal)
	}
	return nil
}

func (m *mockGoalRepo) ListByUser(ctx context.Context, userID string) ([]*model.Goal, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockGoalRepo) FindForUser(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	if m.findForUserFn != nil {
		return m.findForUserFn(ctx, userID, goalID)
	}
	return nil, nil
}

func (m *mockGoalRepo) UpdateStatus(ctx context.Context, userID, goalID string, status model.GoalStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, userID, goalID, status)
	}
	return nil
}

func (m *mockGoalRepo) Delete(ctx context.Context, userID, goalID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, goalID)
	}
	return nil
}

type mockTaskRepo struct {
	createFn       func(ctx context.Context, task *model.Task) error
	findForUserFn  func(ctx context.Context, userID, taskID string) (*model.Task, error)
	updateStatusFn func(ctx context.Context, userID, taskID string, status model.TaskStatus) error
	deleteFn       func(ctx context.Context, userID, taskID string) error
}

func (m *mockTaskRepo) Create(ctx context.Context, task *model.Task) error {
	if m.createFn != nil {
		return m.createFn(ctx, task)
	}
	return nil
}

func (m *mockTaskRepo) FindForUser(ctx context.Context, userID, taskID string) (*model.Task, error) {
	if m.findForUserFn != nil {
		return m.findForUserFn(ctx, userID, taskID)
	}
	return nil, nil
}

func (m *mockTaskRepo) UpdateStatus(ctx context.Context, userID, taskID string, status model.TaskStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, userID, taskID, status)
	}
	return nil
}

func (m *mockTaskRepo) Delete(ctx context.Context, userID, taskID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, taskID)
	}
	return nil
}

type mockActivityRepo struct {
	createFn func(ctx context.Context, entry *model.ActivityLog) error
	entries  []*model.ActivityLog
}

func (m *mockActivityRepo) Create(ctx context.Context, entry *model.ActivityLog) error {
	if m.createFn != nil {
		return m.createFn(ctx, entry)
	}
	m.entries = append(m.entries, entry)
	return nil
}

var (
	_ repository.GoalRepository        = (*mockGoalRepo)(nil)
	_ repository.TaskRepository        = (*mockTaskRepo)(nil)
	_ repository.ActivityLogRepository = (*mockActivityRepo)(nil)
)

func newTestService(goals *mockGoalRepo, tasks *mockTaskRepo, activity *mockActivityRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(goals, tasks, activity, security.NewContentSanitizer(), logger)
}

// --- 目標のテスト ---

func TestCreateGoal_Success(t *testing.T) {
	var created *model.Goal
	goals := &mockGoalRepo{
		createFn: func(ctx context.Context, goal *model.Goal) error {
			created = goal
			return nil
		},
	}
	target := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	svc := newTestService(goals, &mockTaskRepo{}, &mockActivityRepo{})

	got, err := svc.CreateGoal(context.Background(), "user-1", GoalInput{
		Title:       "マネジメント経験を積む",
		Description: "半年以内にリーダー役を担当する",
		TargetDate:  &target,
	})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	if created == nil {
		t.Fatal("expected goal to be created")
	}
	if got.Status != model.GoalStatusActive {
		t.Errorf("status = %q, want %q", got.Status, model.GoalStatusActive)
	}
	if got.TargetDate == nil || !got.TargetDate.Equal(target) {
		t.Errorf("targetDate = %v, want %v", got.TargetDate, target)
	}
}

func TestCreateGoal_EmptyTitle_Rejected(t *testing.T) {
	svc := newTestService(&mockGoalRepo{}, &mockTaskRepo{}, &mockActivityRepo{})

	tests := []struct {
		name  string
		title string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"tags only", "<script></script>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateGoal(context.Background(), "user-1", GoalInput{Title: tt.title})
			if err == nil {
				t.Fatal("expected error for empty title")
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.Code != model.ErrCodeInvalidRequest {
				t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidRequest)
			}
		})
	}
}

func TestUpdateGoalStatus_CompletionLogsActivity(t *testing.T) {
	goals := &mockGoalRepo{
		findForUserFn: func(ctx context.Context, userID, goalID string) (*model.Goal, error) {
			return &model.Goal{ID: goalID, UserID: userID, Title: "目標A", Status: model.GoalStatusActive}, nil
		},
	}
	activity := &mockActivityRepo{}

	svc := newTestService(goals, &mockTaskRepo{}, activity)

	got, err := svc.UpdateGoalStatus(context.Background(), "user-1", "g-1", model.GoalStatusCompleted)
	if err != nil {
		t.Fatalf("UpdateGoalStatus() error = %v", err)
	}

	if got.Status != model.GoalStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.GoalStatusCompleted)
	}
	if len(activity.entries) != 1 {
		t.Fatalf("activity entries = %d, want 1", len(activity.entries))
	}
	if activity.entries[0].Action != "goal_completed" {
		t.Errorf("action = %q, want %q", activity.entries[0].Action, "goal_completed")
	}
	if activity.entries[0].Detail != "目標A" {
		t.Errorf("detail = %q, want %q", activity.entries[0].Detail, "目標A")
	}
}

func TestUpdateGoalStatus_AlreadyCompleted_NoDuplicateActivity(t *testing.T) {
	goals := &mockGoalRepo{
		findForUserFn: func(ctx context.Context, userID, goalID string) (*model.Goal, error) {
			return &model.Goal{ID: goalID, UserID: userID, Status: model.GoalStatusCompleted}, nil
		},
	}
	activity := &mockActivityRepo{}

	svc := newTestService(goals, &mockTaskRepo{}, activity)

	if _, err := svc.UpdateGoalStatus(context.Background(), "user-1", "g-1", model.GoalStatusCompleted); err != nil {
		t.Fatalf("UpdateGoalStatus() error = %v", err)
	}
	if len(activity.entries) != 0 {
		t.Errorf("activity entries = %d, want 0 for repeated completion", len(activity.entries))
	}
}

func TestUpdateGoalStatus_ActivityLogFailure_NotFatal(t *testing.T) {
	goals := &mockGoalRepo{
		findForUserFn: func(ctx context.Context, userID, goalID string) (*model.Goal, error) {
			return &model.Goal{ID: goalID, UserID: userID, Status: model.GoalStatusActive}, nil
		},
	}
	activity := &mockActivityRepo{
		createFn: func(ctx context.Context, entry *model.ActivityLog) error {
			return errors.New("db down")
		},
	}

	svc := newTestService(goals, &mockTaskRepo{}, activity)

	// 活動記録はベストエフォートであり、失敗しても状態更新は成功する
	if _, err := svc.UpdateGoalStatus(context.Background(), "user-1", "g-1", model.GoalStatusCompleted); err != nil {
		t.Fatalf("activity log failure should not propagate, got: %v", err)
	}
}

func TestUpdateGoalStatus_InvalidStatus(t *testing.T) {
	svc := newTestService(&mockGoalRepo{}, &mockTaskRepo{}, &mockActivityRepo{})

	if _, err := svc.UpdateGoalStatus(context.Background(), "user-1", "g-1", model.GoalStatus("archived")); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestUpdateGoalStatus_NotFound(t *testing.T) {
	svc := newTestService(&mockGoalRepo{}, &mockTaskRepo{}, &mockActivityRepo{})

	_, err := svc.UpdateGoalStatus(context.Background(), "user-1", "missing", model.GoalStatusPaused)
	if err == nil {
		t.Fatal("expected error for unknown goal")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeGoalNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeGoalNotFound)
	}
}

func TestDeleteGoal_NotFound(t *testing.T) {
	deleteCalled := false
	goals := &mockGoalRepo{
		deleteFn: func(ctx context.Context, userID, goalID string) error {
			deleteCalled = true
			return nil
		},
	}

	svc := newTestService(goals, &mockTaskRepo{}, &mockActivityRepo{})

	if err := svc.DeleteGoal(context.Background(), "user-1", "missing"); err == nil {
		t.Fatal("expected error for unknown goal")
	}
	if deleteCalled {
		t.Error("delete must not run for unknown goal")
	}
}

// --- タスクのテスト ---

func TestCreateTask_WithoutGoal(t *testing.T) {
	var created *model.Task
	tasks := &mockTaskRepo{
		createFn: func(ctx context.Context, task *model.Task) error {
			created = task
			return nil
		},
	}

	svc := newTestService(&mockGoalRepo{}, tasks, &mockActivityRepo{})

	got, err := svc.CreateTask(context.Background(), "user-1", TaskInput{Title: "職務経歴書を更新する"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if created == nil {
		t.Fatal("expected task to be created")
	}
	if got.Status != model.TaskStatusPending {
		t.Errorf("status = %q, want %q", got.Status, model.TaskStatusPending)
	}
	if got.GoalID != "" {
		t.Errorf("goalID = %q, want empty", got.GoalID)
	}
}

func TestCreateTask_LinkedGoalMustBelongToUser(t *testing.T) {
	createCalled := false
	tasks := &mockTaskRepo{
		createFn: func(ctx context.Context, task *model.Task) error {
			createCalled = true
			return nil
		},
	}

	// 他ユーザーの目標はFindForUserでnilになる
	svc := newTestService(&mockGoalRepo{}, tasks, &mockActivityRepo{})

	_, err := svc.CreateTask(context.Background(), "user-1", TaskInput{
		GoalID: "someone-elses-goal",
		Title:  "タスク",
	})
	if err == nil {
		t.Fatal("expected error when linked goal is not owned by the user")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeGoalNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeGoalNotFound)
	}
	if createCalled {
		t.Error("task must not be created when goal ownership check fails")
	}
}

func TestCreateTask_LinkedGoal_Succeeds(t *testing.T) {
	goals := &mockGoalRepo{
		findForUserFn: func(ctx context.Context, userID, goalID string) (*model.Goal, error) {
			return &model.Goal{ID: goalID, UserID: userID}, nil
		},
	}
	var created *model.Task
	tasks := &mockTaskRepo{
		createFn: func(ctx context.Context, task *model.Task) error {
			created = task
			return nil
		},
	}

	svc := newTestService(goals, tasks, &mockActivityRepo{})

	if _, err := svc.CreateTask(context.Background(), "user-1", TaskInput{GoalID: "g-1", Title: "タスク"}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if created.GoalID != "g-1" {
		t.Errorf("goalID = %q, want %q", created.GoalID, "g-1")
	}
}

func TestUpdateTaskStatus_CompletionLogsActivity(t *testing.T) {
	tasks := &mockTaskRepo{
		findForUserFn: func(ctx context.Context, userID, taskID string) (*model.Task, error) {
			return &model.Task{ID: taskID, UserID: userID, Title: "タスクB", Status: model.TaskStatusInProgress}, nil
		},
	}
	activity := &mockActivityRepo{}

	svc := newTestService(&mockGoalRepo{}, tasks, activity)

	got, err := svc.UpdateTaskStatus(context.Background(), "user-1", "t-1", model.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}

	if got.Status != model.TaskStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.TaskStatusCompleted)
	}
	if len(activity.entries) != 1 || activity.entries[0].Action != "task_completed" {
		t.Errorf("activity entries = %v, want one task_completed entry", activity.entries)
	}
}

func TestUpdateTaskStatus_NotFound(t *testing.T) {
	svc := newTestService(&mockGoalRepo{}, &mockTaskRepo{}, &mockActivityRepo{})

	_, err := svc.UpdateTaskStatus(context.Background(), "user-1", "missing", model.TaskStatusCompleted)
	if err == nil {
		t.Fatal("expected error for unknown task")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeTaskNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeTaskNotFound)
	}
}

func TestDeleteTask_Success(t *testing.T) {
	deleted := false
	tasks := &mockTaskRepo{
		findForUserFn: func(ctx context.Context, userID, taskID string) (*model.Task, error) {
			return &model.Task{ID: taskID, UserID: userID}, nil
		},
		deleteFn: func(ctx context.Context, userID, taskID string) error {
			deleted = true
			return nil
		},
	}

	svc := newTestService(&mockGoalRepo{}, tasks, &mockActivityRepo{})

	if err := svc.DeleteTask(context.Background(), "user-1", "t-1"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if !deleted {
		t.Error("expected delete to run")
	}
}
