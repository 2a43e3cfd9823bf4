// Package planning はキャリア目標とタスクの管理を提供する。
package planning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/repository"
	"github.com/hitoshi/careercompass/internal/security"
)

// GoalInput は目標作成の入力を表す。
type GoalInput struct {
	Title       string
	Description string
	TargetDate  *time.Time
}

// TaskInput はタスク作成の入力を表す。
type TaskInput struct {
	GoalID  string
	Title   string
	DueDate *time.Time
}

// Service は目標・タスク管理のサービス層。
// 目標・タスクの完了時には活動記録を残すが、記録の失敗はログのみ残し、
// 主処理には伝播させない。
type Service struct {
	goalRepo     repository.GoalRepository
	taskRepo     repository.TaskRepository
	activityRepo repository.ActivityLogRepository
	sanitizer    security.ContentSanitizerService
	logger       *slog.Logger
	now          func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	goalRepo repository.GoalRepository,
	taskRepo repository.TaskRepository,
	activityRepo repository.ActivityLogRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
) *Service {
	return &Service{
		goalRepo:     goalRepo,
		taskRepo:     taskRepo,
		activityRepo: activityRepo,
		sanitizer:    sanitizer,
		logger:       logger,
		now:          time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

// CreateGoal は目標を作成する。タイトルは必須。
func (s *Service) CreateGoal(ctx context.Context, userID string, input GoalInput) (*model.Goal, error) {
	title := s.sanitizer.SanitizePlain(input.Title)
	if title == "" {
		return nil, model.NewInvalidRequestError()
	}

	now := s.now()
	goal := &model.Goal{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: s.sanitizer.SanitizePlain(input.Description),
		Status:      model.GoalStatusActive,
		TargetDate:  input.TargetDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.goalRepo.Create(ctx, goal); err != nil {
		return nil, fmt.Errorf("目標の作成に失敗しました: %w", err)
	}
	return goal, nil
}

// ListGoals はユーザーの目標一覧を作成日時降順で返す。
func (s *Service) ListGoals(ctx context.Context, userID string) ([]*model.Goal, error) {
	goals, err := s.goalRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("目標一覧の取得に失敗しました: %w", err)
	}
	return goals, nil
}

// UpdateGoalStatus は目標の状態を更新する。
// completedへの遷移時は活動記録をベストエフォートで残す。
func (s *Service) UpdateGoalStatus(ctx context.Context, userID, goalID string, status model.GoalStatus) (*model.Goal, error) {
	if !model.ValidGoalStatus(status) {
		return nil, model.NewInvalidRequestError()
	}

	goal, err := s.goalRepo.FindForUser(ctx, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("目標の取得に失敗しました: %w", err)
	}
	if goal == nil {
		return nil, model.NewGoalNotFoundError(goalID)
	}

	if err := s.goalRepo.UpdateStatus(ctx, userID, goalID, status); err != nil {
		return nil, fmt.Errorf("目標状態の更新に失敗しました: %w", err)
	}

	if status == model.GoalStatusCompleted && goal.Status != model.GoalStatusCompleted {
		s.logActivity(ctx, userID, "goal_completed", goal.Title)
	}

	goal.Status = status
	goal.UpdatedAt = s.now()
	return goal, nil
}

// DeleteGoal は目標を削除する。
func (s *Service) DeleteGoal(ctx context.Context, userID, goalID string) error {
	goal, err := s.goalRepo.FindForUser(ctx, userID, goalID)
	if err != nil {
		return fmt.Errorf("目標の取得に失敗しました: %w", err)
	}
	if goal == nil {
		return model.NewGoalNotFoundError(goalID)
	}

	if err := s.goalRepo.Delete(ctx, userID, goalID); err != nil {
		return fmt.Errorf("目標の削除に失敗しました: %w", err)
	}
	return nil
}

// CreateTask はタスクを作成する。タイトルは必須、目標への紐付けは任意。
func (s *Service) CreateTask(ctx context.Context, userID string, input TaskInput) (*model.Task, error) {
	title := s.sanitizer.SanitizePlain(input.Title)
	if title == "" {
		return nil, model.NewInvalidRequestError()
	}

	// 紐付け先の目標が指定された場合は所有権を確認する
	if input.GoalID != "" {
		goal, err := s.goalRepo.FindForUser(ctx, userID, input.GoalID)
		if err != nil {
			return nil, fmt.Errorf("目標の取得に失敗しました: %w", err)
		}
		if goal == nil {
			return nil, model.NewGoalNotFoundError(input.GoalID)
		}
	}

	now := s.now()
	task := &model.Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		GoalID:    input.GoalID,
		Title:     title,
		Status:    model.TaskStatusPending,
		DueDate:   input.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return task, nil
}

// UpdateTaskStatus はタスクの状態を更新する。
// completedへの遷移時は活動記録をベストエフォートで残す。
func (s *Service) UpdateTaskStatus(ctx context.Context, userID, taskID string, status model.TaskStatus) (*model.Task, error) {
	if !model.ValidTaskStatus(status) {
		return nil, model.NewInvalidRequestError()
	}

	task, err := s.taskRepo.FindForUser(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	if err := s.taskRepo.UpdateStatus(ctx, userID, taskID, status); err != nil {
		return nil, fmt.Errorf("タスク状態の更新に失敗しました: %w", err)
	}

	if status == model.TaskStatusCompleted && task.Status != model.TaskStatusCompleted {
		s.logActivity(ctx, userID, "task_completed", task.Title)
	}

	task.Status = status
	task.UpdatedAt = s.now()
	return task, nil
}

// DeleteTask はタスクを削除する。
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	task, err := s.taskRepo.FindForUser(ctx, userID, taskID)
	if err != nil {
		return fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return model.NewTaskNotFoundError(taskID)
	}

	if err := s.taskRepo.Delete(ctx, userID, taskID); err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	return nil
}

// logActivity は活動記録をベストエフォートで残す。失敗はログのみ。
func (s *Service) logActivity(ctx context.Context, userID, action, detail string) {
	entry := &model.ActivityLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Detail:    detail,
		CreatedAt: s.now(),
	}
	if err := s.activityRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("activity log insert failed",
			"user_id", userID, "action", action, "error", err)
	}
}
