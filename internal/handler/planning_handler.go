package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/careercompass/internal/middleware"
	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/planning"
)

// PlanningServiceInterface は目標・タスクハンドラーが必要とするサービスインターフェース。
type PlanningServiceInterface interface {
	CreateGoal(ctx context.Context, userID string, input planning.GoalInput) (*model.Goal, error)
	ListGoals(ctx context.Context, userID string) ([]*model.Goal, error)
	UpdateGoalStatus(ctx context.Context, userID, goalID string, status model.GoalStatus) (*model.Goal, error)
	DeleteGoal(ctx context.Context, userID, goalID string) error
	CreateTask(ctx context.Context, userID string, input planning.TaskInput) (*model.Task, error)
	UpdateTaskStatus(ctx context.Context, userID, taskID string, status model.TaskStatus) (*model.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
}

// PlanningHandler はキャリア目標・タスク関連のHTTPハンドラー。
type PlanningHandler struct {
	service PlanningServiceInterface
}

// NewPlanningHandler はPlanningHandlerを生成する。
func NewPlanningHandler(service PlanningServiceInterface) *PlanningHandler {
	return &PlanningHandler{
		service: service,
	}
}

// goalRequest は目標作成リクエストのボディ。
type goalRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
}

// goalStatusRequest は目標状態更新リクエストのボディ。
type goalStatusRequest struct {
	Status string `json:"status"`
}

// goalResponse は目標のAPIレスポンス。
type goalResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// taskRequest はタスク作成リクエストのボディ。
type taskRequest struct {
	GoalID  string     `json:"goal_id,omitempty"`
	Title   string     `json:"title"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// taskStatusRequest はタスク状態更新リクエストのボディ。
type taskStatusRequest struct {
	Status string `json:"status"`
}

// taskResponse はタスクのAPIレスポンス。
type taskResponse struct {
	ID        string     `json:"id"`
	GoalID    string     `json:"goal_id,omitempty"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreateGoal は目標を作成する。
// POST /api/goals
func (h *PlanningHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	goal, err := h.service.CreateGoal(r.Context(), userID, planning.GoalInput{
		Title:       req.Title,
		Description: req.Description,
		TargetDate:  req.TargetDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGoalResponse(goal))
}

// ListGoals は目標一覧を返す。
// GET /api/goals
func (h *PlanningHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	goals, err := h.service.ListGoals(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]goalResponse, len(goals))
	for i, g := range goals {
		results[i] = toGoalResponse(g)
	}
	writeJSON(w, http.StatusOK, results)
}

// UpdateGoal は目標の状態を更新する。
// PATCH /api/goals/{id}
func (h *PlanningHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	goalID := chi.URLParam(r, "id")

	var req goalStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	goal, err := h.service.UpdateGoalStatus(r.Context(), userID, goalID, model.GoalStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

// DeleteGoal は目標を削除する。
// DELETE /api/goals/{id}
func (h *PlanningHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteGoal(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateTask はタスクを作成する。
// POST /api/tasks
func (h *PlanningHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	task, err := h.service.CreateTask(r.Context(), userID, planning.TaskInput{
		GoalID:  req.GoalID,
		Title:   req.Title,
		DueDate: req.DueDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

// UpdateTask はタスクの状態を更新する。
// PATCH /api/tasks/{id}
func (h *PlanningHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	taskID := chi.URLParam(r, "id")

	var req taskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	task, err := h.service.UpdateTaskStatus(r.Context(), userID, taskID, model.TaskStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *PlanningHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteTask(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toGoalResponse はmodel.GoalからAPIレスポンスに変換する。
func toGoalResponse(g *model.Goal) goalResponse {
	return goalResponse{
		ID:          g.ID,
		Title:       g.Title,
		Description: g.Description,
		Status:      string(g.Status),
		TargetDate:  g.TargetDate,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// toTaskResponse はmodel.TaskからAPIレスポンスに変換する。
func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:        t.ID,
		GoalID:    t.GoalID,
		Title:     t.Title,
		Status:    string(t.Status),
		DueDate:   t.DueDate,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
