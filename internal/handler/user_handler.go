package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/careercompass/internal/middleware"
	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetProfile はプロフィールを取得する。
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	// UpdateProfile は表示名とオンボーディング完了フラグを更新する。
	UpdateProfile(ctx context.Context, userID string, input user.ProfileUpdateInput) (*model.Profile, error)
	// SubmitContact はお問い合わせを受け付ける。
	SubmitContact(ctx context.Context, userID string, input user.ContactInput) error
}

// UserHandler はプロフィール・お問い合わせのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	SubscriptionStatus  string    `json:"subscription_status"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
}

// profileUpdateRequest はプロフィール更新リクエストのボディ。
type profileUpdateRequest struct {
	Name                string `json:"name"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

// contactRequest はお問い合わせリクエストのボディ。
type contactRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// GetMe は現在のユーザーのプロフィールを取得する。
// GET /api/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// UpdateMe はプロフィールを更新する。
// PATCH /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, user.ProfileUpdateInput{
		Name:                req.Name,
		OnboardingCompleted: req.OnboardingCompleted,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// SubmitContact はお問い合わせを受け付ける。
// POST /api/contact
func (h *UserHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.SubmitContact(r.Context(), userID, user.ContactInput{
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "accepted"})
}

// toProfileResponse はmodel.ProfileからAPIレスポンスに変換する。
func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:                  p.ID,
		Email:               p.Email,
		Name:                p.Name,
		SubscriptionStatus:  string(p.SubscriptionStatus),
		OnboardingCompleted: p.OnboardingCompleted,
		CreatedAt:           p.CreatedAt,
	}
}
