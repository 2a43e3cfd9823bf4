package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/careercompass/internal/middleware"
	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/referral"
)

// ReferralServiceInterface は紹介ハンドラーが必要とするサービスインターフェース。
type ReferralServiceInterface interface {
	// CanCreateCode はコード発行資格を判定する。
	CanCreateCode(ctx context.Context, userID string) (bool, error)
	// CreateCode は新しい紹介コードを発行する。
	CreateCode(ctx context.Context, userID string) (*model.Referral, error)
	// Validate は紹介コードを検証する。
	Validate(ctx context.Context, code, userID string) (*referral.ValidationResult, error)
	// Apply は有効な紹介コードを適用し、双方に報酬を付与する。
	Apply(ctx context.Context, code, userID string) error
	// Stats は紹介者の実績サマリを返す。
	Stats(ctx context.Context, userID string) (*referral.Stats, error)
}

// ReferralHandler は紹介プログラム関連のHTTPハンドラー。
// コード発行の資格判定はサービスではなくこのルート層で強制する。
type ReferralHandler struct {
	service ReferralServiceInterface
}

// NewReferralHandler はReferralHandlerを生成する。
func NewReferralHandler(service ReferralServiceInterface) *ReferralHandler {
	return &ReferralHandler{
		service: service,
	}
}

// referralResponse は紹介コードのAPIレスポンス。
type referralResponse struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Status      string     `json:"status"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// referralStatsResponse は紹介実績サマリのAPIレスポンス。
type referralStatsResponse struct {
	TotalCodes     int                `json:"total_codes"`
	CompletedCount int                `json:"completed_count"`
	PendingCode    *referralResponse  `json:"pending_code,omitempty"`
	History        []referralResponse `json:"history"`
}

// referralCodeRequest はコード検証・適用リクエストのボディ。
type referralCodeRequest struct {
	Code string `json:"code"`
}

// CreateCode は紹介コードを発行する。
// 有料プラン契約かつ分析実行1回以上のユーザーのみ発行できる。
// POST /api/referrals
func (h *ReferralHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	eligible, err := h.service.CanCreateCode(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !eligible {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewReferralNotEligibleError())
		return
	}

	created, err := h.service.CreateCode(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReferralResponse(created))
}

// GetStats は紹介実績サマリを返す。
// GET /api/referrals
func (h *ReferralHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := referralStatsResponse{
		TotalCodes:     stats.TotalCodes,
		CompletedCount: stats.CompletedCount,
		History:        make([]referralResponse, len(stats.History)),
	}
	for i, ref := range stats.History {
		resp.History[i] = toReferralResponse(ref)
	}
	if stats.PendingCode != nil {
		pending := toReferralResponse(stats.PendingCode)
		resp.PendingCode = &pending
	}

	writeJSON(w, http.StatusOK, resp)
}

// ValidateCode は紹介コードを検証する。検証は状態を変更しない。
// POST /api/referrals/validate
func (h *ReferralHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req referralCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	result, err := h.service.Validate(r.Context(), req.Code, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := map[string]any{"is_valid": result.IsValid}
	if result.Reason != "" {
		resp["reason"] = result.Reason
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApplyCode は紹介コードを適用し、紹介者・被紹介者の双方に報酬を付与する。
// POST /api/referrals/apply
func (h *ReferralHandler) ApplyCode(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req referralCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.Apply(r.Context(), req.Code, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// toReferralResponse はmodel.ReferralからAPIレスポンスに変換する。
func toReferralResponse(ref *model.Referral) referralResponse {
	return referralResponse{
		ID:          ref.ID,
		Code:        ref.Code,
		Status:      string(ref.Status),
		ExpiresAt:   ref.ExpiresAt,
		CreatedAt:   ref.CreatedAt,
		CompletedAt: ref.CompletedAt,
	}
}
