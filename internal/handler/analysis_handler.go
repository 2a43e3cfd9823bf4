package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/careercompass/internal/analysis"
	"github.com/hitoshi/careercompass/internal/entitlement"
	"github.com/hitoshi/careercompass/internal/middleware"
	"github.com/hitoshi/careercompass/internal/model"
)

// EntitlementServiceInterface は資格判定ハンドラーが必要とするサービスインターフェース。
type EntitlementServiceInterface interface {
	// CheckAnalysisEligibility は指定種別の分析実行が許可されるかを判定する。
	CheckAnalysisEligibility(ctx context.Context, userID string, analysisType model.AnalysisType) (*entitlement.Eligibility, error)
}

// AnalysisServiceInterface は分析ハンドラーが必要とするサービスインターフェース。
type AnalysisServiceInterface interface {
	// Save は保存資格を確認した上で分析結果を保存する。
	Save(ctx context.Context, userID string, input analysis.SaveInput) (*model.Analysis, error)
	// List はユーザーの分析一覧を返す。
	List(ctx context.Context, userID string) ([]*model.Analysis, error)
	// Get は分析結果を取得する。
	Get(ctx context.Context, userID, analysisID string) (*model.Analysis, error)
	// SetFavorite はお気に入りフラグを更新する。
	SetFavorite(ctx context.Context, userID, analysisID string, favorite bool) error
	// Delete は分析結果を削除する。
	Delete(ctx context.Context, userID, analysisID string) error
}

// AnalysisHandler はAI分析関連のHTTPハンドラー。
type AnalysisHandler struct {
	entitlements EntitlementServiceInterface
	service      AnalysisServiceInterface
}

// NewAnalysisHandler はAnalysisHandlerを生成する。
func NewAnalysisHandler(entitlements EntitlementServiceInterface, service AnalysisServiceInterface) *AnalysisHandler {
	return &AnalysisHandler{
		entitlements: entitlements,
		service:      service,
	}
}

// eligibilityRequest は資格判定リクエストのボディ。
type eligibilityRequest struct {
	AnalysisType string `json:"analysis_type"`
}

// usageInfoResponse は利用状況のAPIレスポンス。
type usageInfoResponse struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// eligibilityResponse は資格判定結果のAPIレスポンス。
// 拒否時はアップセル表示用に利用状況とチケット単価を含む。
type eligibilityResponse struct {
	CanAnalyze      bool               `json:"can_analyze"`
	ViaTicket       bool               `json:"via_ticket"`
	Reason          string             `json:"reason,omitempty"`
	Usage           *usageInfoResponse `json:"usage,omitempty"`
	TicketUnitPrice int64              `json:"ticket_unit_price,omitempty"`
}

// saveAnalysisRequest は分析結果保存リクエストのボディ。
type saveAnalysisRequest struct {
	AnalysisType string   `json:"analysis_type"`
	InputText    string   `json:"input_text"`
	ResultText   string   `json:"result_text"`
	Title        string   `json:"title"`
	Tags         []string `json:"tags"`
}

// analysisResponse は分析結果のAPIレスポンス。
type analysisResponse struct {
	ID           string    `json:"id"`
	AnalysisType string    `json:"analysis_type"`
	InputText    string    `json:"input_text,omitempty"`
	ResultText   string    `json:"result_text,omitempty"`
	Title        string    `json:"title"`
	Tags         []string  `json:"tags"`
	IsFavorite   bool      `json:"is_favorite"`
	ViaTicket    bool      `json:"via_ticket"`
	CreatedAt    time.Time `json:"created_at"`
}

// favoriteRequest はお気に入り更新リクエストのボディ。
type favoriteRequest struct {
	IsFavorite bool `json:"is_favorite"`
}

// CheckEligibility は分析実行の資格判定を行う。読み取り専用で利用回数は変更しない。
// POST /api/analysis/eligibility
func (h *AnalysisHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req eligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	eligibility, err := h.entitlements.CheckAnalysisEligibility(r.Context(), userID, model.AnalysisType(req.AnalysisType))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := eligibilityResponse{
		CanAnalyze:      eligibility.CanAnalyze,
		ViaTicket:       eligibility.ViaTicket,
		Reason:          eligibility.Reason,
		TicketUnitPrice: eligibility.TicketUnitPrice,
	}
	if eligibility.Usage != nil {
		resp.Usage = &usageInfoResponse{
			Used:  eligibility.Usage.Used,
			Limit: eligibility.Usage.Limit,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Save は分析結果を保存する。
// POST /api/analysis/save
func (h *AnalysisHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req saveAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	result, err := h.service.Save(r.Context(), userID, analysis.SaveInput{
		AnalysisType: model.AnalysisType(req.AnalysisType),
		InputText:    req.InputText,
		ResultText:   req.ResultText,
		Title:        req.Title,
		Tags:         req.Tags,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAnalysisResponse(result, true))
}

// List はユーザーの分析一覧を取得する。
// 一覧のレスポンスには本文を含めない。
// GET /api/analysis
func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	analyses, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]analysisResponse, len(analyses))
	for i, a := range analyses {
		results[i] = toAnalysisResponse(a, false)
	}

	writeJSON(w, http.StatusOK, results)
}

// Get は分析結果の詳細を取得する。
// GET /api/analysis/{id}
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	analysisID := chi.URLParam(r, "id")

	result, err := h.service.Get(r.Context(), userID, analysisID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAnalysisResponse(result, true))
}

// SetFavorite はお気に入りフラグを更新する。
// PUT /api/analysis/{id}/favorite
func (h *AnalysisHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	analysisID := chi.URLParam(r, "id")

	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.SetFavorite(r.Context(), userID, analysisID, req.IsFavorite); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"is_favorite": req.IsFavorite})
}

// Delete は分析結果を削除する。
// DELETE /api/analysis/{id}
func (h *AnalysisHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	analysisID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, analysisID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toAnalysisResponse はmodel.AnalysisからAPIレスポンスに変換する。
// includeBodyがfalseの場合は本文を省略する（一覧用）。
func toAnalysisResponse(a *model.Analysis, includeBody bool) analysisResponse {
	resp := analysisResponse{
		ID:           a.ID,
		AnalysisType: string(a.AnalysisType),
		Title:        a.Title,
		Tags:         a.Tags,
		IsFavorite:   a.IsFavorite,
		ViaTicket:    a.ViaTicket,
		CreatedAt:    a.CreatedAt,
	}
	if includeBody {
		resp.InputText = a.InputText
		resp.ResultText = a.ResultText
	}
	return resp
}
