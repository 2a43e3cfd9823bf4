package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/careercompass/internal/billing"
	"github.com/hitoshi/careercompass/internal/middleware"
	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/ticket"
)

// TicketServiceInterface はチケットハンドラーが必要とするサービスインターフェース。
type TicketServiceInterface interface {
	// GetBalance はチケット残数を種別ごとに集計して返す。
	GetBalance(ctx context.Context, userID string) ([]ticket.TypeBalance, error)
	// Consume はチケットを1枚消費する。消費対象がない場合はfalseを返す。
	Consume(ctx context.Context, userID string, ticketType model.TicketType, analysisType model.AnalysisType) (bool, error)
}

// TicketCheckoutInterface はチケット購入の決済開始インターフェース。
type TicketCheckoutInterface interface {
	CreateTicketCheckout(ctx context.Context, userID string, ticketType model.TicketType, quantity int) (*billing.CheckoutSession, error)
}

// TicketHandler は利用チケット関連のHTTPハンドラー。
type TicketHandler struct {
	service  TicketServiceInterface
	checkout TicketCheckoutInterface
}

// NewTicketHandler はTicketHandlerを生成する。
func NewTicketHandler(service TicketServiceInterface, checkout TicketCheckoutInterface) *TicketHandler {
	return &TicketHandler{
		service:  service,
		checkout: checkout,
	}
}

// expiringBatchResponse はまもなく失効するバッチのAPIレスポンス。
type expiringBatchResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Available int       `json:"available"`
}

// typeBalanceResponse はチケット種別ごとの残数のAPIレスポンス。
type typeBalanceResponse struct {
	TicketType  string                  `json:"ticket_type"`
	Available   int                     `json:"available"`
	ExpiresSoon []expiringBatchResponse `json:"expires_soon,omitempty"`
}

// useTicketRequest はチケット消費リクエストのボディ。
type useTicketRequest struct {
	TicketType   string `json:"ticket_type"`
	AnalysisType string `json:"analysis_type"`
}

// ticketProductResponse はチケット商品のAPIレスポンス。
type ticketProductResponse struct {
	TicketType  string `json:"ticket_type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   int64  `json:"unit_price"`
	Currency    string `json:"currency"`
}

// ticketCheckoutRequest はチケット購入の決済開始リクエストのボディ。
type ticketCheckoutRequest struct {
	TicketType string `json:"ticket_type"`
	Quantity   int    `json:"quantity"`
}

// GetBalance はチケット残数を種別ごとに返す。
// GET /api/tickets
func (h *TicketHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	balances, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]typeBalanceResponse, len(balances))
	for i, b := range balances {
		resp := typeBalanceResponse{
			TicketType: string(b.TicketType),
			Available:  b.Available,
		}
		for _, batch := range b.ExpiresSoon {
			resp.ExpiresSoon = append(resp.ExpiresSoon, expiringBatchResponse{
				ExpiresAt: batch.ExpiresAt,
				Available: batch.Available,
			})
		}
		results[i] = resp
	}

	writeJSON(w, http.StatusOK, results)
}

// Use はチケットを1枚消費する。
// 消費対象のバッチがない場合は409を返す。
// POST /api/tickets/use
func (h *TicketHandler) Use(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req useTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	consumed, err := h.service.Consume(r.Context(), userID, model.TicketType(req.TicketType), model.AnalysisType(req.AnalysisType))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !consumed {
		writeJSON(w, http.StatusConflict, map[string]any{
			"consumed": false,
			"message":  "利用可能なチケットがありません。",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"consumed": true})
}

// ListProducts はチケット商品カタログを返す。
// GET /api/tickets/products
func (h *TicketHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := model.TicketProducts()
	results := make([]ticketProductResponse, len(products))
	for i, p := range products {
		results[i] = ticketProductResponse{
			TicketType:  string(p.TicketType),
			Name:        p.Name,
			Description: p.Description,
			UnitPrice:   p.UnitPrice,
			Currency:    p.Currency,
		}
	}
	writeJSON(w, http.StatusOK, results)
}

// CreateCheckoutSession はチケット購入の決済セッションを開始する。
// POST /api/tickets/create-checkout-session
func (h *TicketHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req ticketCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	sess, err := h.checkout.CreateTicketCheckout(r.Context(), userID, model.TicketType(req.TicketType), req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.ID,
		"url":        sess.URL,
	})
}
