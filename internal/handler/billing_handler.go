package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/careercompass/internal/billing"
	"github.com/hitoshi/careercompass/internal/middleware"
	"github.com/hitoshi/careercompass/internal/model"
)

// webhookMaxBodyBytes はWebhookペイロードの最大サイズ。
// Stripeの推奨に合わせて64KBに制限する。
const webhookMaxBodyBytes = 65536

// BillingServiceInterface は課金ハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	// CreateSubscriptionCheckout はプラン契約のチェックアウトセッションを作成する。
	CreateSubscriptionCheckout(ctx context.Context, userID string, plan model.PlanID, cycle model.BillingCycle, referralDiscount int64) (*billing.CheckoutSession, error)
	// Cancel はサブスクリプションを解約する。
	Cancel(ctx context.Context, userID, subscriptionID, reason string) error
	// Downgrade は契約のプランと課金サイクルを変更する。
	Downgrade(ctx context.Context, userID, subscriptionID string, newPlan model.PlanID, newCycle model.BillingCycle) error
	// Pause は契約を指定日時まで一時停止する。
	Pause(ctx context.Context, userID, subscriptionID string, pausedUntil time.Time) error
	// HandleWebhook はStripe Webhookイベントを処理する。
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error
}

// BillingHandler はチェックアウト・契約ライフサイクル・WebhookのHTTPハンドラー。
type BillingHandler struct {
	service BillingServiceInterface
}

// NewBillingHandler はBillingHandlerを生成する。
func NewBillingHandler(service BillingServiceInterface) *BillingHandler {
	return &BillingHandler{
		service: service,
	}
}

// subscriptionCheckoutRequest はプラン契約の決済開始リクエストのボディ。
type subscriptionCheckoutRequest struct {
	PlanID           string `json:"plan_id"`
	BillingCycle     string `json:"billing_cycle"`
	ReferralDiscount int64  `json:"referral_discount,omitempty"`
}

// cancelRequest は解約リクエストのボディ。
type cancelRequest struct {
	SubscriptionID string `json:"subscription_id"`
	Reason         string `json:"reason,omitempty"`
}

// downgradeRequest はプラン変更リクエストのボディ。
type downgradeRequest struct {
	SubscriptionID string `json:"subscription_id"`
	PlanID         string `json:"plan_id"`
	BillingCycle   string `json:"billing_cycle"`
}

// pauseRequest は一時停止リクエストのボディ。
type pauseRequest struct {
	SubscriptionID string    `json:"subscription_id"`
	PausedUntil    time.Time `json:"paused_until"`
}

// CreateCheckoutSession はプラン契約の決済セッションを開始する。
// POST /api/stripe/create-checkout-session
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req subscriptionCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	sess, err := h.service.CreateSubscriptionCheckout(r.Context(), userID,
		model.PlanID(req.PlanID), model.BillingCycle(req.BillingCycle), req.ReferralDiscount)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.ID,
		"url":        sess.URL,
	})
}

// Cancel はサブスクリプションを解約する。
// POST /api/subscription/cancel
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubscriptionID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.Cancel(r.Context(), userID, req.SubscriptionID, req.Reason); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

// Downgrade は契約のプランと課金サイクルを変更する。
// POST /api/subscription/downgrade
func (h *BillingHandler) Downgrade(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req downgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubscriptionID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.Downgrade(r.Context(), userID, req.SubscriptionID,
		model.PlanID(req.PlanID), model.BillingCycle(req.BillingCycle)); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Pause は契約を指定日時まで一時停止する。
// POST /api/subscription/pause
func (h *BillingHandler) Pause(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubscriptionID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.Pause(r.Context(), userID, req.SubscriptionID, req.PausedUntil); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// Webhook はStripe Webhookを受信する。認証セッションは不要で、
// 署名検証が唯一の認可手段となる。
// POST /api/stripe/webhook
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBodyBytes))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if err := h.service.HandleWebhook(r.Context(), payload, sigHeader); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}
