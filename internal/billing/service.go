package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/hitoshi/careercompass/internal/metrics"
	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/repository"
)

// チェックアウトセッションのメタデータキー。
// Webhookでの突合に使用するため、作成時と解釈時で共有する。
const (
	metaCheckoutType = "checkout_type"
	metaUserID       = "user_id"
	metaPlanID       = "plan_id"
	metaBillingCycle = "billing_cycle"
	metaTicketType   = "ticket_type"
	metaQuantity     = "quantity"

	checkoutTypeSubscription = "subscription"
	checkoutTypeTicket       = "ticket"
)

// PriceResolver は (プランID, 課金サイクル) をStripe価格IDに解決する。
type PriceResolver interface {
	ResolvePriceID(plan model.PlanID, cycle model.BillingCycle) (string, bool)
}

// TicketGranter は決済確認済みチケットバッチの作成インターフェース。
type TicketGranter interface {
	GrantPurchased(ctx context.Context, userID string, ticketType model.TicketType, quantity int, paymentIntentID string) error
}

// Service はチェックアウト・契約ライフサイクル・Webhook処理のサービス層。
type Service struct {
	stripe      StripeClient
	prices      PriceResolver
	profileRepo repository.ProfileRepository
	subRepo     repository.SubscriptionRepository
	tickets     TicketGranter
	recorder    metrics.Recorder
	logger      *slog.Logger
	baseURL     string
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	stripeClient StripeClient,
	prices PriceResolver,
	profileRepo repository.ProfileRepository,
	subRepo repository.SubscriptionRepository,
	tickets TicketGranter,
	recorder metrics.Recorder,
	logger *slog.Logger,
	baseURL string,
) *Service {
	return &Service{
		stripe:      stripeClient,
		prices:      prices,
		profileRepo: profileRepo,
		subRepo:     subRepo,
		tickets:     tickets,
		recorder:    recorder,
		logger:      logger,
		baseURL:     normalizeBaseURL(baseURL),
		now:         time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

// CreateSubscriptionCheckout はプラン契約のチェックアウトセッションを作成する。
// 価格テーブルで解決できないプランと課金サイクルの組み合わせはクライアントエラー。
// referralDiscountが正の場合は1回限りの割引クーポンを作成して適用する。
// クーポン作成の失敗はチェックアウトを妨げない。
func (s *Service) CreateSubscriptionCheckout(ctx context.Context, userID string, plan model.PlanID, cycle model.BillingCycle, referralDiscount int64) (*CheckoutSession, error) {
	if !model.ValidPlanForCheckout(plan) || !model.ValidBillingCycle(cycle) {
		return nil, model.NewInvalidPlanError()
	}

	priceID, ok := s.prices.ResolvePriceID(plan, cycle)
	if !ok {
		return nil, model.NewInvalidPlanError()
	}

	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	couponID := ""
	if referralDiscount > 0 {
		couponID, err = s.stripe.CreateAmountOffCoupon(ctx, referralDiscount, "jpy")
		if err != nil {
			// 割引は付帯サービスであり、失敗してもチェックアウト自体は進める
			s.logger.Warn("coupon creation failed, proceeding without discount",
				"user_id", userID, "error", err)
			couponID = ""
		}
	}

	sess, err := s.stripe.CreateCheckoutSession(ctx, &CheckoutSessionInput{
		Mode:       CheckoutModeSubscription,
		CustomerID: customerID,
		PriceID:    priceID,
		CouponID:   couponID,
		SuccessURL: s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.baseURL + "/checkout/cancel",
		Metadata: map[string]string{
			metaCheckoutType: checkoutTypeSubscription,
			metaUserID:       userID,
			metaPlanID:       string(plan),
			metaBillingCycle: string(cycle),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("チェックアウトセッションの作成に失敗しました: %w", err)
	}

	s.recorder.RecordCheckoutSession(string(CheckoutModeSubscription))
	return sess, nil
}

// CreateTicketCheckout はチケット購入のチェックアウトセッションを作成する。
// 単発決済モードで、商品テーブルに基づく動的価格行を使用する。
func (s *Service) CreateTicketCheckout(ctx context.Context, userID string, ticketType model.TicketType, quantity int) (*CheckoutSession, error) {
	if !model.ValidTicketType(ticketType) {
		return nil, model.NewInvalidTicketTypeError(string(ticketType))
	}
	if !model.ValidTicketQuantity(quantity) {
		return nil, model.NewInvalidQuantityError(quantity)
	}
	product, ok := model.ProductForTicketType(ticketType)
	if !ok {
		return nil, model.NewInvalidTicketTypeError(string(ticketType))
	}

	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess, err := s.stripe.CreateCheckoutSession(ctx, &CheckoutSessionInput{
		Mode:       CheckoutModePayment,
		CustomerID: customerID,
		LineItem: &AdhocLineItem{
			Name:        product.Name,
			Description: product.Description,
			UnitAmount:  product.UnitPrice,
			Currency:    product.Currency,
			Quantity:    int64(quantity),
		},
		SuccessURL: s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.baseURL + "/checkout/cancel",
		Metadata: map[string]string{
			metaCheckoutType: checkoutTypeTicket,
			metaUserID:       userID,
			metaTicketType:   string(ticketType),
			metaQuantity:     strconv.Itoa(quantity),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("チェックアウトセッションの作成に失敗しました: %w", err)
	}

	s.recorder.RecordCheckoutSession(string(CheckoutModePayment))
	return sess, nil
}

// ensureCustomer はユーザーに対応するStripe顧客IDを返す。
// プロフィールに保存済みのIDを優先し、次にメールアドレスで既存顧客を検索、
// どちらもなければuser_idメタデータ付きで新規作成して保存する。
func (s *Service) ensureCustomer(ctx context.Context, userID string) (string, error) {
	profile, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return "", model.NewUserNotFoundError()
	}
	if profile.StripeCustomerID != "" {
		return profile.StripeCustomerID, nil
	}

	customerID, err := s.stripe.FindCustomerIDByEmail(ctx, profile.Email)
	if err != nil {
		return "", err
	}
	if customerID == "" {
		customerID, err = s.stripe.CreateCustomer(ctx, profile.Email, map[string]string{
			metaUserID: userID,
		})
		if err != nil {
			return "", err
		}
	}

	if err := s.profileRepo.UpdateStripeCustomerID(ctx, userID, customerID); err != nil {
		return "", fmt.Errorf("Stripe顧客IDの保存に失敗しました: %w", err)
	}
	return customerID, nil
}

// Cancel はサブスクリプションを解約する。
// ローカルの契約行の更新は常に行い、Stripe側の解約失敗はログのみ残して
// 致命的エラーとはしない。解約理由の記録はベストエフォート。
func (s *Service) Cancel(ctx context.Context, userID, subscriptionID, reason string) error {
	sub, err := s.subRepo.FindForUser(ctx, userID, subscriptionID)
	if err != nil {
		return fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	if sub == nil {
		return model.NewSubscriptionNotFoundError(subscriptionID)
	}

	if err := s.subRepo.UpdateCancellation(ctx, userID, subscriptionID, reason, s.now()); err != nil {
		return fmt.Errorf("解約状態の更新に失敗しました: %w", err)
	}

	if sub.StripeSubscriptionID != "" {
		if err := s.stripe.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
			s.logger.Warn("remote subscription cancellation failed",
				"user_id", userID,
				"subscription_id", subscriptionID,
				"error", err)
		}
	}

	return nil
}

// Downgrade は契約のプランと課金サイクルを変更する。
// プロフィールのプラン表示も合わせて更新する。
// 無料プランへのダウングレードではローカルの状態遷移を確定した上で
// Stripe側の解約を試みる。リモート解約の失敗はログに記録して成功を返す。
func (s *Service) Downgrade(ctx context.Context, userID, subscriptionID string, newPlan model.PlanID, newCycle model.BillingCycle) error {
	if !model.ValidPlan(newPlan) || !model.ValidBillingCycle(newCycle) {
		return model.NewInvalidPlanError()
	}

	sub, err := s.subRepo.FindForUser(ctx, userID, subscriptionID)
	if err != nil {
		return fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	if sub == nil {
		return model.NewSubscriptionNotFoundError(subscriptionID)
	}

	if err := s.subRepo.UpdatePlan(ctx, userID, subscriptionID, newPlan, newCycle); err != nil {
		return fmt.Errorf("プラン変更の保存に失敗しました: %w", err)
	}
	if err := s.profileRepo.UpdateSubscriptionStatus(ctx, userID, newPlan); err != nil {
		return fmt.Errorf("プロフィールのプラン更新に失敗しました: %w", err)
	}

	// 無料化は実質解約。Stripe側の失敗でローカルの遷移は巻き戻さない
	if newPlan == model.PlanFree && sub.StripeSubscriptionID != "" {
		if err := s.stripe.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
			s.logger.Warn("remote subscription cancellation failed",
				"user_id", userID,
				"subscription_id", subscriptionID,
				"error", err)
		}
	}

	return nil
}

// Pause は契約を指定日時まで一時停止する。
func (s *Service) Pause(ctx context.Context, userID, subscriptionID string, pausedUntil time.Time) error {
	if !pausedUntil.After(s.now()) {
		return model.NewInvalidRequestError()
	}

	sub, err := s.subRepo.FindForUser(ctx, userID, subscriptionID)
	if err != nil {
		return fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	if sub == nil {
		return model.NewSubscriptionNotFoundError(subscriptionID)
	}

	if err := s.subRepo.UpdatePause(ctx, userID, subscriptionID, pausedUntil); err != nil {
		return fmt.Errorf("一時停止の保存に失敗しました: %w", err)
	}
	return nil
}

// HandleWebhook はStripe Webhookイベントを処理する。
// 署名検証に失敗したペイロードは副作用を発生させる前に拒否する。
// 未対応のイベント種別は無視して成功を返す。
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.stripe.ConstructWebhookEvent(payload, sigHeader)
	if err != nil {
		s.logger.Warn("webhook signature verification failed", "error", err)
		return model.NewWebhookSignatureError()
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("チェックアウトセッションの解析に失敗しました: %w", err)
		}
		return s.handleCheckoutCompleted(ctx, &sess)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("サブスクリプションの解析に失敗しました: %w", err)
		}
		return s.handleSubscriptionDeleted(ctx, &sub)

	default:
		s.logger.Debug("ignoring webhook event", "type", event.Type)
		return nil
	}
}

// handleCheckoutCompleted は決済完了イベントを処理する。
// メタデータのcheckout_typeに応じて契約の有効化またはチケットの付与を行う。
func (s *Service) handleCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	userID := sess.Metadata[metaUserID]
	if userID == "" {
		return fmt.Errorf("チェックアウトセッションにuser_idメタデータがありません: %s", sess.ID)
	}

	switch sess.Metadata[metaCheckoutType] {
	case checkoutTypeSubscription:
		plan := model.PlanID(sess.Metadata[metaPlanID])
		cycle := model.BillingCycle(sess.Metadata[metaBillingCycle])
		if !model.ValidPlanForCheckout(plan) || !model.ValidBillingCycle(cycle) {
			return fmt.Errorf("チェックアウトセッションのプランメタデータが不正です: %s", sess.ID)
		}
		return s.activateSubscription(ctx, userID, plan, cycle, sess)

	case checkoutTypeTicket:
		ticketType := model.TicketType(sess.Metadata[metaTicketType])
		quantity, err := strconv.Atoi(sess.Metadata[metaQuantity])
		if err != nil {
			return fmt.Errorf("チェックアウトセッションの数量メタデータが不正です: %s", sess.ID)
		}
		paymentIntentID := ""
		if sess.PaymentIntent != nil {
			paymentIntentID = sess.PaymentIntent.ID
		}
		if err := s.tickets.GrantPurchased(ctx, userID, ticketType, quantity, paymentIntentID); err != nil {
			return fmt.Errorf("購入チケットの付与に失敗しました: %w", err)
		}
		s.logger.Info("purchased tickets granted",
			"user_id", userID, "ticket_type", string(ticketType), "quantity", quantity)
		return nil

	default:
		return fmt.Errorf("チェックアウトセッションの種別メタデータが不正です: %s", sess.ID)
	}
}

// activateSubscription は決済完了した契約をアクティブ化する。
func (s *Service) activateSubscription(ctx context.Context, userID string, plan model.PlanID, cycle model.BillingCycle, sess *stripe.CheckoutSession) error {
	now := s.now()
	stripeSubID := ""
	if sess.Subscription != nil {
		stripeSubID = sess.Subscription.ID
	}

	sub := &model.Subscription{
		ID:                   uuid.New().String(),
		UserID:               userID,
		PlanID:               plan,
		BillingCycle:         cycle,
		Status:               model.SubscriptionStatusActive,
		CurrentPeriodStart:   now,
		CurrentPeriodEnd:     periodEnd(now, cycle),
		StripeSubscriptionID: stripeSubID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return fmt.Errorf("サブスクリプションの作成に失敗しました: %w", err)
	}
	if err := s.profileRepo.UpdateSubscriptionStatus(ctx, userID, plan); err != nil {
		return fmt.Errorf("プロフィールのプラン更新に失敗しました: %w", err)
	}

	s.logger.Info("subscription activated",
		"user_id", userID, "plan", string(plan), "billing_cycle", string(cycle))
	return nil
}

// handleSubscriptionDeleted はStripe側の契約終了を処理し、無料プランに戻す。
func (s *Service) handleSubscriptionDeleted(ctx context.Context, stripeSub *stripe.Subscription) error {
	sub, err := s.subRepo.FindByStripeID(ctx, stripeSub.ID)
	if err != nil {
		return fmt.Errorf("サブスクリプションの検索に失敗しました: %w", err)
	}
	if sub == nil {
		// 既にローカルで解約済み、または当システム外の契約
		s.logger.Warn("subscription.deleted for unknown subscription", "stripe_subscription_id", stripeSub.ID)
		return nil
	}

	if sub.Status != model.SubscriptionStatusCanceled {
		if err := s.subRepo.UpdateCancellation(ctx, sub.UserID, sub.ID, "stripe_subscription_deleted", s.now()); err != nil {
			return fmt.Errorf("解約状態の更新に失敗しました: %w", err)
		}
	}
	if err := s.profileRepo.UpdateSubscriptionStatus(ctx, sub.UserID, model.PlanFree); err != nil {
		return fmt.Errorf("プロフィールのプラン更新に失敗しました: %w", err)
	}

	s.logger.Info("subscription downgraded to free", "user_id", sub.UserID)
	return nil
}

// periodEnd は課金サイクルに応じた次回更新日時を返す。
func periodEnd(start time.Time, cycle model.BillingCycle) time.Time {
	if cycle == model.BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// normalizeBaseURL はベースURLを絶対https形式に正規化する。
// スキームのないホスト名はhttpsとして解釈し、末尾のスラッシュを除去する。
func normalizeBaseURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	if u == "" {
		return u
	}
	if !strings.Contains(u, "://") {
		u = "https://" + u
	}
	return u
}
