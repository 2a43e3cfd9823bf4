// Package billing はStripeを利用したチェックアウト開始・契約ライフサイクル・
// Webhook処理を提供する。
package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/coupon"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// CheckoutMode はチェックアウトセッションのモードを表す。
type CheckoutMode string

const (
	// CheckoutModeSubscription は継続課金のチェックアウト。
	CheckoutModeSubscription CheckoutMode = "subscription"
	// CheckoutModePayment は単発決済のチェックアウト。
	CheckoutModePayment CheckoutMode = "payment"
)

// AdhocLineItem は単発決済用の動的価格行を表す。
type AdhocLineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Currency    string
	Quantity    int64
}

// CheckoutSessionInput はチェックアウトセッション作成の入力を表す。
// 継続課金モードではPriceIDを、単発決済モードではLineItemを使用する。
type CheckoutSessionInput struct {
	Mode       CheckoutMode
	CustomerID string
	PriceID    string
	LineItem   *AdhocLineItem
	CouponID   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession は作成されたチェックアウトセッションを表す。
type CheckoutSession struct {
	ID  string
	URL string
}

// StripeClient はStripe API呼び出しの抽象化。
// テストではフェイク実装に差し替える。
type StripeClient interface {
	// FindCustomerIDByEmail はメールアドレスで既存顧客を検索する。
	// 見つからない場合は空文字列を返す。
	FindCustomerIDByEmail(ctx context.Context, email string) (string, error)

	// CreateCustomer は新しい顧客を作成し、顧客IDを返す。
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error)

	// CreateCheckoutSession はチェックアウトセッションを作成する。
	CreateCheckoutSession(ctx context.Context, input *CheckoutSessionInput) (*CheckoutSession, error)

	// CreateAmountOffCoupon は1回限りの金額割引クーポンを作成し、クーポンIDを返す。
	CreateAmountOffCoupon(ctx context.Context, amountOff int64, currency string) (string, error)

	// CancelSubscription はStripe側のサブスクリプションを解約する。
	CancelSubscription(ctx context.Context, stripeSubscriptionID string) error

	// ConstructWebhookEvent はWebhookペイロードの署名を検証しイベントを復元する。
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// LiveClient はstripe-goを使用したStripeClient実装。
type LiveClient struct {
	webhookSecret string
}

// NewLiveClient はAPIキーを設定してLiveClientを生成する。
func NewLiveClient(secretKey, webhookSecret string) *LiveClient {
	stripe.Key = secretKey
	return &LiveClient{webhookSecret: webhookSecret}
}

// FindCustomerIDByEmail はメールアドレスで既存顧客を検索する。
func (c *LiveClient) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := customer.List(params)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("Stripe顧客の検索に失敗しました: %w", err)
	}
	return "", nil
}

// CreateCustomer は新しい顧客を作成する。
func (c *LiveClient) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("Stripe顧客の作成に失敗しました: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession はチェックアウトセッションを作成する。
func (c *LiveClient) CreateCheckoutSession(ctx context.Context, input *CheckoutSessionInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(input.Mode)),
		Customer:   stripe.String(input.CustomerID),
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
	}
	params.Context = ctx
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}

	switch input.Mode {
	case CheckoutModeSubscription:
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(input.PriceID),
				Quantity: stripe.Int64(1),
			},
		}
	case CheckoutModePayment:
		item := input.LineItem
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(item.Currency),
					UnitAmount: stripe.Int64(item.UnitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(item.Name),
						Description: stripe.String(item.Description),
					},
				},
				Quantity: stripe.Int64(item.Quantity),
			},
		}
	default:
		return nil, fmt.Errorf("未対応のチェックアウトモードです: %s", input.Mode)
	}

	if input.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(input.CouponID)},
		}
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("チェックアウトセッションの作成に失敗しました: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CreateAmountOffCoupon は1回限りの金額割引クーポンを作成する。
func (c *LiveClient) CreateAmountOffCoupon(ctx context.Context, amountOff int64, currency string) (string, error) {
	params := &stripe.CouponParams{
		AmountOff: stripe.Int64(amountOff),
		Currency:  stripe.String(currency),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx

	cpn, err := coupon.New(params)
	if err != nil {
		return "", fmt.Errorf("クーポンの作成に失敗しました: %w", err)
	}
	return cpn.ID, nil
}

// CancelSubscription はStripe側のサブスクリプションを解約する。
func (c *LiveClient) CancelSubscription(ctx context.Context, stripeSubscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := subscription.Cancel(stripeSubscriptionID, params); err != nil {
		return fmt.Errorf("Stripeサブスクリプションの解約に失敗しました: %w", err)
	}
	return nil
}

// ConstructWebhookEvent はWebhookペイロードの署名を検証しイベントを復元する。
func (c *LiveClient) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}

// compile-time interface check
var _ StripeClient = (*LiveClient)(nil)
