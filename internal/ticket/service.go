// Package ticket は利用チケットの残数管理・消費・購入インテント構築を提供する。
package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/careercompass/internal/metrics"
	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/repository"
)

// ExpiresSoonWindow は「まもなく失効」と表示するバッチの猶予期間。
const ExpiresSoonWindow = 7 * 24 * time.Hour

// ExpiringBatch はまもなく失効する残数ありバッチの情報を表す。
type ExpiringBatch struct {
	ExpiresAt time.Time
	Available int
}

// TypeBalance はチケット種別ごとの残数集計を表す。
type TypeBalance struct {
	TicketType  model.TicketType
	Available   int
	ExpiresSoon []ExpiringBatch
}

// PurchaseIntent はチケット購入の決済開始に必要な情報を表す。
// インテント構築は永続化を行わない。チケットバッチは決済確認後の
// Webhookで作成される。
type PurchaseIntent struct {
	TicketType  model.TicketType
	Quantity    int
	UnitPrice   int64
	Amount      int64
	Currency    string
	Name        string
	Description string
}

// Service は利用チケットのサービス層。
type Service struct {
	ticketRepo repository.TicketRepository
	recorder   metrics.Recorder
	now        func() time.Time
}

// NewService はServiceを生成する。
func NewService(ticketRepo repository.TicketRepository, recorder metrics.Recorder) *Service {
	return &Service{
		ticketRepo: ticketRepo,
		recorder:   recorder,
		now:        time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

// GetBalance はユーザーのチケット残数を種別ごとに集計して返す。
// available = Σquantity − Σused（未失効バッチのみ）。
// 7日以内に失効する残数ありバッチはexpires_soonとして別途返す。
func (s *Service) GetBalance(ctx context.Context, userID string) ([]TypeBalance, error) {
	now := s.now()
	batches, err := s.ticketRepo.ListUnexpiredByUser(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("チケットバッチ一覧の取得に失敗しました: %w", err)
	}

	byType := map[model.TicketType]*TypeBalance{}
	for _, batch := range batches {
		balance, ok := byType[batch.TicketType]
		if !ok {
			balance = &TypeBalance{TicketType: batch.TicketType}
			byType[batch.TicketType] = balance
		}

		available := batch.Available()
		balance.Available += available

		if available > 0 && batch.ExpiresAt.Before(now.Add(ExpiresSoonWindow)) {
			balance.ExpiresSoon = append(balance.ExpiresSoon, ExpiringBatch{
				ExpiresAt: batch.ExpiresAt,
				Available: available,
			})
		}
	}

	// 種別ごとの表示順は商品カタログの順に固定する
	var results []TypeBalance
	for _, product := range model.TicketProducts() {
		if balance, ok := byType[product.TicketType]; ok {
			results = append(results, *balance)
		} else {
			results = append(results, TypeBalance{TicketType: product.TicketType})
		}
	}
	return results, nil
}

// Consume は指定分析種別のためにチケットを1枚消費する。
// 失効が最も近い利用可能バッチから消費する。消費できるバッチがない場合は
// falseを返す。falseはシステム障害ではなく「消費対象なし」を意味する。
// 分析種別がチケット種別のカバー範囲に含まれない場合はクライアントエラーとし、
// チケットは消費しない。
func (s *Service) Consume(ctx context.Context, userID string, ticketType model.TicketType, analysisType model.AnalysisType) (bool, error) {
	if !model.ValidTicketType(ticketType) {
		return false, model.NewInvalidTicketTypeError(string(ticketType))
	}
	if !model.ValidAnalysisType(analysisType) {
		return false, model.NewInvalidAnalysisTypeError(string(analysisType))
	}

	covered, ok := model.TicketTypeForAnalysis(analysisType)
	if !ok || covered != ticketType {
		return false, model.NewInvalidAnalysisTypeError(string(analysisType))
	}

	consumed, err := s.ticketRepo.ConsumeOne(ctx, userID, ticketType, s.now())
	if err != nil {
		return false, fmt.Errorf("チケットの消費に失敗しました: %w", err)
	}
	if consumed {
		s.recorder.RecordTicketConsumed(string(ticketType))
	}
	return consumed, nil
}

// ConsumeForAnalysis は分析種別から対応チケット種別を導出して1枚消費する。
// 資格判定がチケット経由で許可された場合の実行パスで使用する。
func (s *Service) ConsumeForAnalysis(ctx context.Context, userID string, analysisType model.AnalysisType) (bool, error) {
	ticketType, ok := model.TicketTypeForAnalysis(analysisType)
	if !ok {
		return false, model.NewInvalidAnalysisTypeError(string(analysisType))
	}
	return s.Consume(ctx, userID, ticketType, analysisType)
}

// BuildPurchaseIntent は (チケット種別, 数量) から購入インテントを構築する。
// 単価は静的な商品テーブルから引く。永続化は行わない。
func (s *Service) BuildPurchaseIntent(ticketType model.TicketType, quantity int) (*PurchaseIntent, error) {
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

	return &PurchaseIntent{
		TicketType:  ticketType,
		Quantity:    quantity,
		UnitPrice:   product.UnitPrice,
		Amount:      product.UnitPrice * int64(quantity),
		Currency:    product.Currency,
		Name:        product.Name,
		Description: product.Description,
	}, nil
}

// GrantPurchased は決済確認済みのチケットバッチを作成する。
// Stripe Webhookのcheckout.session.completedから呼び出される。
func (s *Service) GrantPurchased(ctx context.Context, userID string, ticketType model.TicketType, quantity int, paymentIntentID string) error {
	if !model.ValidTicketType(ticketType) {
		return model.NewInvalidTicketTypeError(string(ticketType))
	}
	if !model.ValidTicketQuantity(quantity) {
		return model.NewInvalidQuantityError(quantity)
	}

	now := s.now()
	ticket := &model.UsageTicket{
		ID:                    uuid.New().String(),
		UserID:                userID,
		TicketType:            ticketType,
		Quantity:              quantity,
		Used:                  0,
		Source:                model.TicketSourcePurchase,
		ExpiresAt:             now.AddDate(0, 0, model.PurchasedTicketValidityDays),
		StripePaymentIntentID: paymentIntentID,
		CreatedAt:             now,
	}
	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		return fmt.Errorf("購入チケットの作成に失敗しました: %w", err)
	}
	return nil
}
