// Package entitlement はプラン上限とチケット残数に基づく利用資格判定を提供する。
package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/repository"
)

// UsageInfo は現在の利用回数と上限のペアを表す。
type UsageInfo struct {
	Used  int
	Limit int
}

// Eligibility は分析実行の資格判定結果を表す。
type Eligibility struct {
	CanAnalyze bool
	// ViaTicket は上限到達後にチケット経由で許可されたことを示す。
	// trueの場合、呼び出し側は実行時に別途チケット消費を行う必要がある。
	ViaTicket bool
	// Reason は拒否時の機械判定可能な理由コード。
	Reason string
	// Usage は拒否時のアップセル表示用に現在の利用状況を含む。
	Usage *UsageInfo
	// TicketUnitPrice は対応するチケットの単価（アップセル表示用）。
	TicketUnitPrice int64
}

// ReasonLimitExceeded は月間上限到達による拒否の理由コード。
const ReasonLimitExceeded = "limit_exceeded"

// Service は利用資格判定のサービス層。
// 判定は読み取り専用であり、利用カウンタを変更しない。
// 利用回数は当月の分析レコードをカウントして導出する。
type Service struct {
	profileRepo  repository.ProfileRepository
	analysisRepo repository.AnalysisRepository
	ticketRepo   repository.TicketRepository
	now          func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	profileRepo repository.ProfileRepository,
	analysisRepo repository.AnalysisRepository,
	ticketRepo repository.TicketRepository,
) *Service {
	return &Service{
		profileRepo:  profileRepo,
		analysisRepo: analysisRepo,
		ticketRepo:   ticketRepo,
		now:          time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

// CheckAnalysisEligibility は指定種別の分析実行が許可されるかを判定する。
// プラン上限内なら許可、上限到達後は対応チケットの残数があればチケット経由で許可、
// どちらも満たさない場合はlimit_exceededで拒否する。
func (s *Service) CheckAnalysisEligibility(ctx context.Context, userID string, analysisType model.AnalysisType) (*Eligibility, error) {
	if !model.ValidAnalysisType(analysisType) {
		return nil, model.NewInvalidAnalysisTypeError(string(analysisType))
	}

	ticketType, ok := model.TicketTypeForAnalysis(analysisType)
	if !ok {
		return nil, model.NewInvalidAnalysisTypeError(string(analysisType))
	}

	profile, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError()
	}

	limits := model.LimitsForPlan(profile.SubscriptionStatus)
	limit := limitForCategory(limits, ticketType)

	// 無制限プランは利用回数に関わらず常に許可
	if limit == model.UnlimitedLimit {
		return &Eligibility{CanAnalyze: true}, nil
	}

	now := s.now()
	used, err := s.analysisRepo.CountByTypesSince(ctx, userID, categoryTypes(ticketType), monthStart(now))
	if err != nil {
		return nil, fmt.Errorf("当月利用回数の取得に失敗しました: %w", err)
	}

	if used < limit {
		return &Eligibility{
			CanAnalyze: true,
			Usage:      &UsageInfo{Used: used, Limit: limit},
		}, nil
	}

	// 上限到達: 対応チケットの残数があればチケット経由で許可
	hasTicket, err := s.ticketRepo.HasAvailable(ctx, userID, ticketType, now)
	if err != nil {
		return nil, fmt.Errorf("利用可能チケットの確認に失敗しました: %w", err)
	}
	if hasTicket {
		return &Eligibility{
			CanAnalyze: true,
			ViaTicket:  true,
			Usage:      &UsageInfo{Used: used, Limit: limit},
		}, nil
	}

	product, _ := model.ProductForTicketType(ticketType)
	return &Eligibility{
		CanAnalyze:      false,
		Reason:          ReasonLimitExceeded,
		Usage:           &UsageInfo{Used: used, Limit: limit},
		TicketUnitPrice: product.UnitPrice,
	}, nil
}

// CanSaveAnalysis は分析結果の保存が許可されるかを判定する。
// 保存はプラン機能であり、利用回数とは独立して無料プランでは常に拒否する。
func (s *Service) CanSaveAnalysis(ctx context.Context, userID string) (bool, error) {
	profile, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return false, model.NewUserNotFoundError()
	}

	return model.LimitsForPlan(profile.SubscriptionStatus).CanSaveAnalysis, nil
}

// limitForCategory はチケット種別に対応するプラン上限を返す。
func limitForCategory(limits model.PlanLimits, ticketType model.TicketType) int {
	if ticketType == model.TicketTypeAnalysisPersona {
		return limits.PersonaAnalysisLimit
	}
	return limits.NormalAnalysisLimit
}

// categoryTypes はチケット種別がカバーする分析種別群を返す。
// 月間上限はカテゴリ単位で判定するため、カウントもカテゴリ全体に対して行う。
func categoryTypes(ticketType model.TicketType) []model.AnalysisType {
	if ticketType == model.TicketTypeAnalysisPersona {
		return []model.AnalysisType{model.AnalysisTypePersona}
	}
	return []model.AnalysisType{
		model.AnalysisTypeClarity,
		model.AnalysisTypeStrengths,
		model.AnalysisTypeCareer,
		model.AnalysisTypeValues,
	}
}

// monthStart は指定時刻が属するUTC月の先頭時刻を返す。
func monthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
