// Package referral は紹介コードの発行・検証・適用と報酬付与を提供する。
package referral

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/careercompass/internal/metrics"
	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/repository"
)

// 検証失敗の理由コード。優先順位順に定義し、最初に失敗したチェックで短絡する。
const (
	ReasonInvalidCode        = "invalid_code"
	ReasonExpired            = "expired"
	ReasonSelfReferral       = "self_referral"
	ReasonAlreadyUsed        = "already_used"
	ReasonReferrerNotPremium = "referrer_not_premium"
	ReasonReferrerNoAnalysis = "referrer_no_analysis"
)

// ValidationResult は紹介コード検証の結果を表す。
type ValidationResult struct {
	IsValid bool
	// Reason は無効時の機械判定可能な理由コード。
	Reason string
}

// Stats は紹介プログラムの実績サマリを表す。
type Stats struct {
	TotalCodes     int
	CompletedCount int
	PendingCode    *model.Referral
	History        []*model.Referral
}

// Service は紹介プログラムのサービス層。
//
// コード発行の資格判定（有料プラン契約かつ分析実行1回以上）はこのサービスでは
// 強制せず、呼び出し側のルートがCanCreateCodeで行う。責務分割は意図的なもの。
type Service struct {
	referralRepo repository.ReferralRepository
	profileRepo  repository.ProfileRepository
	analysisRepo repository.AnalysisRepository
	recorder     metrics.Recorder
	now          func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	referralRepo repository.ReferralRepository,
	profileRepo repository.ProfileRepository,
	analysisRepo repository.AnalysisRepository,
	recorder metrics.Recorder,
) *Service {
	return &Service{
		referralRepo: referralRepo,
		profileRepo:  profileRepo,
		analysisRepo: analysisRepo,
		recorder:     recorder,
		now:          time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

// CanCreateCode はコード発行資格（有料プラン契約かつ分析実行1回以上）を判定する。
func (s *Service) CanCreateCode(ctx context.Context, userID string) (bool, error) {
	profile, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return false, model.NewUserNotFoundError()
	}
	if !model.IsPaidPlan(profile.SubscriptionStatus) {
		return false, nil
	}

	count, err := s.analysisRepo.CountByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("分析件数の取得に失敗しました: %w", err)
	}
	return count >= 1, nil
}

// CreateCode は新しい紹介コードを発行する。
func (s *Service) CreateCode(ctx context.Context, userID string) (*model.Referral, error) {
	now := s.now()
	referral := &model.Referral{
		ID:         uuid.New().String(),
		Code:       generateCode(),
		ReferrerID: userID,
		Status:     model.ReferralStatusPending,
		RewardType: "ticket",
		ExpiresAt:  now.AddDate(0, 0, model.ReferralCodeValidityDays),
		CreatedAt:  now,
	}
	if err := s.referralRepo.Create(ctx, referral); err != nil {
		return nil, fmt.Errorf("紹介コードの作成に失敗しました: %w", err)
	}
	return referral, nil
}

// Validate は紹介コードを検証する。
// 優先順位順にチェックし、最初に失敗した理由を返す:
// invalid_code → expired → self_referral → already_used →
// referrer_not_premium → referrer_no_analysis。
// 全チェックを通過したコードのみ有効。
func (s *Service) Validate(ctx context.Context, code, userID string) (*ValidationResult, error) {
	referral, err := s.referralRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("紹介コードの検索に失敗しました: %w", err)
	}
	// 未知のコードと消費済みのコードは同じ理由で拒否する
	if referral == nil || referral.Status == model.ReferralStatusCompleted {
		return &ValidationResult{Reason: ReasonInvalidCode}, nil
	}

	if referral.Status == model.ReferralStatusExpired || referral.ExpiresAt.Before(s.now()) {
		return &ValidationResult{Reason: ReasonExpired}, nil
	}

	if referral.ReferrerID == userID {
		return &ValidationResult{Reason: ReasonSelfReferral}, nil
	}

	completed, err := s.referralRepo.FindCompletedByReferee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("被紹介者の完了済み紹介の検索に失敗しました: %w", err)
	}
	if completed != nil {
		return &ValidationResult{Reason: ReasonAlreadyUsed}, nil
	}

	referrer, err := s.profileRepo.FindByID(ctx, referral.ReferrerID)
	if err != nil {
		return nil, fmt.Errorf("紹介者プロフィールの取得に失敗しました: %w", err)
	}
	if referrer == nil || !model.IsPaidPlan(referrer.SubscriptionStatus) {
		return &ValidationResult{Reason: ReasonReferrerNotPremium}, nil
	}

	count, err := s.analysisRepo.CountByUser(ctx, referral.ReferrerID)
	if err != nil {
		return nil, fmt.Errorf("紹介者の分析件数の取得に失敗しました: %w", err)
	}
	if count == 0 {
		return &ValidationResult{Reason: ReasonReferrerNoAnalysis}, nil
	}

	return &ValidationResult{IsValid: true}, nil
}

// Apply は有効な紹介コードを適用する。
// 被紹介者ごとに冪等であり、既に紹介を完了した被紹介者は報酬付与前に拒否される。
// 成功時は紹介をcompletedに遷移し、紹介者・被紹介者の両方に
// ReferralRewardsテーブルに基づく報酬チケットを単一トランザクションで発行する。
func (s *Service) Apply(ctx context.Context, code, userID string) error {
	result, err := s.Validate(ctx, code, userID)
	if err != nil {
		return err
	}
	if !result.IsValid {
		return model.NewInvalidReferralCodeError(result.Reason)
	}

	referral, err := s.referralRepo.FindByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("紹介コードの検索に失敗しました: %w", err)
	}
	if referral == nil {
		return model.NewInvalidReferralCodeError(ReasonInvalidCode)
	}

	now := s.now()
	rewards := []*model.UsageTicket{
		rewardTicket(referral.ReferrerID, model.ReferralRewards.Referrer, now),
		rewardTicket(userID, model.ReferralRewards.Referee, now),
	}

	if err := s.referralRepo.CompleteWithRewards(ctx, referral.ID, userID, now, rewards); err != nil {
		return fmt.Errorf("紹介の完了処理に失敗しました: %w", err)
	}

	s.recorder.RecordReferralCompleted()
	return nil
}

// Stats は紹介者の実績サマリを返す。
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	history, err := s.referralRepo.ListByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("紹介一覧の取得に失敗しました: %w", err)
	}

	stats := &Stats{History: history}
	now := s.now()
	for _, ref := range history {
		stats.TotalCodes++
		if ref.Status == model.ReferralStatusCompleted {
			stats.CompletedCount++
		}
		// 最新の有効なpendingコードを再掲する
		if stats.PendingCode == nil && ref.Status == model.ReferralStatusPending && ref.ExpiresAt.After(now) {
			stats.PendingCode = ref
		}
	}
	return stats, nil
}

// rewardTicket は報酬定義から付与チケットを組み立てる。
func rewardTicket(userID string, reward model.ReferralReward, now time.Time) *model.UsageTicket {
	return &model.UsageTicket{
		ID:         uuid.New().String(),
		UserID:     userID,
		TicketType: reward.TicketType,
		Quantity:   reward.TicketCount,
		Used:       0,
		Source:     model.TicketSourceReferralReward,
		ExpiresAt:  now.AddDate(0, 0, reward.ValidityDays),
		CreatedAt:  now,
	}
}

// generateCode は紹介コードを生成する。
// UUIDのエントロピーから可読な12文字のコードを導出する。
func generateCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "CC-" + raw[:12]
}
