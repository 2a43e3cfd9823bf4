// Package analysis はAI自己分析結果の記録・保存・管理を提供する。
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/careercompass/internal/entitlement"
	"github.com/hitoshi/careercompass/internal/metrics"
	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/repository"
	"github.com/hitoshi/careercompass/internal/security"
)

// EntitlementChecker は分析実行・保存の資格判定インターフェース。
type EntitlementChecker interface {
	CheckAnalysisEligibility(ctx context.Context, userID string, analysisType model.AnalysisType) (*entitlement.Eligibility, error)
	CanSaveAnalysis(ctx context.Context, userID string) (bool, error)
}

// TicketConsumer はチケット経由の実行時にチケットを消費するインターフェース。
type TicketConsumer interface {
	ConsumeForAnalysis(ctx context.Context, userID string, analysisType model.AnalysisType) (bool, error)
}

// SaveInput は分析結果保存の入力を表す。
type SaveInput struct {
	AnalysisType model.AnalysisType
	InputText    string
	ResultText   string
	Title        string
	Tags         []string
}

// Service は分析結果のサービス層。
// 当月の利用回数は分析レコードのカウントで導出されるため、
// レコードの作成自体が利用実績の記録を兼ねる。
type Service struct {
	analysisRepo repository.AnalysisRepository
	entitlements EntitlementChecker
	tickets      TicketConsumer
	sanitizer    security.ContentSanitizerService
	recorder     metrics.Recorder
	now          func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	analysisRepo repository.AnalysisRepository,
	entitlements EntitlementChecker,
	tickets TicketConsumer,
	sanitizer security.ContentSanitizerService,
	recorder metrics.Recorder,
) *Service {
	return &Service{
		analysisRepo: analysisRepo,
		entitlements: entitlements,
		tickets:      tickets,
		sanitizer:    sanitizer,
		recorder:     recorder,
		now:          time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

// Save は分析結果を保存する。
// 保存はプラン機能であり、無料プランでは利用回数に関わらず拒否される。
// 保存されたレコードが当月利用回数のカウント対象となる。
func (s *Service) Save(ctx context.Context, userID string, input SaveInput) (*model.Analysis, error) {
	canSave, err := s.entitlements.CanSaveAnalysis(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !canSave {
		return nil, model.NewSaveNotAllowedError()
	}

	return s.Record(ctx, userID, input)
}

// Record は資格判定を経て分析レコードを作成する。
// 上限到達後にチケット経由で許可された場合はチケットを1枚消費する。
// 資格判定と消費の間にチケットが失効・消費された場合は上限到達として拒否する。
func (s *Service) Record(ctx context.Context, userID string, input SaveInput) (*model.Analysis, error) {
	if !model.ValidAnalysisType(input.AnalysisType) {
		return nil, model.NewInvalidAnalysisTypeError(string(input.AnalysisType))
	}

	eligibility, err := s.entitlements.CheckAnalysisEligibility(ctx, userID, input.AnalysisType)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanAnalyze {
		return nil, limitError(eligibility)
	}

	if eligibility.ViaTicket {
		consumed, err := s.tickets.ConsumeForAnalysis(ctx, userID, input.AnalysisType)
		if err != nil {
			return nil, err
		}
		if !consumed {
			return nil, limitError(eligibility)
		}
	}

	analysis := &model.Analysis{
		ID:           uuid.New().String(),
		UserID:       userID,
		AnalysisType: input.AnalysisType,
		InputText:    s.sanitizer.SanitizePlain(input.InputText),
		ResultText:   s.sanitizer.Sanitize(input.ResultText),
		Title:        s.sanitizer.SanitizePlain(input.Title),
		Tags:         sanitizeTags(s.sanitizer, input.Tags),
		ViaTicket:    eligibility.ViaTicket,
		CreatedAt:    s.now(),
	}
	if err := s.analysisRepo.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("分析結果の作成に失敗しました: %w", err)
	}

	s.recorder.RecordAnalysisRun(string(input.AnalysisType), eligibility.ViaTicket)
	return analysis, nil
}

// List はユーザーの分析一覧を作成日時降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Analysis, error) {
	analyses, err := s.analysisRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("分析一覧の取得に失敗しました: %w", err)
	}
	return analyses, nil
}

// Get は分析結果を取得する。他ユーザーの分析は存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, userID, analysisID string) (*model.Analysis, error) {
	analysis, err := s.analysisRepo.FindForUser(ctx, userID, analysisID)
	if err != nil {
		return nil, fmt.Errorf("分析結果の取得に失敗しました: %w", err)
	}
	if analysis == nil {
		return nil, model.NewAnalysisNotFoundError(analysisID)
	}
	return analysis, nil
}

// SetFavorite はお気に入りフラグを更新する。
func (s *Service) SetFavorite(ctx context.Context, userID, analysisID string, favorite bool) error {
	analysis, err := s.analysisRepo.FindForUser(ctx, userID, analysisID)
	if err != nil {
		return fmt.Errorf("分析結果の取得に失敗しました: %w", err)
	}
	if analysis == nil {
		return model.NewAnalysisNotFoundError(analysisID)
	}

	if err := s.analysisRepo.SetFavorite(ctx, userID, analysisID, favorite); err != nil {
		return fmt.Errorf("お気に入りの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は分析結果を削除する。
func (s *Service) Delete(ctx context.Context, userID, analysisID string) error {
	analysis, err := s.analysisRepo.FindForUser(ctx, userID, analysisID)
	if err != nil {
		return fmt.Errorf("分析結果の取得に失敗しました: %w", err)
	}
	if analysis == nil {
		return model.NewAnalysisNotFoundError(analysisID)
	}

	if err := s.analysisRepo.Delete(ctx, userID, analysisID); err != nil {
		return fmt.Errorf("分析結果の削除に失敗しました: %w", err)
	}
	return nil
}

// limitError は資格判定の拒否結果からクライアントエラーを組み立てる。
func limitError(e *entitlement.Eligibility) error {
	if e.Usage != nil {
		return model.NewLimitExceededError(e.Usage.Used, e.Usage.Limit)
	}
	return model.NewLimitExceededError(0, 0)
}

// sanitizeTags はタグ配列をサニタイズし、空になったタグを除去する。
func sanitizeTags(sanitizer security.ContentSanitizerService, tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := sanitizer.SanitizePlain(tag); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return cleaned
}
