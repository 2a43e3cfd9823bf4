// Package cleanup は保持期限を超過したデータの自動削除ジョブを提供する。
// 日次バッチとして、プラン保持期間を超過した保存済み分析の削除、
// 期限切れ紹介コードのexpired遷移、期限切れセッションの削除を行う。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/careercompass/internal/model"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期限を超過したデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、全ての処理は冪等。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:     db,
		logger: logger,
	}
}

// Run は3種類のクリーンアップを順番に実行する。
// 個々の処理が失敗しても残りの処理は続行し、最後にまとめてエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	var firstErr error

	if err := j.sweepAnalyses(ctx); err != nil {
		firstErr = err
	}
	if err := j.expireReferrals(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.deleteExpiredSessions(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	duration := time.Since(start)
	j.logger.Info("cleanup job finished",
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return firstErr
}

// sweepAnalyses はプランの保持期間を超過した保存済み分析を削除する。
// 保持期間が有限（正の値）のプランのみが対象となる。
// 無料プランの保持日数0は「保存機能なし」を意味し、利用回数の算出に
// 使う分析レコードまで消すわけではないため、掃き出し対象にしない。
func (j *CleanupJob) sweepAnalyses(ctx context.Context) error {
	query := `
		DELETE FROM analyses a
		USING profiles p
		WHERE a.user_id = p.id
		  AND p.subscription_status = $1
		  AND a.created_at < now() - $2::interval`

	for plan, limits := range map[model.PlanID]model.PlanLimits{
		model.PlanStandard: model.LimitsForPlan(model.PlanStandard),
		model.PlanPremium:  model.LimitsForPlan(model.PlanPremium),
	} {
		if limits.RetentionDays <= 0 {
			continue
		}

		interval := fmt.Sprintf("%d days", limits.RetentionDays)
		result, err := j.db.ExecContext(ctx, query, string(plan), interval)
		if err != nil {
			j.logger.Error("analysis retention sweep failed",
				slog.String("plan", string(plan)),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("分析レコードの掃き出しに失敗しました: %w", err)
		}

		deleted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("削除件数の取得に失敗しました: %w", err)
		}

		j.logger.Info("analysis retention sweep completed",
			slog.String("plan", string(plan)),
			slog.Int("retention_days", limits.RetentionDays),
			slog.Int64("deleted_count", deleted),
		)
	}

	return nil
}

// expireReferrals は有効期限を過ぎたpendingの紹介コードをexpiredに遷移させる。
func (j *CleanupJob) expireReferrals(ctx context.Context) error {
	query := `
		UPDATE referrals
		SET status = $1
		WHERE status = $2 AND expires_at < now()`

	result, err := j.db.ExecContext(ctx, query,
		string(model.ReferralStatusExpired), string(model.ReferralStatusPending))
	if err != nil {
		j.logger.Error("referral expiry failed", slog.String("error", err.Error()))
		return fmt.Errorf("紹介コードの期限切れ処理に失敗しました: %w", err)
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}

	j.logger.Info("referral expiry completed", slog.Int64("expired_count", expired))
	return nil
}

// deleteExpiredSessions は有効期限を過ぎたセッションを削除する。
func (j *CleanupJob) deleteExpiredSessions(ctx context.Context) error {
	query := `DELETE FROM sessions WHERE expires_at < now()`

	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("session cleanup failed", slog.String("error", err.Error()))
		return fmt.Errorf("期限切れセッションの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	j.logger.Info("session cleanup completed", slog.Int64("deleted_count", deleted))
	return nil
}
