package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/careercompass/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用したサブスクリプションリポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, billing_cycle, status,
	current_period_start, current_period_end, canceled_at, cancellation_reason,
	paused_until, stripe_subscription_id, created_at, updated_at`

func scanSubscription(row *sql.Row) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.BillingCycle, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CanceledAt, &sub.CancellationReason,
		&sub.PausedUntil, &sub.StripeSubscriptionID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Create はサブスクリプションを作成する。
func (r *PostgresSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_id, billing_cycle, status,
		    current_period_start, current_period_end, canceled_at, cancellation_reason,
		    paused_until, stripe_subscription_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sub.ID, sub.UserID, sub.PlanID, sub.BillingCycle, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CanceledAt, sub.CancellationReason,
		sub.PausedUntil, sub.StripeSubscriptionID, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの作成に失敗しました: %w", err)
	}
	return nil
}

// FindForUser はユーザーIDとサブスクリプションIDで契約を取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindForUser(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 AND user_id = $2`,
		subscriptionID, userID,
	))
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	return sub, nil
}

// FindActiveByUser はユーザーのアクティブな契約を取得する。見つからない場合はnilを返す。
// アクティブな契約は高々1件の前提だが、複数存在した場合は最新を返す。
func (r *PostgresSubscriptionRepo) FindActiveByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1 AND status = $2
		 ORDER BY created_at DESC LIMIT 1`,
		userID, model.SubscriptionStatusActive,
	))
	if err != nil {
		return nil, fmt.Errorf("アクティブなサブスクリプションの取得に失敗しました: %w", err)
	}
	return sub, nil
}

// FindByStripeID はStripeサブスクリプションIDで契約を検索する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`,
		stripeSubscriptionID,
	))
	if err != nil {
		return nil, fmt.Errorf("StripeIDによるサブスクリプションの検索に失敗しました: %w", err)
	}
	return sub, nil
}

// UpdateCancellation は契約を解約状態に更新する。
func (r *PostgresSubscriptionRepo) UpdateCancellation(ctx context.Context, userID, subscriptionID, reason string, canceledAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET status = $3, canceled_at = $4, cancellation_reason = $5, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2`,
		subscriptionID, userID, model.SubscriptionStatusCanceled, canceledAt, reason,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの解約更新に失敗しました: %w", err)
	}
	return checkAffected(result, subscriptionID)
}

// UpdatePlan は契約のプランと課金サイクルを更新する。
func (r *PostgresSubscriptionRepo) UpdatePlan(ctx context.Context, userID, subscriptionID string, plan model.PlanID, cycle model.BillingCycle) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET plan_id = $3, billing_cycle = $4, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2`,
		subscriptionID, userID, plan, cycle,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションのプラン更新に失敗しました: %w", err)
	}
	return checkAffected(result, subscriptionID)
}

// UpdatePause は契約を指定日時まで一時停止する。
func (r *PostgresSubscriptionRepo) UpdatePause(ctx context.Context, userID, subscriptionID string, pausedUntil time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $3, paused_until = $4, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2`,
		subscriptionID, userID, model.SubscriptionStatusPaused, pausedUntil,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの一時停止に失敗しました: %w", err)
	}
	return checkAffected(result, subscriptionID)
}

// checkAffected は更新対象が存在したことを検証する。
func checkAffected(result sql.Result, subscriptionID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("サブスクリプションが見つかりません: %s", subscriptionID)
	}
	return nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
