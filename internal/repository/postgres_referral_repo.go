package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/careercompass/internal/model"
)

// PostgresReferralRepo はPostgreSQLを使用した紹介リポジトリ。
type PostgresReferralRepo struct {
	db *sql.DB
}

// NewPostgresReferralRepo はPostgresReferralRepoを生成する。
func NewPostgresReferralRepo(db *sql.DB) *PostgresReferralRepo {
	return &PostgresReferralRepo{db: db}
}

const referralColumns = `id, code, referrer_id, referee_id, status, reward_type, expires_at, completed_at, created_at`

func scanReferral(row *sql.Row) (*model.Referral, error) {
	ref := &model.Referral{}
	err := row.Scan(
		&ref.ID, &ref.Code, &ref.ReferrerID, &ref.RefereeID, &ref.Status,
		&ref.RewardType, &ref.ExpiresAt, &ref.CompletedAt, &ref.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// Create は紹介コードを作成する。
func (r *PostgresReferralRepo) Create(ctx context.Context, referral *model.Referral) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO referrals (id, code, referrer_id, referee_id, status, reward_type, expires_at, completed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		referral.ID, referral.Code, referral.ReferrerID, referral.RefereeID, referral.Status,
		referral.RewardType, referral.ExpiresAt, referral.CompletedAt, referral.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("紹介コードの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByCode は紹介コードで紹介を検索する。見つからない場合はnilを返す。
func (r *PostgresReferralRepo) FindByCode(ctx context.Context, code string) (*model.Referral, error) {
	ref, err := scanReferral(r.db.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE code = $1`, code,
	))
	if err != nil {
		return nil, fmt.Errorf("紹介コードの検索に失敗しました: %w", err)
	}
	return ref, nil
}

// FindCompletedByReferee は被紹介者として完了済みの紹介を検索する。見つからない場合はnilを返す。
func (r *PostgresReferralRepo) FindCompletedByReferee(ctx context.Context, refereeID string) (*model.Referral, error) {
	ref, err := scanReferral(r.db.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals
		 WHERE referee_id = $1 AND status = $2`,
		refereeID, model.ReferralStatusCompleted,
	))
	if err != nil {
		return nil, fmt.Errorf("被紹介者の完了済み紹介の検索に失敗しました: %w", err)
	}
	return ref, nil
}

// ListByReferrer は紹介者の紹介一覧を作成日時降順で返す。
func (r *PostgresReferralRepo) ListByReferrer(ctx context.Context, referrerID string) ([]*model.Referral, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+referralColumns+` FROM referrals
		 WHERE referrer_id = $1 ORDER BY created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("紹介一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var refs []*model.Referral
	for rows.Next() {
		ref := &model.Referral{}
		if err := rows.Scan(
			&ref.ID, &ref.Code, &ref.ReferrerID, &ref.RefereeID, &ref.Status,
			&ref.RewardType, &ref.ExpiresAt, &ref.CompletedAt, &ref.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("紹介行の読み取りに失敗しました: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("紹介一覧の走査に失敗しました: %w", err)
	}
	return refs, nil
}

// CompleteWithRewards は紹介のcompleted遷移と報酬チケットの発行を
// 同一トランザクションで実行する。ステータス更新後に報酬付与だけが失敗して
// 不整合な状態が残ることを防ぐ。
func (r *PostgresReferralRepo) CompleteWithRewards(ctx context.Context, referralID, refereeID string, completedAt time.Time, rewards []*model.UsageTicket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// pending以外からの遷移を防ぐため、述語でステータスを固定する
	result, err := tx.ExecContext(ctx,
		`UPDATE referrals
		 SET status = $2, referee_id = $3, completed_at = $4
		 WHERE id = $1 AND status = $5`,
		referralID, model.ReferralStatusCompleted, refereeID, completedAt, model.ReferralStatusPending,
	)
	if err != nil {
		return fmt.Errorf("紹介の完了更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("完了可能な紹介が見つかりません: %s", referralID)
	}

	for _, ticket := range rewards {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO usage_tickets (id, user_id, ticket_type, quantity, used, source,
			    expires_at, stripe_payment_intent_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ticket.ID, ticket.UserID, ticket.TicketType, ticket.Quantity, ticket.Used,
			ticket.Source, ticket.ExpiresAt, ticket.StripePaymentIntentID, ticket.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("報酬チケットの発行に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ReferralRepository = (*PostgresReferralRepo)(nil)
