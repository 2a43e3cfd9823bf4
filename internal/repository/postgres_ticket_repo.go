package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/careercompass/internal/model"
)

// PostgresTicketRepo はPostgreSQLを使用した利用チケットリポジトリ。
type PostgresTicketRepo struct {
	db *sql.DB
}

// NewPostgresTicketRepo はPostgresTicketRepoを生成する。
func NewPostgresTicketRepo(db *sql.DB) *PostgresTicketRepo {
	return &PostgresTicketRepo{db: db}
}

// Create はチケットバッチを作成する。
func (r *PostgresTicketRepo) Create(ctx context.Context, ticket *model.UsageTicket) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usage_tickets (id, user_id, ticket_type, quantity, used, source,
		    expires_at, stripe_payment_intent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ticket.ID, ticket.UserID, ticket.TicketType, ticket.Quantity, ticket.Used,
		ticket.Source, ticket.ExpiresAt, ticket.StripePaymentIntentID, ticket.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("チケットバッチの作成に失敗しました: %w", err)
	}
	return nil
}

// ListUnexpiredByUser はユーザーの未失効バッチ一覧を有効期限昇順で返す。
func (r *PostgresTicketRepo) ListUnexpiredByUser(ctx context.Context, userID string, now time.Time) ([]*model.UsageTicket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, ticket_type, quantity, used, source,
		    expires_at, stripe_payment_intent_id, created_at
		 FROM usage_tickets
		 WHERE user_id = $1 AND expires_at > $2
		 ORDER BY expires_at ASC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("チケットバッチ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tickets []*model.UsageTicket
	for rows.Next() {
		t := &model.UsageTicket{}
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.TicketType, &t.Quantity, &t.Used, &t.Source,
			&t.ExpiresAt, &t.StripePaymentIntentID, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("チケット行の読み取りに失敗しました: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チケットバッチ一覧の走査に失敗しました: %w", err)
	}
	return tickets, nil
}

// HasAvailable は指定種別の利用可能なバッチが存在するかを返す。usedは変更しない。
func (r *PostgresTicketRepo) HasAvailable(ctx context.Context, userID string, ticketType model.TicketType, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM usage_tickets
		    WHERE user_id = $1 AND ticket_type = $2 AND expires_at > $3 AND used < quantity
		 )`,
		userID, ticketType, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("利用可能チケットの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ConsumeOne は有効期限が最も近い利用可能バッチのusedを1増やす。
// 廃棄を最小化するため、失効が近いバッチから消費する。
// UPDATE述語の used < quantity により、quantityを超える消費は同時実行でも起こらない。
// 消費できるバッチがない場合はfalseを返す。
func (r *PostgresTicketRepo) ConsumeOne(ctx context.Context, userID string, ticketType model.TicketType, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE usage_tickets SET used = used + 1
		 WHERE id = (
		    SELECT id FROM usage_tickets
		    WHERE user_id = $1 AND ticket_type = $2 AND expires_at > $3 AND used < quantity
		    ORDER BY expires_at ASC
		    LIMIT 1
		    FOR UPDATE SKIP LOCKED
		 ) AND used < quantity`,
		userID, ticketType, now,
	)
	if err != nil {
		return false, fmt.Errorf("チケットの消費に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("消費結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TicketRepository = (*PostgresTicketRepo)(nil)
