package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/careercompass/internal/model"
)

// PostgresActivityLogRepo はPostgreSQLを使用した活動記録リポジトリ。
type PostgresActivityLogRepo struct {
	db *sql.DB
}

// NewPostgresActivityLogRepo はPostgresActivityLogRepoを生成する。
func NewPostgresActivityLogRepo(db *sql.DB) *PostgresActivityLogRepo {
	return &PostgresActivityLogRepo{db: db}
}

// Create は活動記録を作成する。
func (r *PostgresActivityLogRepo) Create(ctx context.Context, entry *model.ActivityLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, user_id, action, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.UserID, entry.Action, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("活動記録の作成に失敗しました: %w", err)
	}
	return nil
}

// PostgresContactRepo はPostgreSQLを使用したお問い合わせリポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

// Create はお問い合わせを作成する。
func (r *PostgresContactRepo) Create(ctx context.Context, msg *model.ContactMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contact_messages (id, user_id, email, subject, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.UserID, msg.Email, msg.Subject, msg.Message, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("お問い合わせの作成に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ ActivityLogRepository = (*PostgresActivityLogRepo)(nil)
	_ ContactRepository     = (*PostgresContactRepo)(nil)
)
