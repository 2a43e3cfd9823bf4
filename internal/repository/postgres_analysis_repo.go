package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/careercompass/internal/model"
)

// PostgresAnalysisRepo はPostgreSQLを使用した分析結果リポジトリ。
type PostgresAnalysisRepo struct {
	db *sql.DB
}

// NewPostgresAnalysisRepo はPostgresAnalysisRepoを生成する。
func NewPostgresAnalysisRepo(db *sql.DB) *PostgresAnalysisRepo {
	return &PostgresAnalysisRepo{db: db}
}

const analysisColumns = `id, user_id, analysis_type, input_text, result_text, title, tags, is_favorite, via_ticket, created_at`

// Create は分析結果を作成する。
func (r *PostgresAnalysisRepo) Create(ctx context.Context, analysis *model.Analysis) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, analysis_type, input_text, result_text,
		    title, tags, is_favorite, via_ticket, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		analysis.ID, analysis.UserID, analysis.AnalysisType, analysis.InputText, analysis.ResultText,
		analysis.Title, pq.Array(analysis.Tags), analysis.IsFavorite, analysis.ViaTicket, analysis.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("分析結果の作成に失敗しました: %w", err)
	}
	return nil
}

// CountByTypesSince は指定種別群の分析件数をsince以降でカウントする。
// 当月利用回数はこのカウントで導出し、独立したカウンタは持たない。
func (r *PostgresAnalysisRepo) CountByTypesSince(ctx context.Context, userID string, types []model.AnalysisType, since time.Time) (int, error) {
	typeStrs := make([]string, len(types))
	for i, t := range types {
		typeStrs[i] = string(t)
	}

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses
		 WHERE user_id = $1 AND analysis_type = ANY($2) AND created_at >= $3`,
		userID, pq.Array(typeStrs), since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("分析件数のカウントに失敗しました: %w", err)
	}
	return count, nil
}

// CountByUser はユーザーの全分析件数を返す。
func (r *PostgresAnalysisRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("分析総件数のカウントに失敗しました: %w", err)
	}
	return count, nil
}

// ListByUser はユーザーの分析一覧を作成日時降順で返す。
func (r *PostgresAnalysisRepo) ListByUser(ctx context.Context, userID string) ([]*model.Analysis, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses
		 WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("分析一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var analyses []*model.Analysis
	for rows.Next() {
		a := &model.Analysis{}
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.AnalysisType, &a.InputText, &a.ResultText,
			&a.Title, pq.Array(&a.Tags), &a.IsFavorite, &a.ViaTicket, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("分析行の読み取りに失敗しました: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("分析一覧の走査に失敗しました: %w", err)
	}
	return analyses, nil
}

// FindForUser はユーザーIDと分析IDで分析結果を取得する。見つからない場合はnilを返す。
func (r *PostgresAnalysisRepo) FindForUser(ctx context.Context, userID, analysisID string) (*model.Analysis, error) {
	a := &model.Analysis{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1 AND user_id = $2`,
		analysisID, userID,
	).Scan(
		&a.ID, &a.UserID, &a.AnalysisType, &a.InputText, &a.ResultText,
		&a.Title, pq.Array(&a.Tags), &a.IsFavorite, &a.ViaTicket, &a.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("分析結果の取得に失敗しました: %w", err)
	}
	return a, nil
}

// SetFavorite はお気に入りフラグを更新する。
func (r *PostgresAnalysisRepo) SetFavorite(ctx context.Context, userID, analysisID string, favorite bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE analyses SET is_favorite = $3 WHERE id = $1 AND user_id = $2`,
		analysisID, userID, favorite,
	)
	if err != nil {
		return fmt.Errorf("お気に入りフラグの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("分析結果が見つかりません: %s", analysisID)
	}
	return nil
}

// Delete は分析結果を削除する。
func (r *PostgresAnalysisRepo) Delete(ctx context.Context, userID, analysisID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM analyses WHERE id = $1 AND user_id = $2`,
		analysisID, userID,
	)
	if err != nil {
		return fmt.Errorf("分析結果の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("分析結果が見つかりません: %s", analysisID)
	}
	return nil
}

// compile-time interface check
var _ AnalysisRepository = (*PostgresAnalysisRepo)(nil)
