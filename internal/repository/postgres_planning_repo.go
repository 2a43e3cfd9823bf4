package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/careercompass/internal/model"
)

// PostgresGoalRepo はPostgreSQLを使用した目標リポジトリ。
type PostgresGoalRepo struct {
	db *sql.DB
}

// NewPostgresGoalRepo はPostgresGoalRepoを生成する。
func NewPostgresGoalRepo(db *sql.DB) *PostgresGoalRepo {
	return &PostgresGoalRepo{db: db}
}

const goalColumns = `id, user_id, title, description, status, target_date, created_at, updated_at`

// Create は目標を作成する。
func (r *PostgresGoalRepo) Create(ctx context.Context, goal *model.Goal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, title, description, status, target_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		goal.ID, goal.UserID, goal.Title, goal.Description, goal.Status,
		goal.TargetDate, goal.CreatedAt, goal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("目標の作成に失敗しました: %w", err)
	}
	return nil
}

// ListByUser はユーザーの目標一覧を作成日時降順で返す。
func (r *PostgresGoalRepo) ListByUser(ctx context.Context, userID string) ([]*model.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("目標一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var goals []*model.Goal
	for rows.Next() {
		g := &model.Goal{}
		if err := rows.Scan(
			&g.ID, &g.UserID, &g.Title, &g.Description, &g.Status,
			&g.TargetDate, &g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("目標行の読み取りに失敗しました: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("目標一覧の走査に失敗しました: %w", err)
	}
	return goals, nil
}

// FindForUser はユーザーIDと目標IDで目標を取得する。見つからない場合はnilを返す。
func (r *PostgresGoalRepo) FindForUser(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	g := &model.Goal{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`,
		goalID, userID,
	).Scan(
		&g.ID, &g.UserID, &g.Title, &g.Description, &g.Status,
		&g.TargetDate, &g.CreatedAt, &g.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("目標の取得に失敗しました: %w", err)
	}
	return g, nil
}

// UpdateStatus は目標の状態を更新する。
func (r *PostgresGoalRepo) UpdateStatus(ctx context.Context, userID, goalID string, status model.GoalStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE goals SET status = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		goalID, userID, status,
	)
	if err != nil {
		return fmt.Errorf("目標の状態更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("目標が見つかりません: %s", goalID)
	}
	return nil
}

// Delete は目標を削除する。
func (r *PostgresGoalRepo) Delete(ctx context.Context, userID, goalID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = $1 AND user_id = $2`,
		goalID, userID,
	)
	if err != nil {
		return fmt.Errorf("目標の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("目標が見つかりません: %s", goalID)
	}
	return nil
}

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `id, user_id, goal_id, title, status, due_date, created_at, updated_at`

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, goal_id, title, status, due_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		task.ID, task.UserID, task.GoalID, task.Title, task.Status,
		task.DueDate, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return nil
}

// FindForUser はユーザーIDとタスクIDでタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindForUser(ctx context.Context, userID, taskID string) (*model.Task, error) {
	t := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	).Scan(
		&t.ID, &t.UserID, &t.GoalID, &t.Title, &t.Status,
		&t.DueDate, &t.CreatedAt, &t.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return t, nil
}

// UpdateStatus はタスクの状態を更新する。
func (r *PostgresTaskRepo) UpdateStatus(ctx context.Context, userID, taskID string, status model.TaskStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		taskID, userID, status,
	)
	if err != nil {
		return fmt.Errorf("タスクの状態更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("タスクが見つかりません: %s", taskID)
	}
	return nil
}

// Delete はタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, userID, taskID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("タスクが見つかりません: %s", taskID)
	}
	return nil
}

// compile-time interface check
var (
	_ GoalRepository = (*PostgresGoalRepo)(nil)
	_ TaskRepository = (*PostgresTaskRepo)(nil)
)
