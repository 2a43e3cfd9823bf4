package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/careercompass/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

const profileColumns = `id, email, name, subscription_status, onboarding_completed, stripe_customer_id, created_at, updated_at`

func scanProfile(row *sql.Row) (*model.Profile, error) {
	p := &model.Profile{}
	err := row.Scan(
		&p.ID, &p.Email, &p.Name, &p.SubscriptionStatus,
		&p.OnboardingCompleted, &p.StripeCustomerID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	return p, nil
}

// FindByStripeCustomerID はStripe顧客IDでプロフィールを検索する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE stripe_customer_id = $1`, customerID,
	))
	if err != nil {
		return nil, fmt.Errorf("Stripe顧客IDによるプロフィールの検索に失敗しました: %w", err)
	}
	return p, nil
}

// CreateWithIdentity はプロフィールとidentityを同一トランザクションで作成する。
func (r *PostgresProfileRepo) CreateWithIdentity(ctx context.Context, profile *model.Profile, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, email, name, subscription_status, onboarding_completed, stripe_customer_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		profile.ID, profile.Email, profile.Name, profile.SubscriptionStatus,
		profile.OnboardingCompleted, profile.StripeCustomerID, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("identityの作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Update は表示名とオンボーディング完了フラグを更新する。
func (r *PostgresProfileRepo) Update(ctx context.Context, userID, name string, onboardingCompleted bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET name = $2, onboarding_completed = $3, updated_at = NOW() WHERE id = $1`,
		userID, name, onboardingCompleted,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("プロフィールが見つかりません: %s", userID)
	}
	return nil
}

// UpdateSubscriptionStatus はプロフィールのプラン表示を更新する。
func (r *PostgresProfileRepo) UpdateSubscriptionStatus(ctx context.Context, userID string, plan model.PlanID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET subscription_status = $2, updated_at = NOW() WHERE id = $1`,
		userID, plan,
	)
	if err != nil {
		return fmt.Errorf("プラン表示の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateStripeCustomerID はStripe顧客IDを保存する。
func (r *PostgresProfileRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`,
		userID, customerID,
	)
	if err != nil {
		return fmt.Errorf("Stripe顧客IDの保存に失敗しました: %w", err)
	}
	return nil
}

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	ident := &model.Identity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, created_at
		 FROM identities WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&ident.ID, &ident.UserID, &ident.Provider, &ident.ProviderUserID, &ident.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identityの検索に失敗しました: %w", err)
	}
	return ident, nil
}

// compile-time interface check
var (
	_ ProfileRepository  = (*PostgresProfileRepo)(nil)
	_ IdentityRepository = (*PostgresIdentityRepo)(nil)
)
