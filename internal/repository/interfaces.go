// Package repository はデータ永続化のインターフェースを定義する。
// 全ての読み書きは所有者のuser_idをシグネチャとSQL述語の両方で要求し、
// 他ユーザーのデータへのアクセスを呼び出し規約ではなく型レベルで防ぐ。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/careercompass/internal/model"
)

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// FindByStripeCustomerID はStripe顧客IDでプロフィールを検索する。
	// Webhookの突合に使用する。見つからない場合はnilを返す。
	FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Profile, error)

	// CreateWithIdentity はプロフィールとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, profile *model.Profile, identity *model.Identity) error

	// Update は表示名とオンボーディング完了フラグを更新する。
	Update(ctx context.Context, userID, name string, onboardingCompleted bool) error

	// UpdateSubscriptionStatus はプロフィールのプラン表示を更新する。
	UpdateSubscriptionStatus(ctx context.Context, userID string, plan model.PlanID) error

	// UpdateStripeCustomerID はStripe顧客IDを保存する。
	UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SubscriptionRepository はサブスクリプション契約の永続化インターフェース。
type SubscriptionRepository interface {
	// Create はサブスクリプションを作成する。
	Create(ctx context.Context, sub *model.Subscription) error

	// FindForUser はユーザーIDとサブスクリプションIDで契約を取得する。
	// 他ユーザーの契約は存在しないものとして扱う。見つからない場合はnilを返す。
	FindForUser(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error)

	// FindActiveByUser はユーザーのアクティブな契約を取得する。見つからない場合はnilを返す。
	FindActiveByUser(ctx context.Context, userID string) (*model.Subscription, error)

	// FindByStripeID はStripeサブスクリプションIDで契約を検索する。
	// Webhookの突合に使用する。見つからない場合はnilを返す。
	FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error)

	// UpdateCancellation は契約を解約状態に更新する。
	UpdateCancellation(ctx context.Context, userID, subscriptionID, reason string, canceledAt time.Time) error

	// UpdatePlan は契約のプランと課金サイクルを更新する。
	UpdatePlan(ctx context.Context, userID, subscriptionID string, plan model.PlanID, cycle model.BillingCycle) error

	// UpdatePause は契約を指定日時まで一時停止する。
	UpdatePause(ctx context.Context, userID, subscriptionID string, pausedUntil time.Time) error
}

// TicketRepository は利用チケットの永続化インターフェース。
type TicketRepository interface {
	// Create はチケットバッチを作成する。
	Create(ctx context.Context, ticket *model.UsageTicket) error

	// ListUnexpiredByUser はユーザーの未失効バッチ一覧を有効期限昇順で返す。
	ListUnexpiredByUser(ctx context.Context, userID string, now time.Time) ([]*model.UsageTicket, error)

	// HasAvailable は指定種別の利用可能なバッチが存在するかを返す。
	// 資格チェックの読み取り専用パスで使用し、usedは変更しない。
	HasAvailable(ctx context.Context, userID string, ticketType model.TicketType, now time.Time) (bool, error)

	// ConsumeOne は有効期限が最も近い利用可能バッチのusedを1増やす。
	// used < quantity を述語で保証し、quantityを超える消費は起こらない。
	// 消費できるバッチがない場合はfalseを返す（エラーにはしない）。
	ConsumeOne(ctx context.Context, userID string, ticketType model.TicketType, now time.Time) (bool, error)
}

// AnalysisRepository は分析結果の永続化インターフェース。
type AnalysisRepository interface {
	// Create は分析結果を作成する。
	Create(ctx context.Context, analysis *model.Analysis) error

	// CountByTypesSince は指定種別群の分析件数をsince以降でカウントする。
	// 当月利用回数の導出に使用する（独立したカウンタは持たない）。
	CountByTypesSince(ctx context.Context, userID string, types []model.AnalysisType, since time.Time) (int, error)

	// CountByUser はユーザーの全分析件数を返す。紹介コード発行資格の判定に使用する。
	CountByUser(ctx context.Context, userID string) (int, error)

	// ListByUser はユーザーの分析一覧を作成日時降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Analysis, error)

	// FindForUser はユーザーIDと分析IDで分析結果を取得する。見つからない場合はnilを返す。
	FindForUser(ctx context.Context, userID, analysisID string) (*model.Analysis, error)

	// SetFavorite はお気に入りフラグを更新する。
	SetFavorite(ctx context.Context, userID, analysisID string, favorite bool) error

	// Delete は分析結果を削除する。
	Delete(ctx context.Context, userID, analysisID string) error
}

// ReferralRepository は紹介データの永続化インターフェース。
type ReferralRepository interface {
	// Create は紹介コードを作成する。
	Create(ctx context.Context, referral *model.Referral) error

	// FindByCode は紹介コードで紹介を検索する。見つからない場合はnilを返す。
	FindByCode(ctx context.Context, code string) (*model.Referral, error)

	// FindCompletedByReferee は被紹介者として完了済みの紹介を検索する。
	// 被紹介者は生涯1回までの制約判定に使用する。見つからない場合はnilを返す。
	FindCompletedByReferee(ctx context.Context, refereeID string) (*model.Referral, error)

	// ListByReferrer は紹介者の紹介一覧を作成日時降順で返す。
	ListByReferrer(ctx context.Context, referrerID string) ([]*model.Referral, error)

	// CompleteWithRewards は紹介のcompleted遷移と報酬チケットの発行を
	// 同一トランザクションで実行する。部分的な報酬付与を残さない。
	CompleteWithRewards(ctx context.Context, referralID, refereeID string, completedAt time.Time, rewards []*model.UsageTicket) error
}

// GoalRepository は目標データの永続化インターフェース。
type GoalRepository interface {
	// Create は目標を作成する。
	Create(ctx context.Context, goal *model.Goal) error
	// ListByUser はユーザーの目標一覧を作成日時降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Goal, error)
	// FindForUser はユーザーIDと目標IDで目標を取得する。見つからない場合はnilを返す。
	FindForUser(ctx context.Context, userID, goalID string) (*model.Goal, error)
	// UpdateStatus は目標の状態を更新する。
	UpdateStatus(ctx context.Context, userID, goalID string, status model.GoalStatus) error
	// Delete は目標を削除する。
	Delete(ctx context.Context, userID, goalID string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error
	// FindForUser はユーザーIDとタスクIDでタスクを取得する。見つからない場合はnilを返す。
	FindForUser(ctx context.Context, userID, taskID string) (*model.Task, error)
	// UpdateStatus はタスクの状態を更新する。
	UpdateStatus(ctx context.Context, userID, taskID string, status model.TaskStatus) error
	// Delete はタスクを削除する。
	Delete(ctx context.Context, userID, taskID string) error
}

// ContactRepository はお問い合わせの永続化インターフェース。
type ContactRepository interface {
	// Create はお問い合わせを作成する。
	Create(ctx context.Context, msg *model.ContactMessage) error
}

// ActivityLogRepository は活動記録の永続化インターフェース。
// 記録失敗は呼び出し側でログのみ残し、主処理には伝播させない。
type ActivityLogRepository interface {
	// Create は活動記録を作成する。
	Create(ctx context.Context, entry *model.ActivityLog) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
