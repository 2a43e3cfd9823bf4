// Package model はドメインモデルを定義する。
package model

import "time"

// SubscriptionStatus はサブスクリプションの状態を表す。
type SubscriptionStatus string

const (
	// SubscriptionStatusActive は有効なサブスクリプション。
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusCanceled は解約済みのサブスクリプション。
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	// SubscriptionStatusPaused は一時停止中のサブスクリプション。
	SubscriptionStatusPaused SubscriptionStatus = "paused"
)

// Subscription はユーザーの有料プラン契約を表す。
// チェックアウト成功時に作成され、解約・ダウングレード・一時停止操作で更新される。
// アクティブな契約はユーザーごとに高々1件。
type Subscription struct {
	ID                   string
	UserID               string
	PlanID               PlanID
	BillingCycle         BillingCycle
	Status               SubscriptionStatus
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CanceledAt           *time.Time
	CancellationReason   string
	PausedUntil          *time.Time
	StripeSubscriptionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Goal はユーザーが設定したキャリア目標を表す。
type Goal struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      GoalStatus
	TargetDate  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GoalStatus は目標の状態を表す。
type GoalStatus string

const (
	// GoalStatusActive は進行中の目標。
	GoalStatusActive GoalStatus = "active"
	// GoalStatusCompleted は達成済みの目標。
	GoalStatusCompleted GoalStatus = "completed"
	// GoalStatusPaused は保留中の目標。
	GoalStatusPaused GoalStatus = "paused"
)

// ValidGoalStatus は目標の状態として有効な値かどうかを返す。
func ValidGoalStatus(s GoalStatus) bool {
	return s == GoalStatusActive || s == GoalStatusCompleted || s == GoalStatusPaused
}

// Task は目標に紐づくタスクを表す。GoalIDは任意。
type Task struct {
	ID        string
	UserID    string
	GoalID    string // 紐づく目標がない場合は空
	Title     string
	Status    TaskStatus
	DueDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskStatus はタスクの状態を表す。
type TaskStatus string

const (
	// TaskStatusPending は未着手のタスク。
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress は進行中のタスク。
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted は完了済みのタスク。
	TaskStatusCompleted TaskStatus = "completed"
)

// ValidTaskStatus はタスクの状態として有効な値かどうかを返す。
func ValidTaskStatus(s TaskStatus) bool {
	return s == TaskStatusPending || s == TaskStatusInProgress || s == TaskStatusCompleted
}

// ContactMessage はお問い合わせフォームからの投稿を表す。
type ContactMessage struct {
	ID        string
	UserID    string
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
}

// ActivityLog はユーザー操作の活動記録を表す。
// 記録はベストエフォートであり、失敗しても主処理を妨げない。
type ActivityLog struct {
	ID        string
	UserID    string
	Action    string
	Detail    string
	CreatedAt time.Time
}
