// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はサービス利用ユーザーのプロフィールを表す。
// 初回ログイン時に自動作成され、ユーザーIDごとに必ず1件存在する。
type Profile struct {
	ID                  string
	Email               string
	Name                string
	SubscriptionStatus  PlanID // free / standard / premium
	OnboardingCompleted bool
	StripeCustomerID    string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
