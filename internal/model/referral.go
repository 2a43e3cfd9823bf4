// Package model はドメインモデルを定義する。
package model

import "time"

// ReferralStatus は紹介の状態を表す。
// 遷移は pending → completed（適用成功時）または pending → expired（期限切れ）のみ。
type ReferralStatus string

const (
	// ReferralStatusPending は未使用の紹介コード。
	ReferralStatusPending ReferralStatus = "pending"
	// ReferralStatusCompleted は被紹介者が適用済みの紹介。
	ReferralStatusCompleted ReferralStatus = "completed"
	// ReferralStatusExpired は期限切れの紹介コード。
	ReferralStatusExpired ReferralStatus = "expired"
)

// Referral は紹介者と被紹介者のペアリングを表す。
// コード生成時に作成され、被紹介者の適用成功でcompletedに遷移する。
// 被紹介者は生涯で1回しか紹介を完了できない。
type Referral struct {
	ID          string
	Code        string
	ReferrerID  string
	RefereeID   string // 適用されるまで空
	Status      ReferralStatus
	RewardType  string
	ExpiresAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// ReferralReward は紹介成立時に両者へ付与する報酬の静的定義。
type ReferralReward struct {
	TicketType   TicketType
	TicketCount  int
	ValidityDays int
}

// ReferralRewards は紹介者・被紹介者それぞれへの報酬テーブル。
// 報酬内容の変更はここで一元管理する。
var ReferralRewards = struct {
	Referrer ReferralReward
	Referee  ReferralReward
}{
	Referrer: ReferralReward{
		TicketType:   TicketTypeAnalysisNormal,
		TicketCount:  2,
		ValidityDays: 90,
	},
	Referee: ReferralReward{
		TicketType:   TicketTypeAnalysisNormal,
		TicketCount:  1,
		ValidityDays: 90,
	},
}

// ReferralCodeValidityDays は紹介コードの有効日数。
const ReferralCodeValidityDays = 30
