// Package model はドメインモデルを定義する。
package model

// PlanID はサブスクリプションプランの識別子を表す。
type PlanID string

const (
	// PlanFree は無料プラン。
	PlanFree PlanID = "free"
	// PlanStandard はスタンダードプラン。
	PlanStandard PlanID = "standard"
	// PlanPremium はプレミアムプラン。
	PlanPremium PlanID = "premium"
)

// BillingCycle は課金サイクルを表す。
type BillingCycle string

const (
	// BillingCycleMonthly は月額課金。
	BillingCycleMonthly BillingCycle = "monthly"
	// BillingCycleYearly は年額課金。
	BillingCycleYearly BillingCycle = "yearly"
)

// UnlimitedLimit はプラン上限の「無制限」を表す番兵値。
// 有限の利用回数とは区別され、利用回数に関わらず常に許可される。
const UnlimitedLimit = -1

// PlanLimits はプランごとの月間利用上限と機能制限を定義する。
type PlanLimits struct {
	// NormalAnalysisLimit は通常分析（clarity/strengths/career/values）の月間上限。
	NormalAnalysisLimit int
	// PersonaAnalysisLimit はペルソナ分析の月間上限。
	PersonaAnalysisLimit int
	// CanSaveAnalysis は分析結果の保存可否。無料プランでは保存できない。
	CanSaveAnalysis bool
	// RetentionDays は保存済み分析の保持日数。UnlimitedLimitで無期限。
	RetentionDays int
}

// planLimitsTable はプランごとの上限定義テーブル。
// 上限値の変更はここで一元管理する。
var planLimitsTable = map[PlanID]PlanLimits{
	PlanFree: {
		NormalAnalysisLimit:  3,
		PersonaAnalysisLimit: 0,
		CanSaveAnalysis:      false,
		RetentionDays:        0,
	},
	PlanStandard: {
		NormalAnalysisLimit:  20,
		PersonaAnalysisLimit: 1,
		CanSaveAnalysis:      true,
		RetentionDays:        90,
	},
	PlanPremium: {
		NormalAnalysisLimit:  UnlimitedLimit,
		PersonaAnalysisLimit: 5,
		CanSaveAnalysis:      true,
		RetentionDays:        UnlimitedLimit,
	},
}

// LimitsForPlan は指定プランの上限定義を返す。
// 未知のプランIDは無料プランの上限として扱う。
func LimitsForPlan(plan PlanID) PlanLimits {
	if limits, ok := planLimitsTable[plan]; ok {
		return limits
	}
	return planLimitsTable[PlanFree]
}

// IsPaidPlan は有料プランかどうかを返す。
func IsPaidPlan(plan PlanID) bool {
	return plan == PlanStandard || plan == PlanPremium
}

// ValidPlan はプランIDとして定義済みの値かどうかを返す。
func ValidPlan(plan PlanID) bool {
	return plan == PlanFree || IsPaidPlan(plan)
}

// ValidPlanForCheckout はチェックアウト対象として有効なプランかどうかを返す。
// 無料プランは購入対象にならない。
func ValidPlanForCheckout(plan PlanID) bool {
	return IsPaidPlan(plan)
}

// ValidBillingCycle は課金サイクルとして有効な値かどうかを返す。
func ValidBillingCycle(cycle BillingCycle) bool {
	return cycle == BillingCycleMonthly || cycle == BillingCycleYearly
}
