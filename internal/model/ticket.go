// Package model はドメインモデルを定義する。
package model

import "time"

// TicketType は利用チケットの種別を表す。
type TicketType string

const (
	// TicketTypeAnalysisNormal は通常分析（clarity/strengths/career/values）用チケット。
	TicketTypeAnalysisNormal TicketType = "analysis_normal"
	// TicketTypeAnalysisPersona はペルソナ分析専用チケット。
	TicketTypeAnalysisPersona TicketType = "analysis_persona"
)

// ValidTicketType はチケット種別として有効な値かどうかを返す。
func ValidTicketType(t TicketType) bool {
	return t == TicketTypeAnalysisNormal || t == TicketTypeAnalysisPersona
}

// TicketTypeForAnalysis は分析種別に対応するチケット種別を返す。
// analysis_normal は clarity/strengths/career/values を、
// analysis_persona は persona のみをカバーする。
func TicketTypeForAnalysis(t AnalysisType) (TicketType, bool) {
	switch t {
	case AnalysisTypeClarity, AnalysisTypeStrengths, AnalysisTypeCareer, AnalysisTypeValues:
		return TicketTypeAnalysisNormal, true
	case AnalysisTypePersona:
		return TicketTypeAnalysisPersona, true
	}
	return "", false
}

// TicketSource はチケット発行の由来を表す。
type TicketSource string

const (
	// TicketSourcePurchase は購入によるチケット発行。
	TicketSourcePurchase TicketSource = "purchase"
	// TicketSourceReferralReward は紹介報酬によるチケット発行。
	TicketSourceReferralReward TicketSource = "referral_reward"
)

// UsageTicket は購入・付与された利用チケットのバッチを表す。
// available = quantity - used で残数を計算し、expires_atを過ぎると使用できない。
type UsageTicket struct {
	ID                    string
	UserID                string
	TicketType            TicketType
	Quantity              int
	Used                  int
	Source                TicketSource
	ExpiresAt             time.Time
	StripePaymentIntentID string
	CreatedAt             time.Time
}

// Available はバッチの残利用可能数を返す。負にはならない。
func (t *UsageTicket) Available() int {
	remaining := t.Quantity - t.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TicketProduct はチケット商品の静的定義を表す。
// チケット商品はStripe側に事前登録せず、この定義からline itemを組み立てる。
type TicketProduct struct {
	TicketType  TicketType
	Name        string
	Description string
	UnitPrice   int64  // 単価（最小通貨単位）
	Currency    string // ISO通貨コード
}

// ticketProductTable はチケット商品カタログ。2商品のみ定義する。
var ticketProductTable = map[TicketType]TicketProduct{
	TicketTypeAnalysisNormal: {
		TicketType:  TicketTypeAnalysisNormal,
		Name:        "通常分析チケット",
		Description: "自己明確化・強み・キャリアパス・価値観分析に1回ずつ利用できるチケット",
		UnitPrice:   500,
		Currency:    "jpy",
	},
	TicketTypeAnalysisPersona: {
		TicketType:  TicketTypeAnalysisPersona,
		Name:        "ペルソナ分析チケット",
		Description: "ペルソナ分析に1回利用できるチケット",
		UnitPrice:   980,
		Currency:    "jpy",
	},
}

// ProductForTicketType は指定チケット種別の商品定義を返す。
func ProductForTicketType(t TicketType) (TicketProduct, bool) {
	p, ok := ticketProductTable[t]
	return p, ok
}

// TicketProducts は全チケット商品を返す。表示順は通常→ペルソナで固定。
func TicketProducts() []TicketProduct {
	return []TicketProduct{
		ticketProductTable[TicketTypeAnalysisNormal],
		ticketProductTable[TicketTypeAnalysisPersona],
	}
}

// チケット購入数量の許容範囲。
const (
	MinTicketQuantity = 1
	MaxTicketQuantity = 10
)

// ValidTicketQuantity はチケット購入数量が許容範囲内かどうかを返す。
func ValidTicketQuantity(quantity int) bool {
	return quantity >= MinTicketQuantity && quantity <= MaxTicketQuantity
}

// PurchasedTicketValidityDays は購入チケットの有効日数。
const PurchasedTicketValidityDays = 90
