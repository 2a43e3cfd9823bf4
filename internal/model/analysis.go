// Package model はドメインモデルを定義する。
package model

import "time"

// AnalysisType はAI自己分析の種別を表す。
type AnalysisType string

const (
	// AnalysisTypeClarity は自己明確化分析。
	AnalysisTypeClarity AnalysisType = "clarity"
	// AnalysisTypeStrengths は強み分析。
	AnalysisTypeStrengths AnalysisType = "strengths"
	// AnalysisTypeCareer はキャリアパス分析。
	AnalysisTypeCareer AnalysisType = "career"
	// AnalysisTypeValues は価値観分析。
	AnalysisTypeValues AnalysisType = "values"
	// AnalysisTypePersona はペルソナ分析。
	AnalysisTypePersona AnalysisType = "persona"
)

// ValidAnalysisType は分析種別として有効な値かどうかを返す。
func ValidAnalysisType(t AnalysisType) bool {
	switch t {
	case AnalysisTypeClarity, AnalysisTypeStrengths, AnalysisTypeCareer,
		AnalysisTypeValues, AnalysisTypePersona:
		return true
	}
	return false
}

// Analysis は保存されたAI分析結果を表す。
// 当月の分析実行回数はこのレコードを期間内でカウントして導出する
// （独立したカウンタは持たない）。
type Analysis struct {
	ID           string
	UserID       string
	AnalysisType AnalysisType
	InputText    string
	ResultText   string
	Title        string
	Tags         []string
	IsFavorite   bool
	ViaTicket    bool
	CreatedAt    time.Time
}
