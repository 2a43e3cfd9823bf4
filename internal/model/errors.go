// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含み、そのままJSONレスポンスになる。
type APIError struct {
	Code     string `json:"code"`     // エラーコード
	Message  string `json:"message"`  // エラーメッセージ
	Category string `json:"category"` // カテゴリ: auth, validation, entitlement, billing, referral, system
	Action   string `json:"action"`   // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeLimitExceeded       = "LIMIT_EXCEEDED"
	ErrCodeSaveNotAllowed      = "SAVE_NOT_ALLOWED"
	ErrCodeInvalidAnalysisType = "INVALID_ANALYSIS_TYPE"
	ErrCodeAnalysisNotFound    = "ANALYSIS_NOT_FOUND"
	ErrCodeInvalidTicketType   = "INVALID_TICKET_TYPE"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeInvalidReferralCode = "INVALID_REFERRAL_CODE"
	ErrCodeReferralNotEligible = "REFERRAL_NOT_ELIGIBLE"
	ErrCodeInvalidPlan         = "INVALID_PLAN"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeGoalNotFound        = "GOAL_NOT_FOUND"
	ErrCodeTaskNotFound        = "TASK_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewLimitExceededError はプラン上限到達エラーを生成する。
// アップセル表示のため、現在の利用回数・上限・チケット単価を含む。
func NewLimitExceededError(used, limit int) *APIError {
	return &APIError{
		Code:     ErrCodeLimitExceeded,
		Message:  fmt.Sprintf("今月の分析回数が上限に達しています（%d/%d回）。", used, limit),
		Category: "entitlement",
		Action:   "プランをアップグレードするか、分析チケットを購入してください。",
	}
}

// NewSaveNotAllowedError は保存不可エラーを生成する。
// 分析結果の保存は有料プランの機能であり、利用回数とは独立して拒否される。
func NewSaveNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeSaveNotAllowed,
		Message:  "無料プランでは分析結果を保存できません。",
		Category: "entitlement",
		Action:   "分析結果を保存するには有料プランにアップグレードしてください。",
	}
}

// NewInvalidAnalysisTypeError は無効な分析種別エラーを生成する。
func NewInvalidAnalysisTypeError(t string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAnalysisType,
		Message:  fmt.Sprintf("無効な分析種別です: %s", t),
		Category: "validation",
		Action:   "分析種別には clarity、strengths、career、values、persona のいずれかを指定してください。",
	}
}

// NewAnalysisNotFoundError は分析結果未検出エラーを生成する。
func NewAnalysisNotFoundError(analysisID string) *APIError {
	return &APIError{
		Code:     ErrCodeAnalysisNotFound,
		Message:  fmt.Sprintf("指定された分析結果が見つかりません: %s", analysisID),
		Category: "validation",
		Action:   "分析IDを確認してください。",
	}
}

// NewInvalidTicketTypeError は無効なチケット種別エラーを生成する。
func NewInvalidTicketTypeError(t string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTicketType,
		Message:  fmt.Sprintf("無効なチケット種別です: %s", t),
		Category: "validation",
		Action:   "チケット種別には analysis_normal または analysis_persona を指定してください。",
	}
}

// NewInvalidQuantityError は無効な購入数量エラーを生成する。
func NewInvalidQuantityError(quantity int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuantity,
		Message:  fmt.Sprintf("無効な購入数量です: %d", quantity),
		Category: "validation",
		Action:   fmt.Sprintf("購入数量は%dから%dの整数で指定してください。", MinTicketQuantity, MaxTicketQuantity),
	}
}

// NewInvalidReferralCodeError は紹介コード検証失敗エラーを生成する。
// reasonには機械判定可能な理由コード（invalid_code等）を指定する。
func NewInvalidReferralCodeError(reason string) *APIError {
	messages := map[string]string{
		"invalid_code":         "紹介コードが見つかりません。",
		"expired":              "紹介コードの有効期限が切れています。",
		"self_referral":        "自分の紹介コードは使用できません。",
		"already_used":         "紹介コードは既に使用済みです。紹介の適用は1回までです。",
		"referrer_not_premium": "この紹介コードは現在利用できません。",
		"referrer_no_analysis": "この紹介コードは現在利用できません。",
	}
	msg, ok := messages[reason]
	if !ok {
		msg = "紹介コードを適用できません。"
	}
	return &APIError{
		Code:     ErrCodeInvalidReferralCode,
		Message:  msg,
		Category: "referral",
		Action:   "紹介コードを確認してください。",
	}
}

// NewReferralNotEligibleError は紹介コード発行資格なしエラーを生成する。
func NewReferralNotEligibleError() *APIError {
	return &APIError{
		Code:     ErrCodeReferralNotEligible,
		Message:  "紹介コードを発行するには、有料プランの契約と1回以上の分析実行が必要です。",
		Category: "referral",
		Action:   "有料プランに加入し、分析を1回以上実行してください。",
	}
}

// NewInvalidPlanError は無効なプラン設定エラーを生成する。
// 価格テーブルで解決できないプランと課金サイクルの組み合わせに対して返す。
func NewInvalidPlanError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlan,
		Message:  "無効なプラン設定です。",
		Category: "billing",
		Action:   "プランと課金サイクルの組み合わせを確認してください。",
	}
}

// NewWebhookSignatureError はWebhook署名検証失敗エラーを生成する。
// 副作用を発生させる前にペイロードを拒否するために使用する。
func NewWebhookSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignature,
		Message:  "Webhook署名の検証に失敗しました。",
		Category: "validation",
		Action:   "署名シークレットの設定を確認してください。",
	}
}

// NewSubscriptionNotFoundError はサブスクリプション未検出エラーを生成する。
func NewSubscriptionNotFoundError(subscriptionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  fmt.Sprintf("指定されたサブスクリプションが見つかりません: %s", subscriptionID),
		Category: "billing",
		Action:   "サブスクリプションIDを確認してください。",
	}
}

// NewGoalNotFoundError は目標未検出エラーを生成する。
func NewGoalNotFoundError(goalID string) *APIError {
	return &APIError{
		Code:     ErrCodeGoalNotFound,
		Message:  fmt.Sprintf("指定された目標が見つかりません: %s", goalID),
		Category: "validation",
		Action:   "目標IDを確認してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "validation",
		Action:   "タスクIDを確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
