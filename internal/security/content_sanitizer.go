// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー入力およびAI生成コンテンツをサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はコンテンツのサニタイズ機能のインターフェースを定義する。
// 分析結果・タイトル・タグ・お問い合わせ本文などの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize はAI生成の分析結果HTMLをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, ul, ol, li, blockquote, pre, code, strong, em, h2, h3, h4）
	// のみを通過させ、script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string

	// SanitizePlain はタイトル・タグ・お問い合わせ本文などのプレーンテキスト入力から
	// 全てのHTMLタグを除去し、前後の空白を取り除いて返す。
	SanitizePlain(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	richPolicy  *bluemonday.Policy
	plainPolicy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 分析結果用: p, br, ul, ol, li, blockquote, pre, code, strong, em, h2, h3, h4
//     を許可。script, iframe, style および全てのon*イベント属性は除去。
//     分析結果はAI出力の整形済みテキストであり、リンクや画像は含めない。
//   - プレーンテキスト用: 全てのタグを除去。
func NewContentSanitizer() *contentSanitizer {
	rich := bluemonday.NewPolicy()

	// 許可タグの設定（属性なしのシンプルなタグ）
	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されないため除去される
	rich.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
		"h2", "h3", "h4",
	)

	return &contentSanitizer{
		richPolicy:  rich,
		plainPolicy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はAI生成の分析結果HTMLをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.richPolicy.Sanitize(rawHTML)
}

// SanitizePlain はプレーンテキスト入力から全てのHTMLタグを除去して返す。
func (s *contentSanitizer) SanitizePlain(raw string) string {
	return strings.TrimSpace(s.plainPolicy.Sanitize(raw))
}

// インターフェース実装の確認
var _ ContentSanitizerService = (*contentSanitizer)(nil)
