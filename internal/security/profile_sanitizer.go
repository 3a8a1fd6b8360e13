package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizerService はプロフィールのテキストフィールドの
// サニタイズ機能のインターフェースを定義する。
// 表示名・自己紹介文の保存前に使用される。
type ProfileSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLタグを除去し、
	// 前後の空白をトリムしたプレーンテキストを返す。
	// script, iframe, styleタグおよびon*イベント属性を含む
	// 全マークアップが除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(text string) string
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
// プロフィールのフィールドはプレーンテキストとして扱うため、
// 許可タグを一切持たないStrictPolicyを使用する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからすべてのHTMLタグを除去して返す。
func (s *profileSanitizer) Sanitize(text string) string {
	return strings.TrimSpace(s.policy.Sanitize(text))
}

// compile-time interface check
var _ ProfileSanitizerService = (*profileSanitizer)(nil)
