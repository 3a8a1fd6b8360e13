// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// Detailsはアカウント削除の部分失敗など、複数の内訳を返す場合にのみ使用する。
type APIError struct {
	Code     string   // エラーコード
	Message  string   // エラーメッセージ
	Category string   // カテゴリ: auth, validation, usage, analysis, system
	Action   string   // ユーザー向け対処方法
	Details  []string // 部分失敗の内訳（リソース名: メッセージ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeTextTooLong          = "TEXT_TOO_LONG"
	ErrCodeUsageLimitExceeded   = "USAGE_LIMIT_EXCEEDED"
	ErrCodeNoValidFields        = "NO_VALID_FIELDS"
	ErrCodeInvalidEmail         = "INVALID_EMAIL"
	ErrCodeEmailUpdateFailed    = "EMAIL_UPDATE_FAILED"
	ErrCodeInvalidAvatarURL     = "INVALID_AVATAR_URL"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodePartialDeletion      = "PARTIAL_DELETION"
	ErrCodeInvalidSettings      = "INVALID_SETTINGS"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidInputError は分析対象テキストが空または不正な場合のエラーを生成する。
func NewInvalidInputError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  "分析するテキストを入力してください。",
		Category: "validation",
		Action:   "textフィールドに空でない文字列を指定してください。",
	}
}

// NewTextTooLongError はテキストが上限を超えた場合のエラーを生成する。
func NewTextTooLongError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeTextTooLong,
		Message:  fmt.Sprintf("テキストが長すぎます（上限%d文字）。", limit),
		Category: "validation",
		Action:   "テキストを分割して再度お試しください。",
	}
}

// NewUsageLimitExceededError は月間API利用上限超過エラーを生成する。
func NewUsageLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeUsageLimitExceeded,
		Message:  "今月のAPI利用上限に達しています。",
		Category: "usage",
		Action:   "プランをアップグレードするか、翌月までお待ちください。",
	}
}

// NewNoValidFieldsError は有効な設定フィールドが1つもない場合のエラーを生成する。
func NewNoValidFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoValidFields,
		Message:  "有効な設定項目が含まれていません。",
		Category: "validation",
		Action:   "更新する設定項目を1つ以上指定してください。",
	}
}

// NewInvalidEmailError はメールアドレス形式が不正な場合のエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: "validation",
		Action:   "local@domain.tld 形式のメールアドレスを入力してください。",
	}
}

// NewEmailUpdateFailedError は認証プロバイダでのメール更新失敗エラーを生成する。
// 認証側のメールが正となるため、失敗時はプロフィールへの書き込みは行われない。
func NewEmailUpdateFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailUpdateFailed,
		Message:  fmt.Sprintf("メールアドレスの更新に失敗しました: %s", reason),
		Category: "validation",
		Action:   "メールアドレスを確認して再度お試しください。",
	}
}

// NewInvalidAvatarURLError はアバターURLが不正な場合のエラーを生成する。
func NewInvalidAvatarURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatarURL,
		Message:  fmt.Sprintf("アバターURLが無効です: %s", reason),
		Category: "validation",
		Action:   "公開されているhttps://のURLを指定してください。",
	}
}

// NewConfirmationRequiredError は削除確認フラグがない場合のエラーを生成する。
func NewConfirmationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  "アカウント削除には確認が必要です。",
		Category: "validation",
		Action:   "confirm_deletionをtrueにして再度リクエストしてください。",
	}
}

// NewPartialDeletionError はアカウント削除の部分失敗エラーを生成する。
// detailsには失敗したリソースごとの「リソース名: メッセージ」を削除実行順で格納する。
func NewPartialDeletionError(details []string) *APIError {
	return &APIError{
		Code:     ErrCodePartialDeletion,
		Message:  "アカウント削除が部分的に完了しました。一部のデータが残っている可能性があります。",
		Category: "system",
		Action:   "サポートにお問い合わせください。",
		Details:  details,
	}
}

// NewInvalidSettingsError は設定ブロブが不正な場合のエラーを生成する。
func NewInvalidSettingsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSettings,
		Message:  "設定の形式が正しくありません。",
		Category: "validation",
		Action:   "settingsフィールドにJSONオブジェクトを指定してください。",
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
