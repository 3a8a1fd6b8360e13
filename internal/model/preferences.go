package model

import "time"

// テーマの選択肢
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Preferences はユーザーごとの通知・表示設定を表す。
// 行が存在しない場合はDefaultPreferencesと等価として扱う。
type Preferences struct {
	ID                   string    `json:"id,omitzero"`
	UserID               string    `json:"user_id"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	EmailNotifications   bool      `json:"email_notifications"`
	MarketingEmails      bool      `json:"marketing_emails"`
	Theme                string    `json:"theme"`
	Language             string    `json:"language"`
	Timezone             string    `json:"timezone"`
	CreatedAt            time.Time `json:"created_at,omitzero"`
	UpdatedAt            time.Time `json:"updated_at,omitzero"`
}

// PreferencesUpdate は設定の部分更新を表す。
// nilのフィールドは変更しない。バリデーションはサービス層で行う。
type PreferencesUpdate struct {
	NotificationsEnabled *bool
	EmailNotifications   *bool
	MarketingEmails      *bool
	Theme                *string
	Language             *string
	Timezone             *string
}

// IsEmpty は更新対象のフィールドが1つもないかどうかを返す。
func (u PreferencesUpdate) IsEmpty() bool {
	return u.NotificationsEnabled == nil &&
		u.EmailNotifications == nil &&
		u.MarketingEmails == nil &&
		u.Theme == nil &&
		u.Language == nil &&
		u.Timezone == nil
}

// DefaultPreferences は行が存在しないユーザーに対する既定の設定を返す。
// 読み取り時に具現化されるのみで、行の作成は最初の書き込みまで遅延される。
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:               userID,
		NotificationsEnabled: true,
		EmailNotifications:   true,
		MarketingEmails:      false,
		Theme:                ThemeLight,
		Language:             "en",
		Timezone:             "UTC",
	}
}
