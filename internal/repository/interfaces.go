// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hitoshi/kanjo/internal/model"
)

// ProfilePatch はプロフィール行の部分更新を表す。
// nilのフィールドは更新対象に含めない。UpdatedAtは常にスタンプされる。
type ProfilePatch struct {
	Name      *string
	FullName  *string
	Email     *string
	Bio       *string
	AvatarURL *string
	UpdatedAt time.Time
}

// IsEmpty は更新対象のフィールド（UpdatedAt以外）が1つもないかどうかを返す。
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.FullName == nil && p.Email == nil &&
		p.Bio == nil && p.AvatarURL == nil
}

// ProfileRepository はプロフィール（usersテーブル）の永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Update はnilでないフィールドのみを部分更新する。
	Update(ctx context.Context, id string, patch ProfilePatch) error

	// DeleteByID は指定IDのプロフィール行を削除する。
	DeleteByID(ctx context.Context, id string) error
}

// PreferencesRepository はユーザー設定の永続化インターフェース。
type PreferencesRepository interface {
	// FindByUserID は指定ユーザーの設定行を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Preferences, error)

	// Create は設定行を新規作成する。
	Create(ctx context.Context, prefs *model.Preferences) error

	// Update はnilでないフィールドのみを部分更新し、更新後の行を返す。
	Update(ctx context.Context, userID string, update model.PreferencesUpdate, updatedAt time.Time) (*model.Preferences, error)

	// DeleteByUserID は指定ユーザーの設定行を削除する。行が存在しなくてもエラーにしない。
	DeleteByUserID(ctx context.Context, userID string) error
}

// AnalysisRepository は分類履歴の永続化インターフェース。
type AnalysisRepository interface {
	// Create は分類履歴を1行追加する。
	Create(ctx context.Context, analysis *model.SentimentAnalysis) error

	// CountSince は指定日時以降の分析件数を返す。
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)

	// ListResultsSince は指定日時以降の全分析の保存済み結果を返す。
	ListResultsSince(ctx context.Context, userID string, since time.Time) ([]model.SentimentResult, error)

	// List は検索条件付きの履歴一覧をcreated_at降順で返す。
	// 2番目の戻り値はフィルタ適用後の総件数。
	List(ctx context.Context, userID string, filter model.HistoryFilter, offset, limit int) ([]*model.SentimentAnalysis, int, error)

	// DeleteByUserID は指定ユーザーの全履歴を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// UsageRepository は日次利用集計の読み取り・削除インターフェース。
// 書き込みはDBトリガー側の責務のため、このコアには存在しない。
type UsageRepository interface {
	// ListDailySince は指定日以降の日次集計を日付昇順で返す。
	// sinceDateは "2006-01-02" 形式の日付文字列。
	ListDailySince(ctx context.Context, userID string, sinceDate string) ([]model.DailyUsage, error)

	// DeleteByUserID は指定ユーザーの全集計行を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SubscriptionRepository は課金サブスクリプションの読み取り・削除インターフェース。
// 作成・更新は課金サブシステム（外部）が行う。
type SubscriptionRepository interface {
	// FindActiveByUserID はアクティブなサブスクリプションを取得する。
	// 存在しない場合はnilを返す。
	FindActiveByUserID(ctx context.Context, userID string) (*model.Subscription, error)

	// DeleteByUserID は指定ユーザーの全サブスクリプション行を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// BatchJobRepository はバッチジョブの削除インターフェース。
// アカウント削除の対象リソースとしてのみ参加する。
type BatchJobRepository interface {
	// DeleteByUserID は指定ユーザーの全バッチジョブを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SettingsRepository は不透明なJSON設定ブロブの永続化インターフェース。
type SettingsRepository interface {
	// FindByUserID は指定ユーザーの設定ブロブを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserSettings, error)

	// Upsert は設定ブロブを1回のアップサートで作成または置換し、保存後の行を返す。
	Upsert(ctx context.Context, userID string, settings json.RawMessage, now time.Time) (*model.UserSettings, error)
}
