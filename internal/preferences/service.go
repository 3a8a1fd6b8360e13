// Package preferences はユーザーごとの通知・表示設定のドメインロジックを提供する。
package preferences

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kanjo/internal/model"
	"github.com/hitoshi/kanjo/internal/repository"
)

// Service はユーザー設定のサービス層。
// 行が存在しないユーザーにはデフォルト設定を具現化して返し、
// 行の作成は最初の書き込みまで遅延する。
type Service struct {
	prefsRepo repository.PreferencesRepository

	// now はテスト用に差し替え可能な現在時刻。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(prefsRepo repository.PreferencesRepository) *Service {
	return &Service{
		prefsRepo: prefsRepo,
		now:       time.Now,
	}
}

// Get はユーザーの設定を取得する。
// 行が存在しない場合はデフォルト設定を返す（行は作成しない）。
func (s *Service) Get(ctx context.Context, userID string) (*model.Preferences, error) {
	prefs, err := s.prefsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if prefs == nil {
		return model.DefaultPreferences(userID), nil
	}
	return prefs, nil
}

// Update は設定を部分更新する。
// バリデーション済みのフィールドが1つもない場合はNO_VALID_FIELDSエラーを返す。
// 行が存在しない場合はデフォルト設定に更新を適用した行を新規作成する。
// 同時更新の調停は行わず、後勝ちとする。
func (s *Service) Update(ctx context.Context, userID string, update model.PreferencesUpdate) (*model.Preferences, error) {
	normalize(&update)
	if update.IsEmpty() {
		return nil, model.NewNoValidFieldsError()
	}

	existing, err := s.prefsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}

	now := s.now()

	if existing == nil {
		prefs := model.DefaultPreferences(userID)
		prefs.ID = uuid.New().String()
		prefs.CreatedAt = now
		prefs.UpdatedAt = now
		apply(prefs, update)

		if err := s.prefsRepo.Create(ctx, prefs); err != nil {
			return nil, fmt.Errorf("設定の作成に失敗しました: %w", err)
		}

		slog.Info("preferences created",
			slog.String("user_id", userID),
		)
		return prefs, nil
	}

	updated, err := s.prefsRepo.Update(ctx, userID, update, now)
	if err != nil {
		return nil, fmt.Errorf("設定の更新に失敗しました: %w", err)
	}

	return updated, nil
}

// Reset はユーザーの設定行を削除し、デフォルト設定に戻す。
// 行が存在しない場合も成功として扱う（結果は同じデフォルト状態のため）。
func (s *Service) Reset(ctx context.Context, userID string) error {
	if err := s.prefsRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("設定のリセットに失敗しました: %w", err)
	}

	slog.Info("preferences reset to defaults",
		slog.String("user_id", userID),
	)
	return nil
}

// normalize は更新内容を検証し、不正な値を持つフィールドを
// 更新対象から除外する。除外の結果すべてのフィールドが空になった場合は
// 呼び出し側でNO_VALID_FIELDSとして扱われる。
func normalize(update *model.PreferencesUpdate) {
	if update.Theme != nil {
		switch *update.Theme {
		case model.ThemeLight, model.ThemeDark, model.ThemeSystem:
		default:
			update.Theme = nil
		}
	}
}

// apply は更新内容を設定に適用する。
func apply(prefs *model.Preferences, update model.PreferencesUpdate) {
	if update.NotificationsEnabled != nil {
		prefs.NotificationsEnabled = *update.NotificationsEnabled
	}
	if update.EmailNotifications != nil {
		prefs.EmailNotifications = *update.EmailNotifications
	}
	if update.MarketingEmails != nil {
		prefs.MarketingEmails = *update.MarketingEmails
	}
	if update.Theme != nil {
		prefs.Theme = *update.Theme
	}
	if update.Language != nil {
		prefs.Language = *update.Language
	}
	if update.Timezone != nil {
		prefs.Timezone = *update.Timezone
	}
}
