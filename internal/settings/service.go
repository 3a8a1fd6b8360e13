// Package settings はユーザーごとの不透明なJSON設定ブロブを管理する。
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/kanjo/internal/model"
	"github.com/hitoshi/kanjo/internal/repository"
)

// Service は設定ブロブのサービス層。中身のスキーマは解釈しない。
type Service struct {
	settingsRepo repository.SettingsRepository

	// now はテスト用に差し替え可能な現在時刻。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(settingsRepo repository.SettingsRepository) *Service {
	return &Service{
		settingsRepo: settingsRepo,
		now:          time.Now,
	}
}

// Get はユーザーの設定ブロブを取得する。行が存在しない場合はnilを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.UserSettings, error) {
	settings, err := s.settingsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	return settings, nil
}

// Save は設定ブロブを保存し、保存後の行を返す。
// ブロブはJSONオブジェクトでなければならない（配列やプリミティブは不可）。
// 行の有無にかかわらず1回のアップサートで作成または置換する。
func (s *Service) Save(ctx context.Context, userID string, raw json.RawMessage) (*model.UserSettings, error) {
	if !isJSONObject(raw) {
		return nil, model.NewInvalidSettingsError()
	}

	saved, err := s.settingsRepo.Upsert(ctx, userID, raw, s.now())
	if err != nil {
		return nil, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}
	return saved, nil
}

// isJSONObject はrawがJSONオブジェクトかどうかを判定する。
func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
