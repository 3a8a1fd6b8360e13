package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/kanjo/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用した設定ブロブリポジトリ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// FindByUserID は指定ユーザーの設定ブロブを取得する。見つからない場合はnilを返す。
func (r *PostgresSettingsRepo) FindByUserID(ctx context.Context, userID string) (*model.UserSettings, error) {
	s := &model.UserSettings{}
	var raw []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, settings, created_at, updated_at
		 FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(&s.ID, &s.UserID, &raw, &s.CreatedAt, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find settings by user ID: %w", err)
	}

	s.Settings = json.RawMessage(raw)

	return s, nil
}

// Upsert は設定ブロブを1回のアップサートで作成または置換し、保存後の行を返す。
// user_idのUNIQUE制約に依存することで、存在確認と書き込みの間の
// 競合ウィンドウを持たない。
func (r *PostgresSettingsRepo) Upsert(ctx context.Context, userID string, settings json.RawMessage, now time.Time) (*model.UserSettings, error) {
	s := &model.UserSettings{}
	var raw []byte

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO user_settings (user_id, settings, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (user_id) DO UPDATE
		     SET settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at
		 RETURNING id, user_id, settings, created_at, updated_at`,
		userID, []byte(settings), now,
	).Scan(&s.ID, &s.UserID, &raw, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert settings: %w", err)
	}

	s.Settings = json.RawMessage(raw)

	return s, nil
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
