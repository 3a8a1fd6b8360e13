package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/kanjo/internal/model"
)

// PostgresPreferencesRepo はPostgreSQLを使用したユーザー設定リポジトリ。
type PostgresPreferencesRepo struct {
	db *sql.DB
}

// NewPostgresPreferencesRepo はPostgresPreferencesRepoを生成する。
func NewPostgresPreferencesRepo(db *sql.DB) *PostgresPreferencesRepo {
	return &PostgresPreferencesRepo{db: db}
}

const preferencesColumns = `id, user_id, notifications_enabled, email_notifications,
	marketing_emails, theme, language, timezone, created_at, updated_at`

// scanPreferences は1行分の設定をスキャンする。
func scanPreferences(row *sql.Row) (*model.Preferences, error) {
	p := &model.Preferences{}
	err := row.Scan(&p.ID, &p.UserID, &p.NotificationsEnabled, &p.EmailNotifications,
		&p.MarketingEmails, &p.Theme, &p.Language, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindByUserID は指定ユーザーの設定行を取得する。見つからない場合はnilを返す。
func (r *PostgresPreferencesRepo) FindByUserID(ctx context.Context, userID string) (*model.Preferences, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+preferencesColumns+` FROM user_preferences WHERE user_id = $1`,
		userID,
	)

	prefs, err := scanPreferences(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find preferences by user ID: %w", err)
	}

	return prefs, nil
}

// Create は設定行を新規作成する。
func (r *PostgresPreferencesRepo) Create(ctx context.Context, prefs *model.Preferences) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_preferences
		 (id, user_id, notifications_enabled, email_notifications, marketing_emails,
		  theme, language, timezone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		prefs.ID, prefs.UserID, prefs.NotificationsEnabled, prefs.EmailNotifications,
		prefs.MarketingEmails, prefs.Theme, prefs.Language, prefs.Timezone,
		prefs.CreatedAt, prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert preferences: %w", err)
	}
	return nil
}

// Update はnilでないフィールドのみを部分更新し、更新後の行を返す。
func (r *PostgresPreferencesRepo) Update(ctx context.Context, userID string, update model.PreferencesUpdate, updatedAt time.Time) (*model.Preferences, error) {
	sets := []string{}
	args := []any{}
	idx := 1

	appendSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	if update.NotificationsEnabled != nil {
		appendSet("notifications_enabled", *update.NotificationsEnabled)
	}
	if update.EmailNotifications != nil {
		appendSet("email_notifications", *update.EmailNotifications)
	}
	if update.MarketingEmails != nil {
		appendSet("marketing_emails", *update.MarketingEmails)
	}
	if update.Theme != nil {
		appendSet("theme", *update.Theme)
	}
	if update.Language != nil {
		appendSet("language", *update.Language)
	}
	if update.Timezone != nil {
		appendSet("timezone", *update.Timezone)
	}
	appendSet("updated_at", updatedAt)

	args = append(args, userID)
	query := fmt.Sprintf(
		"UPDATE user_preferences SET %s WHERE user_id = $%d RETURNING "+preferencesColumns,
		strings.Join(sets, ", "), idx,
	)

	prefs, err := scanPreferences(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}

	return prefs, nil
}

// DeleteByUserID は指定ユーザーの設定行を削除する。
// リセット操作から呼ばれるため、行が存在しなくてもエラーにしない。
func (r *PostgresPreferencesRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_preferences WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PreferencesRepository = (*PostgresPreferencesRepo)(nil)
