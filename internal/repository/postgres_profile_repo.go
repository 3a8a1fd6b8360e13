package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/kanjo/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p := &model.Profile{}
	var name, fullName sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, full_name, bio, avatar_url, subscription_status,
		        api_usage_current_month, api_limit_per_month, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &name, &fullName, &p.Bio, &p.AvatarURL,
		&p.SubscriptionStatus, &p.APIUsageCurrentMonth, &p.APILimitPerMonth,
		&p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}

	p.Name = name.String
	p.FullName = fullName.String

	return p, nil
}

// Update はnilでないフィールドのみを部分更新する。
// updated_atは常にスタンプされる。
func (r *PostgresProfileRepo) Update(ctx context.Context, id string, patch ProfilePatch) error {
	sets := []string{}
	args := []any{}
	idx := 1

	appendSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.FullName != nil {
		appendSet("full_name", *patch.FullName)
	}
	if patch.Email != nil {
		appendSet("email", *patch.Email)
	}
	if patch.Bio != nil {
		appendSet("bio", *patch.Bio)
	}
	if patch.AvatarURL != nil {
		appendSet("avatar_url", *patch.AvatarURL)
	}
	appendSet("updated_at", patch.UpdatedAt)

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}

// DeleteByID は指定IDのプロフィール行を削除する。
// アカウント削除の一括処理から呼ばれるため、行が存在しなくてもエラーにしない。
func (r *PostgresProfileRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
