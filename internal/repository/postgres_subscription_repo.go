package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kanjo/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用した課金サブスクリプションリポジトリ。
// 作成・更新は課金サブシステムが行うため、読み取りと削除のみを提供する。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// FindActiveByUserID はアクティブなサブスクリプションを取得する。
// 存在しない場合はnilを返す。アクティブな行はユーザーごとに高々1行。
func (r *PostgresSubscriptionRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	s := &model.Subscription{}
	var periodEnd sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, interval, amount, current_period_end, created_at
		 FROM subscriptions
		 WHERE user_id = $1 AND status = 'active'
		 LIMIT 1`,
		userID,
	).Scan(&s.ID, &s.UserID, &s.Status, &s.Interval, &s.Amount, &periodEnd, &s.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active subscription: %w", err)
	}

	if periodEnd.Valid {
		s.CurrentPeriodEnd = periodEnd.Time
	}

	return s, nil
}

// DeleteByUserID は指定ユーザーの全サブスクリプション行を削除する。
func (r *PostgresSubscriptionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete subscriptions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
