package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kanjo/internal/model"
)

// PostgresUsageRepo はPostgreSQLを使用した日次利用集計リポジトリ。
// 集計行の書き込みはDBトリガーが行うため、読み取りと削除のみを提供する。
type PostgresUsageRepo struct {
	db *sql.DB
}

// NewPostgresUsageRepo はPostgresUsageRepoを生成する。
func NewPostgresUsageRepo(db *sql.DB) *PostgresUsageRepo {
	return &PostgresUsageRepo{db: db}
}

// ListDailySince は指定日以降の日次集計を日付昇順で返す。
func (r *PostgresUsageRepo) ListDailySince(ctx context.Context, userID string, sinceDate string) ([]model.DailyUsage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date::text, api_calls_count, tokens_consumed
		 FROM usage_tracking
		 WHERE user_id = $1 AND date >= $2
		 ORDER BY date ASC`,
		userID, sinceDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily usage: %w", err)
	}
	defer rows.Close()

	var usage []model.DailyUsage
	for rows.Next() {
		var d model.DailyUsage
		if err := rows.Scan(&d.Date, &d.APICallsCount, &d.TokensConsumed); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		usage = append(usage, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily usage: %w", err)
	}

	return usage, nil
}

// DeleteByUserID は指定ユーザーの全集計行を削除する。
func (r *PostgresUsageRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM usage_tracking WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete usage tracking: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UsageRepository = (*PostgresUsageRepo)(nil)
