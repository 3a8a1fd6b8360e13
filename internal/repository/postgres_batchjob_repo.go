package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresBatchJobRepo はPostgreSQLを使用したバッチジョブリポジトリ。
// バッチジョブの投入・実行は別サブシステムの責務で、
// このコアはアカウント削除時の一括削除にのみ関与する。
type PostgresBatchJobRepo struct {
	db *sql.DB
}

// NewPostgresBatchJobRepo はPostgresBatchJobRepoを生成する。
func NewPostgresBatchJobRepo(db *sql.DB) *PostgresBatchJobRepo {
	return &PostgresBatchJobRepo{db: db}
}

// DeleteByUserID は指定ユーザーの全バッチジョブを削除する。
func (r *PostgresBatchJobRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM batch_jobs WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete batch jobs: %w", err)
	}
	return nil
}

// compile-time interface check
var _ BatchJobRepository = (*PostgresBatchJobRepo)(nil)
