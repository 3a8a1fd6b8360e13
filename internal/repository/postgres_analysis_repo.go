package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/kanjo/internal/model"
)

// PostgresAnalysisRepo はPostgreSQLを使用した分類履歴リポジトリ。
// 結果本体はsentiment_resultカラムにJSONBとして保存する。
type PostgresAnalysisRepo struct {
	db *sql.DB
}

// NewPostgresAnalysisRepo はPostgresAnalysisRepoを生成する。
func NewPostgresAnalysisRepo(db *sql.DB) *PostgresAnalysisRepo {
	return &PostgresAnalysisRepo{db: db}
}

// Create は分類履歴を1行追加する。
// このINSERTを契機にDBトリガーが利用カウンタを加算する。
func (r *PostgresAnalysisRepo) Create(ctx context.Context, analysis *model.SentimentAnalysis) error {
	resultJSON, err := json.Marshal(analysis.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal sentiment result: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sentiment_analyses
		 (id, user_id, input_text, sentiment_result, analysis_type, tokens_used, processing_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		analysis.ID, analysis.UserID, analysis.InputText, resultJSON,
		analysis.AnalysisType, analysis.TokensUsed, analysis.ProcessingTimeMs, analysis.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// CountSince は指定日時以降の分析件数を返す。
func (r *PostgresAnalysisRepo) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sentiment_analyses WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return count, nil
}

// ListResultsSince は指定日時以降の全分析の保存済み結果を作成日時昇順で返す。
// 分析集計用のため結果カラムのみを読む。
func (r *PostgresAnalysisRepo) ListResultsSince(ctx context.Context, userID string, since time.Time) ([]model.SentimentResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sentiment_result FROM sentiment_analyses
		 WHERE user_id = $1 AND created_at >= $2
		 ORDER BY created_at ASC`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis results: %w", err)
	}
	defer rows.Close()

	var results []model.SentimentResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan analysis result: %w", err)
		}
		var result model.SentimentResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis results: %w", err)
	}

	return results, nil
}

// List は検索条件付きの履歴一覧をcreated_at降順で返す。
// 2番目の戻り値はフィルタ適用後の総件数。
func (r *PostgresAnalysisRepo) List(ctx context.Context, userID string, filter model.HistoryFilter, offset, limit int) ([]*model.SentimentAnalysis, int, error) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	idx := 2

	if filter.DateFrom != nil {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, *filter.DateFrom)
		idx++
	}
	if filter.DateTo != nil {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, *filter.DateTo)
		idx++
	}
	if filter.Sentiment != nil {
		conds = append(conds, fmt.Sprintf("sentiment_result->>'sentiment' = $%d", idx))
		args = append(args, string(*filter.Sentiment))
		idx++
	}

	where := strings.Join(conds, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM sentiment_analyses WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT id, user_id, input_text, sentiment_result, analysis_type, tokens_used, processing_time_ms, created_at
		 FROM sentiment_analyses WHERE %s
		 ORDER BY created_at DESC
		 OFFSET $%d LIMIT $%d`,
		where, idx, idx+1,
	)
	args = append(args, offset, limit)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var analyses []*model.SentimentAnalysis
	for rows.Next() {
		a := &model.SentimentAnalysis{}
		var raw []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.InputText, &raw, &a.AnalysisType,
			&a.TokensUsed, &a.ProcessingTimeMs, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan analysis: %w", err)
		}
		if err := json.Unmarshal(raw, &a.Result); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal analysis result: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate history: %w", err)
	}

	return analyses, total, nil
}

// DeleteByUserID は指定ユーザーの全履歴を削除する。
func (r *PostgresAnalysisRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sentiment_analyses WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete analyses: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AnalysisRepository = (*PostgresAnalysisRepo)(nil)
