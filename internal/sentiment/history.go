package sentiment

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/kanjo/internal/model"
)

// ページネーションのデフォルト値と上限。
const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// HistoryQuery は分析履歴の検索条件。
// ゼロ値のPage/Limitにはデフォルト値が適用される。
type HistoryQuery struct {
	Page      int
	Limit     int
	DateFrom  *time.Time
	DateTo    *time.Time
	Sentiment *model.Sentiment
}

// Pagination はページネーション情報。
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// HistoryPage は分析履歴の1ページ分のレスポンス。
type HistoryPage struct {
	Analyses   []*model.SentimentAnalysis `json:"analyses"`
	Pagination Pagination                 `json:"pagination"`
}

// History は分析履歴をcreated_at降順でページネーション付きで返す。
// limitは最大100に制限される。フィルタ適用後の総件数をもとに
// 総ページ数を算出する。
func (s *Service) History(ctx context.Context, userID string, query HistoryQuery) (*HistoryPage, error) {
	page := query.Page
	if page < 1 {
		page = defaultPage
	}

	limit := query.Limit
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := (page - 1) * limit

	filter := model.HistoryFilter{
		DateFrom:  query.DateFrom,
		DateTo:    query.DateTo,
		Sentiment: query.Sentiment,
	}

	analyses, total, err := s.analysisRepo.List(ctx, userID, filter, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("分析履歴の取得に失敗しました: %w", err)
	}
	if analyses == nil {
		analyses = []*model.SentimentAnalysis{}
	}

	totalPages := (total + limit - 1) / limit

	return &HistoryPage{
		Analyses: analyses,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}
