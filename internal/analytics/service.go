// Package analytics は分析履歴と利用量の集計ロジックを提供する。
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/kanjo/internal/model"
	"github.com/hitoshi/kanjo/internal/repository"
)

// 集計期間の選択肢。不明な値は30dとして扱う。
const (
	Period7Days  = "7d"
	Period30Days = "30d"
	Period90Days = "90d"
)

const topKeywordCount = 10

// Summary はダッシュボード用の集計結果を表す。
type Summary struct {
	TotalAnalyses         int                         `json:"total_analyses"`
	SentimentDistribution model.SentimentDistribution `json:"sentiment_distribution"`
	DailyUsage            []DailyCount                `json:"daily_usage"`
	TopKeywords           []model.KeywordCount        `json:"top_keywords"`
}

// DailyCount は日次の分析実行回数を表す。
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Service は集計のサービス層。読み取り専用で、書き込みは一切行わない。
type Service struct {
	analysisRepo repository.AnalysisRepository
	usageRepo    repository.UsageRepository

	// now はテスト用に差し替え可能な現在時刻。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(analysisRepo repository.AnalysisRepository, usageRepo repository.UsageRepository) *Service {
	return &Service{
		analysisRepo: analysisRepo,
		usageRepo:    usageRepo,
		now:          time.Now,
	}
}

// Summarize は指定期間の分析件数、感情分布、頻出キーフレーズ、
// 日次利用量を集計する。
func (s *Service) Summarize(ctx context.Context, userID, period string) (*Summary, error) {
	since := s.now().AddDate(0, 0, -periodDays(period))

	total, err := s.analysisRepo.CountSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("分析件数の集計に失敗しました: %w", err)
	}

	results, err := s.analysisRepo.ListResultsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("分析結果の取得に失敗しました: %w", err)
	}

	summary := &Summary{
		TotalAnalyses: total,
		DailyUsage:    []DailyCount{},
		TopKeywords:   []model.KeywordCount{},
	}

	frequency := make(map[string]int)
	// 同数キーワードの順位を安定させるため初出順を記録する
	firstSeen := make(map[string]int)

	for _, result := range results {
		switch result.Sentiment {
		case model.SentimentPositive:
			summary.SentimentDistribution.Positive++
		case model.SentimentNegative:
			summary.SentimentDistribution.Negative++
		case model.SentimentNeutral:
			summary.SentimentDistribution.Neutral++
		}

		for _, phrase := range result.KeyPhrases {
			if _, seen := frequency[phrase]; !seen {
				firstSeen[phrase] = len(firstSeen)
			}
			frequency[phrase]++
		}
	}

	summary.TopKeywords = topKeywords(frequency, firstSeen, topKeywordCount)

	daily, err := s.usageRepo.ListDailySince(ctx, userID, since.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("日次利用量の取得に失敗しました: %w", err)
	}
	for _, day := range daily {
		summary.DailyUsage = append(summary.DailyUsage, DailyCount{
			Date:  day.Date,
			Count: day.APICallsCount,
		})
	}

	return summary, nil
}

// periodDays は期間指定を日数に変換する。不明な値は30日とする。
func periodDays(period string) int {
	switch period {
	case Period7Days:
		return 7
	case Period90Days:
		return 90
	default:
		return 30
	}
}

// topKeywords は頻度の降順で上位limit件のキーワードを返す。
// 同数の場合は初出順を保つ。
func topKeywords(frequency map[string]int, firstSeen map[string]int, limit int) []model.KeywordCount {
	ranked := make([]model.KeywordCount, 0, len(frequency))
	for keyword, count := range frequency {
		ranked = append(ranked, model.KeywordCount{Keyword: keyword, Frequency: count})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Frequency != ranked[j].Frequency {
			return ranked[i].Frequency > ranked[j].Frequency
		}
		return firstSeen[ranked[i].Keyword] < firstSeen[ranked[j].Keyword]
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
