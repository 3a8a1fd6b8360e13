package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/kanjo/internal/analytics"
	"github.com/hitoshi/kanjo/internal/model"
)

// mockAnalyticsService はAnalyticsServiceInterfaceのモック実装
type mockAnalyticsService struct {
	summarizeFn func(ctx context.Context, userID, period string) (*analytics.Summary, error)
}

func (m *mockAnalyticsService) Summarize(ctx context.Context, userID, period string) (*analytics.Summary, error) {
	if m.summarizeFn != nil {
		return m.summarizeFn(ctx, userID, period)
	}
	return nil, fmt.Errorf("not implemented")
}

func TestDashboard_Success(t *testing.T) {
	var capturedPeriod string
	svc := &mockAnalyticsService{
		summarizeFn: func(ctx context.Context, userID, period string) (*analytics.Summary, error) {
			capturedPeriod = period
			return &analytics.Summary{
				TotalAnalyses: 12,
				SentimentDistribution: model.SentimentDistribution{
					Positive: 7, Negative: 3, Neutral: 2,
				},
				DailyUsage: []analytics.DailyCount{
					{Date: "2026-08-30", Count: 4},
				},
				TopKeywords: []model.KeywordCount{
					{Keyword: "great", Frequency: 5},
				},
			}, nil
		},
	}
	h := NewAnalyticsHandler(svc)

	req := authedRequest(http.MethodGet, "/api/analytics/dashboard?period=7d", "")
	rec := httptest.NewRecorder()
	h.Dashboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if capturedPeriod != "7d" {
		t.Errorf("period = %q, want 7d", capturedPeriod)
	}

	var resp struct {
		TotalAnalyses         int `json:"total_analyses"`
		SentimentDistribution struct {
			Positive int `json:"positive"`
		} `json:"sentiment_distribution"`
		DailyUsage []struct {
			Date  string `json:"date"`
			Count int    `json:"count"`
		} `json:"daily_usage"`
		TopKeywords []struct {
			Keyword   string `json:"keyword"`
			Frequency int    `json:"frequency"`
		} `json:"top_keywords"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TotalAnalyses != 12 || resp.SentimentDistribution.Positive != 7 {
		t.Errorf("summary = %+v", resp)
	}
	if len(resp.TopKeywords) != 1 || resp.TopKeywords[0].Keyword != "great" {
		t.Errorf("top_keywords = %+v", resp.TopKeywords)
	}
}

// period未指定は空文字のままサービスに渡される（30dへのフォールバックはサービス層の責務）
func TestDashboard_DefaultPeriod(t *testing.T) {
	var capturedPeriod string
	svc := &mockAnalyticsService{
		summarizeFn: func(ctx context.Context, userID, period string) (*analytics.Summary, error) {
			capturedPeriod = period
			return &analytics.Summary{}, nil
		},
	}
	h := NewAnalyticsHandler(svc)

	req := authedRequest(http.MethodGet, "/api/analytics/dashboard", "")
	rec := httptest.NewRecorder()
	h.Dashboard(rec, req)

	if capturedPeriod != "" {
		t.Errorf("period = %q, want empty", capturedPeriod)
	}
}

func TestDashboard_Unauthorized(t *testing.T) {
	h := NewAnalyticsHandler(&mockAnalyticsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/dashboard", nil)
	rec := httptest.NewRecorder()
	h.Dashboard(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestDashboard_ServiceError(t *testing.T) {
	svc := &mockAnalyticsService{
		summarizeFn: func(ctx context.Context, userID, period string) (*analytics.Summary, error) {
			return nil, fmt.Errorf("database gone")
		},
	}
	h := NewAnalyticsHandler(svc)

	req := authedRequest(http.MethodGet, "/api/analytics/dashboard", "")
	rec := httptest.NewRecorder()
	h.Dashboard(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
