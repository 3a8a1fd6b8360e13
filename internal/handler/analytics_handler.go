package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kanjo/internal/analytics"
	"github.com/hitoshi/kanjo/internal/middleware"
	"github.com/hitoshi/kanjo/internal/model"
)

// AnalyticsServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type AnalyticsServiceInterface interface {
	// Summarize は指定期間の分析件数、感情分布、頻出キーフレーズ、日次利用量を集計する。
	Summarize(ctx context.Context, userID, period string) (*analytics.Summary, error)
}

// AnalyticsHandler はダッシュボード集計のHTTPハンドラー。
type AnalyticsHandler struct {
	service AnalyticsServiceInterface
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(service AnalyticsServiceInterface) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

// Dashboard はダッシュボード用の集計結果を取得する。
// GET /api/analytics/dashboard?period=7d|30d|90d
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	period := r.URL.Query().Get("period")

	summary, err := h.service.Summarize(r.Context(), userID, period)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
