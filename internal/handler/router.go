package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kanjo/internal/metrics"
	"github.com/hitoshi/kanjo/internal/middleware"
)

// HealthChecker はヘルスチェックのための依存先疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// ドメインサービス
	SentimentService   SentimentServiceInterface
	ProfileService     ProfileServiceInterface
	PreferencesService PreferencesServiceInterface
	UsageService       UsageServiceInterface
	AccountService     AccountServiceInterface
	SettingsService    SettingsServiceInterface
	AnalyticsService   AnalyticsServiceInterface

	// 運用エンドポイント
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Auth → RateLimit(General)
//
// /health と /metrics は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	sentimentHandler := NewSentimentHandler(deps.SentimentService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	preferencesHandler := NewPreferencesHandler(deps.PreferencesService)
	userHandler := NewUserHandler(deps.UsageService, deps.AccountService)
	settingsHandler := NewSettingsHandler(deps.SettingsService)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))

	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.UserResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 感情分析
		r.Route("/api/sentiment", func(r chi.Router) {
			// POST /api/sentiment/analyze - LLM呼び出しを伴うため専用レート制限を追加
			r.With(deps.RateLimiter.AnalyzeMiddleware()).Post("/analyze", sentimentHandler.Analyze)
			r.Get("/history", sentimentHandler.History)
		})

		// ユーザー管理
		r.Route("/api/user", func(r chi.Router) {
			r.Get("/profile", profileHandler.GetProfile)
			r.Put("/profile", profileHandler.UpdateProfile)

			r.Get("/preferences", preferencesHandler.GetPreferences)
			r.Put("/preferences", preferencesHandler.UpdatePreferences)
			r.Delete("/preferences", preferencesHandler.ResetPreferences)

			r.Get("/usage", userHandler.GetUsage)
			r.Delete("/delete", userHandler.DeleteAccount)

			r.Get("/settings", settingsHandler.GetSettings)
			r.Post("/settings", settingsHandler.SaveSettings)
		})

		// ダッシュボード集計
		r.Get("/api/analytics/dashboard", analyticsHandler.Dashboard)
	})

	return r
}

// healthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// 依存先に疎通できない場合は503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
