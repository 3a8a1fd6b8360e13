// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/kanjo/internal/account"
	"github.com/hitoshi/kanjo/internal/analytics"
	"github.com/hitoshi/kanjo/internal/authclient"
	"github.com/hitoshi/kanjo/internal/config"
	"github.com/hitoshi/kanjo/internal/database"
	"github.com/hitoshi/kanjo/internal/handler"
	"github.com/hitoshi/kanjo/internal/llm"
	"github.com/hitoshi/kanjo/internal/logger"
	"github.com/hitoshi/kanjo/internal/metrics"
	"github.com/hitoshi/kanjo/internal/middleware"
	"github.com/hitoshi/kanjo/internal/preferences"
	"github.com/hitoshi/kanjo/internal/profile"
	"github.com/hitoshi/kanjo/internal/repository"
	"github.com/hitoshi/kanjo/internal/security"
	"github.com/hitoshi/kanjo/internal/sentiment"
	"github.com/hitoshi/kanjo/internal/settings"
	"github.com/hitoshi/kanjo/internal/usage"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	prefsRepo := repository.NewPostgresPreferencesRepo(db)
	analysisRepo := repository.NewPostgresAnalysisRepo(db)
	usageRepo := repository.NewPostgresUsageRepo(db)
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	batchJobRepo := repository.NewPostgresBatchJobRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 外部コラボレーターの初期化
	authClient := authclient.NewClient(authclient.Config{
		BaseURL:        cfg.AuthBaseURL,
		ServiceRoleKey: cfg.AuthServiceRoleKey,
		JWTSecret:      cfg.AuthJWTSecret,
	})

	// OPENAI_API_KEY未設定時はLLMクライアントなしで起動し、
	// 決定的なレキシコン分類器にフォールバックする
	var llmClient llm.Client
	if cfg.OpenAIAPIKey != "" {
		llmClient = llm.NewOpenAIClient(llm.Config{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			StatusRecorder: collector,
		})
		slog.Info("LLM client initialized", slog.String("model", cfg.OpenAIModel))
	} else {
		slog.Warn("OPENAI_API_KEY is not set, falling back to lexicon classifier")
	}

	// 5. セキュリティサービスの初期化
	sanitizer := security.NewProfileSanitizer()
	avatarGuard := security.NewAvatarGuard(5 * time.Second)

	// 6. ドメインサービスの初期化
	usageService := usage.NewService(profileRepo, usageRepo)
	sentimentService := sentiment.NewService(usageService, analysisRepo, collector, sentiment.Config{
		LLMClient:    llmClient,
		LLMMaxTokens: cfg.SentimentMaxTokens,
		LLMTimeout:   cfg.LLMTimeout,
	})
	profileService := profile.NewService(profileRepo, subRepo, sanitizer, avatarGuard, authClient)
	preferencesService := preferences.NewService(prefsRepo)
	analyticsService := analytics.NewService(analysisRepo, usageRepo)
	accountService := account.NewService(
		prefsRepo, analysisRepo, usageRepo, batchJobRepo, subRepo, profileRepo, authClient,
	)
	settingsService := settings.NewService(settingsRepo)

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレートはreq/min単位なのでreq/secに変換する
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAnalyze > 0 {
		rateLimiterCfg.AnalyzeRate = rate.Limit(float64(cfg.RateLimitAnalyze) / 60.0)
		rateLimiterCfg.AnalyzeBurst = cfg.RateLimitAnalyze
	}

	deps := &handler.RouterDeps{
		UserResolver:      authClient,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		Logger:            slog.Default(),

		SentimentService:   sentimentService,
		ProfileService:     profileService,
		PreferencesService: preferencesService,
		UsageService:       usageService,
		AccountService:     accountService,
		SettingsService:    settingsService,
		AnalyticsService:   analyticsService,

		HealthChecker:   db,
		MetricsGatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
