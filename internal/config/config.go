package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth（ホスト型認証プロバイダ）
	AuthBaseURL        string
	AuthServiceRoleKey string
	AuthJWTSecret      string

	// LLM
	OpenAIAPIKey       string
	OpenAIModel        string
	SentimentMaxTokens int
	LLMTimeout         time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitAnalyze int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// OPENAI_API_KEYは任意で、未設定の場合は決定的なレキシコン分類器に
// フォールバックする（オフラインモード）。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AuthBaseURL = os.Getenv("AUTH_BASE_URL")
	if cfg.AuthBaseURL == "" {
		missing = append(missing, "AUTH_BASE_URL")
	}

	cfg.AuthServiceRoleKey = os.Getenv("AUTH_SERVICE_ROLE_KEY")
	if cfg.AuthServiceRoleKey == "" {
		missing = append(missing, "AUTH_SERVICE_ROLE_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.SentimentMaxTokens = getEnvInt("SENTIMENT_MAX_TOKENS", 1000)
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 30*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAnalyze = getEnvInt("RATE_LIMIT_ANALYZE", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
