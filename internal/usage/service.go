// Package usage は月間API利用量の照会と利用上限の判定を提供する。
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kanjo/internal/model"
	"github.com/hitoshi/kanjo/internal/repository"
)

// 利用量レコードが存在しないユーザーのデフォルト値。
const (
	defaultUsage = 0
	defaultLimit = 100

	// historyDays は利用履歴の参照期間（日数）。
	historyDays = 30
)

// Summary は利用量サマリーのレスポンス。
type Summary struct {
	CurrentMonthUsage int                `json:"current_month_usage"`
	Limit             int                `json:"limit"`
	SubscriptionPlan  string             `json:"subscription_plan"`
	UsageHistory      []model.DailyUsage `json:"usage_history"`
}

// Service は利用量のサービス層。
// 利用上限ゲートと利用量サマリーの照会を提供する。
type Service struct {
	profileRepo repository.ProfileRepository
	usageRepo   repository.UsageRepository

	// now はテスト用に差し替え可能な現在時刻。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(profileRepo repository.ProfileRepository, usageRepo repository.UsageRepository) *Service {
	return &Service{
		profileRepo: profileRepo,
		usageRepo:   usageRepo,
		now:         time.Now,
	}
}

// CheckLimit は月間利用量が上限に達しているかを判定する。
// 上限に達している場合はUSAGE_LIMIT_EXCEEDEDエラーを返す。
// プロフィール行が存在しないユーザーは利用量0・上限100として扱い、通過させる。
// カウンタの加算はこのメソッドの責務ではない（分析結果の保存時にトリガーで加算される）。
func (s *Service) CheckLimit(ctx context.Context, userID string) error {
	profile, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("利用量の取得に失敗しました: %w", err)
	}

	currentUsage := defaultUsage
	limit := defaultLimit
	if profile != nil {
		currentUsage = profile.APIUsageCurrentMonth
		limit = profile.APILimitPerMonth
	}

	if currentUsage >= limit {
		slog.Warn("monthly usage limit reached",
			slog.String("user_id", userID),
			slog.Int("current_usage", currentUsage),
			slog.Int("limit", limit),
		)
		return model.NewUsageLimitExceededError()
	}

	return nil
}

// GetSummary は利用量サマリーを取得する。
// 直近30日の日次利用履歴を日付昇順で含む。
// プロフィール行が存在しないユーザーにはデフォルト値を返す。
func (s *Service) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	profile, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("利用量の取得に失敗しました: %w", err)
	}

	summary := &Summary{
		CurrentMonthUsage: defaultUsage,
		Limit:             defaultLimit,
		SubscriptionPlan:  "free",
		UsageHistory:      []model.DailyUsage{},
	}
	if profile != nil {
		summary.CurrentMonthUsage = profile.APIUsageCurrentMonth
		summary.Limit = profile.APILimitPerMonth
		if profile.SubscriptionStatus != "" {
			summary.SubscriptionPlan = profile.SubscriptionStatus
		}
	}

	sinceDate := s.now().AddDate(0, 0, -historyDays).Format("2006-01-02")

	history, err := s.usageRepo.ListDailySince(ctx, userID, sinceDate)
	if err != nil {
		return nil, fmt.Errorf("利用履歴の取得に失敗しました: %w", err)
	}
	if history != nil {
		summary.UsageHistory = history
	}

	return summary, nil
}
