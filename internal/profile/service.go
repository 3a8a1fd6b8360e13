// Package profile はユーザープロフィールの取得・更新のドメインロジックを提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/hitoshi/kanjo/internal/model"
	"github.com/hitoshi/kanjo/internal/repository"
	"github.com/hitoshi/kanjo/internal/security"
)

// サブスクリプションが存在しない場合のデフォルト
const (
	defaultSubscriptionStatus = "free"
	defaultAPILimit           = 100
)

// proプランの月額（最小通貨単位）。月額でこの金額ならpro、それ以外はenterprise。
const proMonthlyAmount = 1900

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// EmailUpdater は認証プロバイダ側のメールアドレスを更新する。
// メールアドレスの正は認証プロバイダにあるため、プロフィール行への
// 書き込みは必ずこの更新の成功後に行う。
type EmailUpdater interface {
	UpdateUserEmail(ctx context.Context, userID, email string) error
}

// Service はプロフィールのサービス層。
type Service struct {
	profileRepo     repository.ProfileRepository
	subRepo         repository.SubscriptionRepository
	sanitizer       security.ProfileSanitizerService
	avatarValidator security.AvatarURLValidator
	emailUpdater    EmailUpdater

	// now はテスト用に差し替え可能な現在時刻。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	profileRepo repository.ProfileRepository,
	subRepo repository.SubscriptionRepository,
	sanitizer security.ProfileSanitizerService,
	avatarValidator security.AvatarURLValidator,
	emailUpdater EmailUpdater,
) *Service {
	return &Service{
		profileRepo:     profileRepo,
		subRepo:         subRepo,
		sanitizer:       sanitizer,
		avatarValidator: avatarValidator,
		emailUpdater:    emailUpdater,
		now:             time.Now,
	}
}

// Get はプロフィールとアクティブなサブスクリプションを結合したビューを返す。
// プラン名はサブスクリプションの内容から導出される（保存されない）。
// サブスクリプションの取得失敗は致命的ではなく、プロフィールのみのビューを返す。
func (s *Service) Get(ctx context.Context, userID, sessionEmail string) (*model.ProfileView, error) {
	prof, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if prof == nil {
		return nil, model.NewUserNotFoundError()
	}

	sub, err := s.subRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		slog.Warn("failed to fetch active subscription",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		sub = nil
	}

	return buildView(prof, sub, sessionEmail), nil
}

// Update はプロフィールを部分更新し、更新後のビューを返す。
// メールアドレスの変更はセッションのメールアドレスと異なる場合のみ行い、
// 認証プロバイダ側の更新を先に実行する。認証側の更新に失敗した場合、
// プロフィール行への書き込みは一切行わない。
// 実質的な変更フィールドが1つもない場合は書き込みをスキップし、
// 現在のビューをそのまま返す。
func (s *Service) Update(ctx context.Context, userID, sessionEmail string, update model.ProfileUpdate) (*model.ProfileView, error) {
	patch := repository.ProfilePatch{}

	if update.FullName != nil {
		name := s.sanitizer.Sanitize(*update.FullName)
		if name != "" {
			// 旧スキーマ互換のためnameとfull_nameの両方に書き込む
			patch.FullName = &name
			patch.Name = &name
		}
	}

	if update.Bio != nil {
		bio := s.sanitizer.Sanitize(*update.Bio)
		patch.Bio = &bio
	}

	if update.AvatarURL != nil {
		if err := s.avatarValidator.Validate(ctx, *update.AvatarURL); err != nil {
			return nil, model.NewInvalidAvatarURLError(err.Error())
		}
		patch.AvatarURL = update.AvatarURL
	}

	if update.Email != nil && *update.Email != "" && *update.Email != sessionEmail {
		email := *update.Email
		if !emailPattern.MatchString(email) {
			return nil, model.NewInvalidEmailError()
		}

		if err := s.emailUpdater.UpdateUserEmail(ctx, userID, email); err != nil {
			slog.Warn("auth email update failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return nil, model.NewEmailUpdateFailedError(err.Error())
		}
		patch.Email = &email
	}

	if !patch.IsEmpty() {
		patch.UpdatedAt = s.now()
		if err := s.profileRepo.Update(ctx, userID, patch); err != nil {
			return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
		}

		slog.Info("profile updated",
			slog.String("user_id", userID),
			slog.Bool("email_changed", patch.Email != nil),
		)
	}

	return s.Get(ctx, userID, sessionEmail)
}

// buildView はプロフィール行とサブスクリプションから表示用ビューを組み立てる。
// 欠落フィールドにはデフォルト値を補う。
func buildView(prof *model.Profile, sub *model.Subscription, sessionEmail string) *model.ProfileView {
	view := &model.ProfileView{
		ID:                   prof.ID,
		Email:                prof.Email,
		FullName:             prof.FullName,
		Bio:                  prof.Bio,
		AvatarURL:            prof.AvatarURL,
		SubscriptionStatus:   prof.SubscriptionStatus,
		APIUsageCurrentMonth: prof.APIUsageCurrentMonth,
		APILimitPerMonth:     prof.APILimitPerMonth,
		CreatedAt:            prof.CreatedAt,
		UpdatedAt:            prof.UpdatedAt,
	}

	if view.Email == "" {
		view.Email = sessionEmail
	}
	// full_nameは旧スキーマのname列にフォールバックする
	if view.FullName == "" {
		view.FullName = prof.Name
	}
	if view.SubscriptionStatus == "" {
		view.SubscriptionStatus = defaultSubscriptionStatus
	}
	if view.APILimitPerMonth == 0 {
		view.APILimitPerMonth = defaultAPILimit
	}

	if sub != nil {
		view.PlanName = derivePlanName(sub)
		view.PlanStatus = sub.Status
		end := sub.CurrentPeriodEnd
		view.CurrentPeriodEnd = &end
	}

	return view
}

// derivePlanName はサブスクリプションの周期と金額からプラン名を導出する。
func derivePlanName(sub *model.Subscription) string {
	if sub.Interval != "month" {
		return "free"
	}
	if sub.Amount == proMonthlyAmount {
		return "pro"
	}
	return "enterprise"
}
