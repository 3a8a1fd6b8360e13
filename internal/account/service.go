// Package account はアカウント削除のオーケストレーションを提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/kanjo/internal/model"
	"github.com/hitoshi/kanjo/internal/repository"
)

// AuthDeleter は認証プロバイダ側のユーザー本体を削除する。
type AuthDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}

// Service はアカウント削除のサービス層。
// ユーザーが所有する全リソースを固定順で削除し、失敗したステップがあっても
// 残りのステップを最後まで実行する。トランザクションは使わない。
// 認証ユーザーの削除は必ず最後に行う。
type Service struct {
	prefsRepo    repository.PreferencesRepository
	analysisRepo repository.AnalysisRepository
	usageRepo    repository.UsageRepository
	batchJobRepo repository.BatchJobRepository
	subRepo      repository.SubscriptionRepository
	profileRepo  repository.ProfileRepository
	authDeleter  AuthDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	prefsRepo repository.PreferencesRepository,
	analysisRepo repository.AnalysisRepository,
	usageRepo repository.UsageRepository,
	batchJobRepo repository.BatchJobRepository,
	subRepo repository.SubscriptionRepository,
	profileRepo repository.ProfileRepository,
	authDeleter AuthDeleter,
) *Service {
	return &Service{
		prefsRepo:    prefsRepo,
		analysisRepo: analysisRepo,
		usageRepo:    usageRepo,
		batchJobRepo: batchJobRepo,
		subRepo:      subRepo,
		profileRepo:  profileRepo,
		authDeleter:  authDeleter,
	}
}

// Delete はユーザーのアカウントと所有リソースをすべて削除する。
// confirmedがfalseの場合は何も削除せずCONFIRMATION_REQUIREDを返す。
// 1つ以上のステップが失敗した場合、全ステップの実行後に
// 「リソース名: メッセージ」の内訳を持つPARTIAL_DELETIONを返す。
func (s *Service) Delete(ctx context.Context, userID string, confirmed bool) error {
	if !confirmed {
		return model.NewConfirmationRequiredError()
	}

	steps := []struct {
		resource string
		run      func(context.Context) error
	}{
		{"preferences", func(ctx context.Context) error { return s.prefsRepo.DeleteByUserID(ctx, userID) }},
		{"analyses", func(ctx context.Context) error { return s.analysisRepo.DeleteByUserID(ctx, userID) }},
		{"usage", func(ctx context.Context) error { return s.usageRepo.DeleteByUserID(ctx, userID) }},
		{"batch_jobs", func(ctx context.Context) error { return s.batchJobRepo.DeleteByUserID(ctx, userID) }},
		{"subscriptions", func(ctx context.Context) error { return s.subRepo.DeleteByUserID(ctx, userID) }},
		{"user", func(ctx context.Context) error { return s.profileRepo.DeleteByID(ctx, userID) }},
		// 認証ユーザーは全リソースの削除後、最後に削除する
		{"auth", func(ctx context.Context) error { return s.authDeleter.DeleteUser(ctx, userID) }},
	}

	var details []string
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			details = append(details, fmt.Sprintf("%s: %s", step.resource, err.Error()))
		}
	}

	if len(details) > 0 {
		slog.Error("account deletion partially failed",
			slog.String("user_id", userID),
			slog.Any("details", details),
		)
		return model.NewPartialDeletionError(details)
	}

	slog.Info("account deleted",
		slog.String("user_id", userID),
	)
	return nil
}
