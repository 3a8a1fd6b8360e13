package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/kanjo/internal/middleware"
	"github.com/hitoshi/kanjo/internal/model"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// Get はプロフィールとアクティブなサブスクリプションを結合したビューを返す。
	Get(ctx context.Context, userID, sessionEmail string) (*model.ProfileView, error)
	// Update はプロフィールを部分更新し、更新後のビューを返す。
	Update(ctx context.Context, userID, sessionEmail string, update model.ProfileUpdate) (*model.ProfileView, error)
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{
		service: service,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateProfileRequest struct {
	FullName  *string `json:"full_name"`
	Email     *string `json:"email"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}

// profileUserResponse はプロフィールのAPIレスポンス。
type profileUserResponse struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	FullName             string    `json:"full_name"`
	Bio                  string    `json:"bio"`
	AvatarURL            string    `json:"avatar_url,omitempty"`
	SubscriptionStatus   string    `json:"subscription_status"`
	APIUsageCurrentMonth int       `json:"api_usage_current_month"`
	APILimitPerMonth     int       `json:"api_limit_per_month"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at,omitzero"`
}

// profileSubscriptionResponse はアクティブなサブスクリプションのAPIレスポンス。
type profileSubscriptionResponse struct {
	PlanName         string     `json:"plan_name"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
}

// profileResponse はプロフィール取得・更新のレスポンス。
// サブスクリプションがない場合、subscriptionはnullになる。
type profileResponse struct {
	User         profileUserResponse          `json:"user"`
	Subscription *profileSubscriptionResponse `json:"subscription"`
	Message      string                       `json:"message,omitempty"`
}

// GetProfile はプロフィールを取得する。
// GET /api/user/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	email := middleware.UserEmailFromContext(r.Context())

	view, err := h.service.Get(r.Context(), userID, email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(view, ""))
}

// UpdateProfile はプロフィールを更新する。
// PUT /api/user/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	email := middleware.UserEmailFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	view, err := h.service.Update(r.Context(), userID, email, model.ProfileUpdate{
		FullName:  req.FullName,
		Email:     req.Email,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(view, "プロフィールを更新しました。"))
}

// toProfileResponse はProfileViewからAPIレスポンスに変換する。
func toProfileResponse(view *model.ProfileView, message string) profileResponse {
	resp := profileResponse{
		User: profileUserResponse{
			ID:                   view.ID,
			Email:                view.Email,
			FullName:             view.FullName,
			Bio:                  view.Bio,
			AvatarURL:            view.AvatarURL,
			SubscriptionStatus:   view.SubscriptionStatus,
			APIUsageCurrentMonth: view.APIUsageCurrentMonth,
			APILimitPerMonth:     view.APILimitPerMonth,
			CreatedAt:            view.CreatedAt,
			UpdatedAt:            view.UpdatedAt,
		},
		Message: message,
	}

	if view.PlanName != "" {
		resp.Subscription = &profileSubscriptionResponse{
			PlanName:         view.PlanName,
			Status:           view.PlanStatus,
			CurrentPeriodEnd: view.CurrentPeriodEnd,
		}
	}

	return resp
}
