package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kanjo/internal/middleware"
	"github.com/hitoshi/kanjo/internal/model"
	"github.com/hitoshi/kanjo/internal/usage"
)

// UsageServiceInterface は利用量ハンドラーが必要とするサービスインターフェース。
type UsageServiceInterface interface {
	// GetSummary は当月の利用量と直近30日の日次履歴を返す。
	GetSummary(ctx context.Context, userID string) (*usage.Summary, error)
}

// AccountServiceInterface はアカウント削除ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// Delete はユーザーのアカウントと所有リソースをすべて削除する。
	Delete(ctx context.Context, userID string, confirmed bool) error
}

// UserHandler は利用量照会とアカウント削除のHTTPハンドラー。
type UserHandler struct {
	usageService   UsageServiceInterface
	accountService AccountServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(usageService UsageServiceInterface, accountService AccountServiceInterface) *UserHandler {
	return &UserHandler{
		usageService:   usageService,
		accountService: accountService,
	}
}

// deleteAccountRequest はアカウント削除リクエストのボディ。
type deleteAccountRequest struct {
	ConfirmDeletion bool `json:"confirm_deletion"`
}

// deleteAccountResponse はアカウント削除成功時のレスポンス。
type deleteAccountResponse struct {
	Message string `json:"message"`
}

// GetUsage は当月の利用量サマリーを取得する。
// GET /api/user/usage
func (h *UserHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	summary, err := h.usageService.GetSummary(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// DeleteAccount はアカウントと所有リソースを削除する。
// DELETE /api/user/delete
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// ボディなしのリクエストは確認なしとして扱う
	var req deleteAccountRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.accountService.Delete(r.Context(), userID, req.ConfirmDeletion); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deleteAccountResponse{
		Message: "アカウントを削除しました。",
	})
}
