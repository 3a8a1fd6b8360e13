package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kanjo/internal/middleware"
	"github.com/hitoshi/kanjo/internal/model"
)

// SettingsServiceInterface は設定ブロブハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	// Get はユーザーの設定ブロブを返す。行が存在しない場合はnilを返す。
	Get(ctx context.Context, userID string) (*model.UserSettings, error)
	// Save は設定ブロブを保存し、保存後の行を返す。
	Save(ctx context.Context, userID string, raw json.RawMessage) (*model.UserSettings, error)
}

// SettingsHandler は不透明なJSON設定ブロブのHTTPハンドラー。
type SettingsHandler struct {
	service SettingsServiceInterface
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{
		service: service,
	}
}

// saveSettingsRequest は設定保存リクエストのボディ。
type saveSettingsRequest struct {
	Settings json.RawMessage `json:"settings"`
}

// settingsResponse は設定取得・保存のレスポンス。
// 行が存在しない場合、settingsはnullになる。
type settingsResponse struct {
	Settings json.RawMessage `json:"settings"`
}

// GetSettings はユーザーの設定ブロブを取得する。
// GET /api/user/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	settings, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := settingsResponse{Settings: json.RawMessage("null")}
	if settings != nil {
		resp.Settings = settings.Settings
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SaveSettings は設定ブロブを保存する。
// POST /api/user/settings
func (h *SettingsHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req saveSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidSettingsError())
		return
	}

	saved, err := h.service.Save(r.Context(), userID, req.Settings)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settingsResponse{Settings: saved.Settings})
}
