package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kanjo/internal/middleware"
	"github.com/hitoshi/kanjo/internal/model"
)

// PreferencesServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type PreferencesServiceInterface interface {
	// Get はユーザーの設定を返す。行が存在しない場合はデフォルト設定を返す。
	Get(ctx context.Context, userID string) (*model.Preferences, error)
	// Update は設定を部分更新する。
	Update(ctx context.Context, userID string, update model.PreferencesUpdate) (*model.Preferences, error)
	// Reset は設定をデフォルトに戻す。
	Reset(ctx context.Context, userID string) error
}

// PreferencesHandler はユーザー設定のHTTPハンドラー。
type PreferencesHandler struct {
	service PreferencesServiceInterface
}

// NewPreferencesHandler はPreferencesHandlerを生成する。
func NewPreferencesHandler(service PreferencesServiceInterface) *PreferencesHandler {
	return &PreferencesHandler{
		service: service,
	}
}

// decodePreferencesUpdate は設定更新リクエストのボディをフィールドごとに解釈する。
// 省略されたフィールドは変更しない。型が一致しないフィールドはエラーにせず
// 更新対象から除外し、有効なフィールドのみを適用する。
func decodePreferencesUpdate(r *http.Request) (model.PreferencesUpdate, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return model.PreferencesUpdate{}, err
	}

	return model.PreferencesUpdate{
		NotificationsEnabled: boolField(fields, "notifications_enabled"),
		EmailNotifications:   boolField(fields, "email_notifications"),
		MarketingEmails:      boolField(fields, "marketing_emails"),
		Theme:                stringField(fields, "theme"),
		Language:             stringField(fields, "language"),
		Timezone:             stringField(fields, "timezone"),
	}, nil
}

// boolField は生のJSONフィールドをboolとして解釈する。
// 欠落、null、型不一致はいずれも「指定なし」として扱う。
func boolField(fields map[string]json.RawMessage, key string) *bool {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// stringField は生のJSONフィールドをstringとして解釈する。
func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// preferencesResponse は設定取得・更新のレスポンス。
type preferencesResponse struct {
	Preferences *model.Preferences `json:"preferences"`
	Message     string             `json:"message,omitempty"`
}

// GetPreferences はユーザーの設定を取得する。
// GET /api/user/preferences
func (h *PreferencesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	prefs, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(preferencesResponse{Preferences: prefs})
}

// UpdatePreferences は設定を部分更新する。
// PUT /api/user/preferences
func (h *PreferencesHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	update, err := decodePreferencesUpdate(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewNoValidFieldsError())
		return
	}

	prefs, err := h.service.Update(r.Context(), userID, update)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(preferencesResponse{
		Preferences: prefs,
		Message:     "設定を更新しました。",
	})
}

// ResetPreferences は設定をデフォルトに戻す。
// DELETE /api/user/preferences
func (h *PreferencesHandler) ResetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Reset(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(preferencesResponse{
		Preferences: model.DefaultPreferences(userID),
		Message:     "設定をリセットしました。",
	})
}
