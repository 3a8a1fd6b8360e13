// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/kanjo/internal/middleware"
	"github.com/hitoshi/kanjo/internal/model"
	"github.com/hitoshi/kanjo/internal/sentiment"
)

// SentimentServiceInterface は感情分析ハンドラーが必要とするサービスインターフェース。
type SentimentServiceInterface interface {
	// Analyze はテキストの感情分析を実行し、結果を履歴に保存する。
	Analyze(ctx context.Context, userID, text string) (*model.SentimentResult, error)
	// History は分析履歴をページネーション付きで返す。
	History(ctx context.Context, userID string, query sentiment.HistoryQuery) (*sentiment.HistoryPage, error)
}

// SentimentHandler は感情分析のHTTPハンドラー。
type SentimentHandler struct {
	service SentimentServiceInterface
}

// NewSentimentHandler はSentimentHandlerを生成する。
func NewSentimentHandler(service SentimentServiceInterface) *SentimentHandler {
	return &SentimentHandler{
		service: service,
	}
}

// analyzeRequest は感情分析リクエストのボディ。
type analyzeRequest struct {
	Text string `json:"text"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Category string   `json:"category"`
	Action   string   `json:"action"`
	Details  []string `json:"details,omitempty"`
}

// Analyze はテキストの感情分析を実行する。
// POST /api/sentiment/analyze
func (h *SentimentHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError())
		return
	}

	result, err := h.service.Analyze(r.Context(), userID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// History は分析履歴を取得する。
// GET /api/sentiment/history?page=&limit=&date_from=&date_to=&sentiment=
func (h *SentimentHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	query := sentiment.HistoryQuery{}
	params := r.URL.Query()

	if page, err := strconv.Atoi(params.Get("page")); err == nil {
		query.Page = page
	}
	if limit, err := strconv.Atoi(params.Get("limit")); err == nil {
		query.Limit = limit
	}
	if from := parseDateParam(params.Get("date_from")); from != nil {
		query.DateFrom = from
	}
	if to := parseDateParam(params.Get("date_to")); to != nil {
		query.DateTo = to
	}
	if raw := params.Get("sentiment"); raw != "" {
		s := model.Sentiment(raw)
		query.Sentiment = &s
	}

	page, err := h.service.History(r.Context(), userID, query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// parseDateParam は日付クエリパラメータを解析する。
// RFC3339と日付のみ（2006-01-02）の両形式を受け付け、不正な値はnilを返す。
func parseDateParam(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}

// --- ヘルパー関数 ---

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Details:  apiErr.Details,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidInput,
		model.ErrCodeTextTooLong,
		model.ErrCodeNoValidFields,
		model.ErrCodeInvalidEmail,
		model.ErrCodeEmailUpdateFailed,
		model.ErrCodeInvalidAvatarURL,
		model.ErrCodeConfirmationRequired,
		model.ErrCodeInvalidSettings:
		return http.StatusBadRequest
	case model.ErrCodeUsageLimitExceeded:
		return http.StatusTooManyRequests
	case model.ErrCodeUserNotFound,
		model.ErrCodePartialDeletion:
		// プロフィール行の欠落は認証済みユーザーとしては異常な状態のため500
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
