// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/kanjo/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// userEmailContextKey はリクエストコンテキストにユーザーのメールアドレスを格納するためのキー。
var userEmailContextKey = contextKey("user_email")

// UserResolver はアクセストークンからユーザーを解決するインターフェース。
// authclient.Clientの部分集合として定義する。
type UserResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (*model.AuthUser, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーのIDとメールアドレスをリクエストコンテキストに注入する
// ミドルウェアを返す。
// ヘッダー欠落・形式不正・トークン無効のいずれも401 Unauthorizedを返す。
func NewAuthMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを取得
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. トークンを検証してユーザーを解決
			user, err := resolver.CurrentUser(r.Context(), token)
			if err != nil {
				slog.Warn("failed to resolve user from access token",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 認証済みユーザーをコンテキストに注入
			ctx := context.WithValue(r.Context(), userIDContextKey, user.ID)
			ctx = context.WithValue(ctx, userEmailContextKey, user.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}

	return token, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// UserEmailFromContext はリクエストコンテキストからユーザーのメールアドレスを取得する。
// メールアドレスはトークンのクレームに含まれない場合があるため、空文字列を許容する。
func UserEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(userEmailContextKey).(string)
	return email
}

// ContextWithUser はコンテキストにユーザーIDとメールアドレスを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, userEmailContextKey, email)
}
