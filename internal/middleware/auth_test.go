package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/kanjo/internal/model"
)

// mockUserResolver はUserResolverのモック実装
type mockUserResolver struct {
	currentUserFn func(ctx context.Context, accessToken string) (*model.AuthUser, error)
}

func (m *mockUserResolver) CurrentUser(ctx context.Context, accessToken string) (*model.AuthUser, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, accessToken)
	}
	return nil, fmt.Errorf("not configured")
}

func TestAuthMiddleware_ValidToken_InjectsUser(t *testing.T) {
	resolver := &mockUserResolver{
		currentUserFn: func(ctx context.Context, accessToken string) (*model.AuthUser, error) {
			if accessToken == "valid-token" {
				return &model.AuthUser{ID: "user-auth-test", Email: "auth@example.com"}, nil
			}
			return nil, fmt.Errorf("invalid token")
		},
	}

	mw := NewAuthMiddleware(resolver)

	var capturedUserID, capturedEmail string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		capturedEmail = UserEmailFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-auth-test" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-auth-test")
	}
	if capturedEmail != "auth@example.com" {
		t.Errorf("email = %q, want %q", capturedEmail, "auth@example.com")
	}
}

func TestAuthMiddleware_MissingHeader_Returns401(t *testing.T) {
	mw := NewAuthMiddleware(&mockUserResolver{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}

	// 統一エラーフォーマットで返ること
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("code = %q, want UNAUTHORIZED", body.Code)
	}
}

func TestAuthMiddleware_MalformedHeader_Returns401(t *testing.T) {
	mw := NewAuthMiddleware(&mockUserResolver{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	headers := []string{
		"valid-token",       // スキームなし
		"Basic dXNlcjpwdw==", // Bearer以外
		"Bearer ",           // トークンなし
	}

	for _, h := range headers {
		req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
		req.Header.Set("Authorization", h)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want %d", h, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestAuthMiddleware_InvalidToken_Returns401(t *testing.T) {
	resolver := &mockUserResolver{
		currentUserFn: func(ctx context.Context, accessToken string) (*model.AuthUser, error) {
			return nil, fmt.Errorf("token expired")
		},
	}

	mw := NewAuthMiddleware(resolver)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// Bearerスキームは大文字小文字を区別しない
func TestAuthMiddleware_CaseInsensitiveScheme(t *testing.T) {
	resolver := &mockUserResolver{
		currentUserFn: func(ctx context.Context, accessToken string) (*model.AuthUser, error) {
			return &model.AuthUser{ID: "user-1", Email: ""}, nil
		},
	}

	mw := NewAuthMiddleware(resolver)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "bearer lower-case-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestUserIDFromContext_NotSet_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without user ID")
	}
}

func TestContextWithUser_RoundTrip(t *testing.T) {
	ctx := ContextWithUser(context.Background(), "user-ctx", "ctx@example.com")

	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "user-ctx" {
		t.Errorf("userID = %q, want %q", userID, "user-ctx")
	}
	if email := UserEmailFromContext(ctx); email != "ctx@example.com" {
		t.Errorf("email = %q, want %q", email, "ctx@example.com")
	}
}
