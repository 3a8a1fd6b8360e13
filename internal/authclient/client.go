// Package authclient はホスト型認証プロバイダ（GoTrue互換API）のクライアントを提供する。
// ユーザーの正（id、email）は認証プロバイダ側にあり、このコアは
// セッション解決・メール変更・ユーザー削除の3操作のみを利用する。
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/kanjo/internal/model"
)

// Config は認証プロバイダクライアントの設定。
type Config struct {
	// BaseURL は認証プロバイダのベースURL（例: "https://xyz.supabase.co"）。
	BaseURL string

	// ServiceRoleKey は管理者API（メール変更・ユーザー削除）に使用するキー。
	ServiceRoleKey string

	// JWTSecret が設定されている場合、アクセストークンをローカルで検証する。
	// 未設定の場合はプロバイダの /auth/v1/user に問い合わせる。
	JWTSecret string

	// HTTPClient はテスト用にオーバーライド可能なHTTPクライアント。
	HTTPClient *http.Client
}

// Client は認証プロバイダへのHTTPクライアント。
type Client struct {
	config Config
	client *http.Client
}

// NewClient はClientを生成する。
func NewClient(config Config) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		config: config,
		client: config.HTTPClient,
	}
}

// CurrentUser はアクセストークンからユーザー（id、email）を解決する。
// JWTシークレットが設定されていればローカル検証（ネットワーク往復なし）、
// なければプロバイダへの問い合わせで解決する。
// トークンが無効な場合はエラーを返し、副作用は持たない。
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*model.AuthUser, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is empty")
	}

	if c.config.JWTSecret != "" {
		return c.verifyToken(accessToken)
	}

	return c.fetchUser(ctx, accessToken)
}

// tokenClaims はアクセストークンのクレーム。GoTrueはsubにユーザーIDを格納する。
type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// verifyToken はアクセストークンをHS256でローカル検証し、クレームからユーザーを解決する。
func (c *Client) verifyToken(accessToken string) (*model.AuthUser, error) {
	claims := &tokenClaims{}

	token, err := jwt.ParseWithClaims(accessToken, claims,
		func(t *jwt.Token) (any, error) {
			return []byte(c.config.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience("authenticated"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify access token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("access token is invalid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("access token has no subject claim")
	}

	return &model.AuthUser{
		ID:    claims.Subject,
		Email: claims.Email,
	}, nil
}

// providerUser はプロバイダの /auth/v1/user エンドポイントのレスポンス。
type providerUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// fetchUser はプロバイダに問い合わせてユーザーを解決する。
func (c *Client) fetchUser(ctx context.Context, accessToken string) (*model.AuthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", c.config.ServiceRoleKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user request returned status %d", resp.StatusCode)
	}

	var user providerUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("user response has no id")
	}

	return &model.AuthUser{ID: user.ID, Email: user.Email}, nil
}

// UpdateUserEmail は認証プロバイダ側のメールアドレス（正）を変更する。
// 失敗した場合、呼び出し側はプロフィールストアへの書き込みを行ってはならない。
func (c *Client) UpdateUserEmail(ctx context.Context, userID, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("failed to marshal email update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.config.BaseURL+"/auth/v1/admin/users/"+userID, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email update request: %w", err)
	}
	c.setAdminHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("email update request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email update returned status %d: %s",
			resp.StatusCode, readErrorMessage(resp.Body))
	}

	return nil
}

// DeleteUser は認証プロバイダ側のユーザーを削除する。
// アカウント削除オーケストレーションの最終ステップとして呼ばれる。
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.config.BaseURL+"/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return fmt.Errorf("failed to create user delete request: %w", err)
	}
	c.setAdminHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("user delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("user delete returned status %d: %s",
			resp.StatusCode, readErrorMessage(resp.Body))
	}

	return nil
}

// setAdminHeaders は管理者APIに必要なヘッダーを設定する。
func (c *Client) setAdminHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.ServiceRoleKey)
	req.Header.Set("apikey", c.config.ServiceRoleKey)
}

// errorResponse はプロバイダのエラーレスポンスの代表的な形。
type errorResponse struct {
	Message  string `json:"message"`
	Msg      string `json:"msg"`
	ErrorStr string `json:"error"`
}

// readErrorMessage はエラーレスポンスのボディから人間可読なメッセージを取り出す。
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}

	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil {
		switch {
		case er.Message != "":
			return er.Message
		case er.Msg != "":
			return er.Msg
		case er.ErrorStr != "":
			return er.ErrorStr
		}
	}

	return string(raw)
}
