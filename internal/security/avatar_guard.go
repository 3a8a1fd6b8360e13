// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// AvatarURLValidator はユーザーが指定したアバターURLの検証機能の
// インターフェースを定義する。プロフィール更新時に使用される。
type AvatarURLValidator interface {
	// Validate はアバターURLの安全性を検証する。
	// スキーム、ホスト、IPアドレスの静的検証に加え、safeurlによる
	// DNS解決後のIPアドレス検証（プライベートIP、ループバック、
	// リンクローカル、メタデータIPのブロック）を行う。
	// 危険なURLの場合はエラーを返す。
	Validate(ctx context.Context, rawURL string) error
}

// allowedSchemes はアバターURLで許可されるスキーム。
// 外部に表示される画像のためhttpsのみを許可する。
var allowedSchemes = []string{"https"}

// blockedNetworks はブロックされるネットワーク範囲。
// パッケージ初期化時に1回だけパースし、静的検証に使用する。
// DNS再バインディング攻撃はsafeurlのDialer検証で防止される。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// avatarGuard はAvatarURLValidatorの実装。
// 静的検証に加え、safeurlのHTTPクライアントでHEADプローブを行い、
// DNS解決後のIPアドレスがプライベート空間を指していないことを確認する。
type avatarGuard struct {
	probeClient  *http.Client
	probeEnabled bool
}

// NewAvatarGuard はAvatarURLValidatorの新しいインスタンスを生成する。
// safeurlのデフォルト設定により以下がブロックされる:
//   - プライベートIPアドレス (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
//   - ループバックアドレス (127.0.0.0/8, ::1)
//   - リンクローカルアドレス (169.254.0.0/16, fe80::/10)
//   - メタデータIPアドレス (169.254.169.254)
//
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディング攻撃にも対応している。
func NewAvatarGuard(probeTimeout time.Duration) *avatarGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(probeTimeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(443).
		Build()

	wrappedClient := safeurl.Client(config)

	return &avatarGuard{
		probeClient:  wrappedClient.Client,
		probeEnabled: true,
	}
}

// NewStaticAvatarGuard はHEADプローブを行わないインスタンスを生成する。
// 外部ネットワークに到達できない環境向け。
func NewStaticAvatarGuard() *avatarGuard {
	return &avatarGuard{probeEnabled: false}
}

// Validate はアバターURLの安全性を検証する。
// まずDNS解決を伴わない静的な検証を行い、その後safeurlクライアントで
// HEADプローブを発行してDNS解決後のIPアドレスを検証する。
// プローブはホストの到達性とIP空間のみを確認し、HTTPステータスコードは
// 検証しない（HEADを拒否するCDNを誤って弾かないため）。
func (g *avatarGuard) Validate(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// スキーム検証: httpsのみ許可
	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	// ホスト検証: 空ホストを拒否
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	// IPアドレスの場合: ブロック対象CIDRとの照合
	ip := net.ParseIP(host)
	if ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
	} else if isBlockedHostname(host) {
		// ホスト名の場合: localhost等の危険なホスト名を拒否
		return fmt.Errorf("blocked host: %s", host)
	}

	if !g.probeEnabled {
		return nil
	}

	return g.probe(ctx, rawURL)
}

// probe はsafeurlクライアントでHEADリクエストを発行し、
// DNS解決後のIPアドレス検証を通過することを確認する。
func (g *avatarGuard) probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	resp, err := g.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable or blocked host: %w", err)
	}
	resp.Body.Close()

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ AvatarURLValidator = (*avatarGuard)(nil)
