package windgo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	VERSION = "0.2.0"

	DefaultHTTPTimeout = 30 * time.Second
)

// AuthResp 网关 token 接口的响应
type AuthResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// AccessTokenClaims 访问令牌内嵌的声明
//
// grants.datasets 列出账号可访问的数据集（wset/wsd/wss），
// 为空表示不限。
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Grants struct {
		Datasets   []string `json:"datasets"`
		ExpiryDate string   `json:"expiry_date"`
	} `json:"grants"`
	Username string `json:"username"`
}

// GatewayAuth 终端网关认证
type GatewayAuth struct {
	Username string
	Password string

	authURL     string
	accessToken string
	expiresAt   time.Time
	datasets    map[string]struct{}
}

// NewGatewayAuth 创建网关认证器
func NewGatewayAuth(username, password, authURL string) *GatewayAuth {
	return &GatewayAuth{
		Username: username,
		Password: password,
		authURL:  strings.TrimRight(authURL, "/"),
		datasets: map[string]struct{}{},
	}
}

// BaseHeader 返回携带认证信息的 HTTP Header
func (a *GatewayAuth) BaseHeader() http.Header {
	headers := http.Header{}
	headers.Add("User-Agent", fmt.Sprintf("windgo %s", VERSION))
	headers.Add("Accept", "application/json")
	if a.accessToken != "" {
		headers.Add("Authorization", fmt.Sprintf("Bearer %s", a.accessToken))
	}
	return headers
}

// Login 执行登录，获取访问令牌并解析数据集授权
func (a *GatewayAuth) Login() error {
	if err := a.requestToken(); err != nil {
		zap.L().Error("login request token error", zap.Error(err))
		return err
	}

	claims := &AccessTokenClaims{}
	token, _, err := new(jwt.Parser).ParseUnverified(a.accessToken, claims)
	if err != nil {
		zap.L().Error("jwt parse error", zap.Error(err))
		return err
	}

	if c, ok := token.Claims.(*AccessTokenClaims); ok {
		if c.ExpiresAt != nil {
			a.expiresAt = c.ExpiresAt.Time
		}
		a.datasets = make(map[string]struct{}, len(c.Grants.Datasets))
		for _, ds := range c.Grants.Datasets {
			a.datasets[ds] = struct{}{}
		}
	}
	return nil
}

// Expired 令牌是否已过期
func (a *GatewayAuth) Expired() bool {
	return !a.expiresAt.IsZero() && time.Now().After(a.expiresAt)
}

// HasGrant 检查是否有访问指定数据集的权限
func (a *GatewayAuth) HasGrant(dataset string) bool {
	if len(a.datasets) == 0 {
		return true
	}
	_, ok := a.datasets[dataset]
	return ok
}

func (a *GatewayAuth) requestToken() error {
	reqData := url.Values{}
	reqData.Add("username", a.Username)
	reqData.Add("password", a.Password)
	reqData.Add("grant_type", "password")

	tokenURL := a.authURL + "/token"
	req, err := http.NewRequest(http.MethodPost, tokenURL, strings.NewReader(reqData.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Add("User-Agent", fmt.Sprintf("windgo %s", VERSION))
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: DefaultHTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, string(body))
	}

	authResp := &AuthResp{}
	if err := json.Unmarshal(body, authResp); err != nil {
		return fmt.Errorf("parse token response: %w", err)
	}
	if authResp.AccessToken == "" {
		return fmt.Errorf("token endpoint returned empty access_token")
	}

	a.accessToken = authResp.AccessToken
	return nil
}
