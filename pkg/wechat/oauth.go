package wechat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultOAuthBaseURL = "https://open.weixin.qq.com/connect"

// OAuthConfig configures the web authorization client.
type OAuthConfig struct {
	AppID       string
	AppSecret   string
	RedirectURI string
	Scope       string // snsapi_base or snsapi_userinfo, defaults to snsapi_base
	State       string

	APIBaseURL   string
	OAuthBaseURL string
	HTTPClient   *http.Client
}

// OAuth implements the platform's web authorization (OAuth2) flows: it
// builds authorize URLs and exchanges/refreshes user access tokens. User
// tokens are per-user and short-lived; they are not cached by the SDK.
type OAuth struct {
	config     OAuthConfig
	httpClient *http.Client
}

// NewOAuth creates a web authorization client
func NewOAuth(config OAuthConfig) (*OAuth, error) {
	if config.AppID == "" {
		return nil, fmt.Errorf("app id is required")
	}
	if config.AppSecret == "" {
		return nil, fmt.Errorf("app secret is required")
	}
	if config.RedirectURI == "" {
		return nil, fmt.Errorf("redirect uri is required")
	}

	if config.Scope == "" {
		config.Scope = "snsapi_base"
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = DefaultConfig().BaseURL
	}
	if config.OAuthBaseURL == "" {
		config.OAuthBaseURL = defaultOAuthBaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &OAuth{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// AuthorizeURL returns the URL to redirect a browser to for authorization
func (o *OAuth) AuthorizeURL() string {
	var b strings.Builder
	b.WriteString(o.config.OAuthBaseURL)
	b.WriteString("/oauth2/authorize?appid=")
	b.WriteString(o.config.AppID)
	b.WriteString("&redirect_uri=")
	b.WriteString(url.QueryEscape(o.config.RedirectURI))
	b.WriteString("&response_type=code&scope=")
	b.WriteString(o.config.Scope)
	if o.config.State != "" {
		b.WriteString("&state=")
		b.WriteString(o.config.State)
	}
	b.WriteString("#wechat_redirect")

	return b.String()
}

// QRConnectURL returns the website QR-code login URL
func (o *OAuth) QRConnectURL() string {
	var b strings.Builder
	b.WriteString(o.config.OAuthBaseURL)
	b.WriteString("/qrconnect?appid=")
	b.WriteString(o.config.AppID)
	b.WriteString("&redirect_uri=")
	b.WriteString(url.QueryEscape(o.config.RedirectURI))
	b.WriteString("&response_type=code&scope=snsapi_login")
	if o.config.State != "" {
		b.WriteString("&state=")
		b.WriteString(o.config.State)
	}
	b.WriteString("#wechat_redirect")

	return b.String()
}

// UserToken is a per-user access token issued by the authorization flow
type UserToken struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	OpenID       string `json:"openid"`
	Scope        string `json:"scope"`
}

// ExchangeCode exchanges an authorization code for a user access token
func (o *OAuth) ExchangeCode(ctx context.Context, code string) (*UserToken, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}

	path := fmt.Sprintf("/sns/oauth2/access_token?appid=%s&secret=%s&code=%s&grant_type=authorization_code",
		url.QueryEscape(o.config.AppID), url.QueryEscape(o.config.AppSecret), url.QueryEscape(code))

	var token UserToken
	if err := o.get(ctx, path, &token); err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	return &token, nil
}

// RefreshUserToken refreshes a user access token with its refresh token
func (o *OAuth) RefreshUserToken(ctx context.Context, refreshToken string) (*UserToken, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	path := fmt.Sprintf("/sns/oauth2/refresh_token?appid=%s&grant_type=refresh_token&refresh_token=%s",
		url.QueryEscape(o.config.AppID), url.QueryEscape(refreshToken))

	var token UserToken
	if err := o.get(ctx, path, &token); err != nil {
		return nil, fmt.Errorf("failed to refresh user token: %w", err)
	}

	return &token, nil
}

// OAuthUser is a user profile fetched with a snsapi_userinfo token
type OAuthUser struct {
	OpenID     string   `json:"openid"`
	Nickname   string   `json:"nickname"`
	Sex        int      `json:"sex"`
	Province   string   `json:"province"`
	City       string   `json:"city"`
	Country    string   `json:"country"`
	HeadImgURL string   `json:"headimgurl"`
	Privilege  []string `json:"privilege"`
	UnionID    string   `json:"unionid,omitempty"`
}

// GetUserInfo fetches the user profile for a snsapi_userinfo token
func (o *OAuth) GetUserInfo(ctx context.Context, accessToken, openID string) (*OAuthUser, error) {
	path := fmt.Sprintf("/sns/userinfo?access_token=%s&openid=%s&lang=zh_CN",
		url.QueryEscape(accessToken), url.QueryEscape(openID))

	var user OAuthUser
	if err := o.get(ctx, path, &user); err != nil {
		return nil, fmt.Errorf("failed to get oauth user info: %w", err)
	}

	return &user, nil
}

// CheckUserToken reports whether a user access token is still valid
func (o *OAuth) CheckUserToken(ctx context.Context, accessToken, openID string) (bool, error) {
	path := fmt.Sprintf("/sns/auth?access_token=%s&openid=%s",
		url.QueryEscape(accessToken), url.QueryEscape(openID))

	if err := o.get(ctx, path, nil); err != nil {
		if _, ok := AsError(err); ok {
			return false, nil
		}
		return false, fmt.Errorf("failed to check user token: %w", err)
	}

	return true, nil
}

func (o *OAuth) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.config.APIBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	return handleAPIResponse(resp, result)
}
