// Package wechat is a client SDK for the WeChat public-platform HTTP API.
// It manages access-token caching and refresh transparently and exposes the
// message-security primitives webhook handlers need.
package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tidewave/wechatgo/pkg/credentials"
	"github.com/tidewave/wechatgo/pkg/crypto"
	"github.com/tidewave/wechatgo/pkg/store"
)

// AppCredentials holds the static configuration the platform issues for one
// application. EncodingAESKey may be empty for accounts running in plain
// (unencrypted) webhook mode.
type AppCredentials struct {
	AppID          string
	AppSecret      string
	Token          string
	EncodingAESKey string
}

// Client provides a high-level interface for the WeChat API
type Client struct {
	creds      AppCredentials
	config     *ClientConfig
	httpClient *http.Client
	crypto     *crypto.MessageCrypto
	tokens     *credentials.Manager
}

// NewClient creates a new WeChat client with the given options. Invalid
// static configuration (missing fields, malformed EncodingAESKey) fails
// here rather than on the first API call.
func NewClient(creds AppCredentials, options ...ClientOption) (*Client, error) {
	if creds.AppID == "" {
		return nil, fmt.Errorf("app id is required")
	}
	if creds.AppSecret == "" {
		return nil, fmt.Errorf("app secret is required")
	}

	config := DefaultConfig()
	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	client := &Client{
		creds:      creds,
		config:     config,
		httpClient: httpClient,
	}

	if creds.EncodingAESKey != "" {
		messageCrypto, err := crypto.NewMessageCrypto(creds.Token, creds.EncodingAESKey, creds.AppID)
		if err != nil {
			return nil, err
		}
		client.crypto = messageCrypto
	}

	cache := config.Store
	if cache == nil {
		cache = store.NewMemoryStore()
	}

	client.tokens = credentials.NewManager(cache, client, credentials.WithSafetyMargin(config.SafetyMargin))

	return client, nil
}

// Crypto returns the message crypto for this application, or nil when the
// account runs in plain webhook mode.
func (c *Client) Crypto() *crypto.MessageCrypto {
	return c.crypto
}

// AccessToken returns a valid API access token, refreshing it if the cached
// one is missing or close to expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.tokens.Get(ctx, c.creds.AppID, credentials.AccessToken)
}

// InvalidateAccessToken evicts the cached access token. The next authorized
// call will fetch a fresh one.
func (c *Client) InvalidateAccessToken(ctx context.Context) error {
	return c.tokens.Invalidate(ctx, c.creds.AppID, credentials.AccessToken)
}

// JSAPITicket returns a valid jsapi ticket, refreshing it if needed.
func (c *Client) JSAPITicket(ctx context.Context) (string, error) {
	return c.tokens.Get(ctx, c.creds.AppID, credentials.JSAPITicket)
}

// FetchCredential implements credentials.Fetcher. It is invoked by the
// token manager inside a collapsed refresh; application code should call
// AccessToken/JSAPITicket instead.
func (c *Client) FetchCredential(ctx context.Context, _ string, kind credentials.Kind) (string, time.Duration, error) {
	switch kind {
	case credentials.AccessToken:
		return c.fetchAccessToken(ctx)
	case credentials.JSAPITicket:
		return c.fetchJSAPITicket(ctx)
	}

	return "", 0, fmt.Errorf("unknown credential kind %q", kind)
}

func (c *Client) fetchAccessToken(ctx context.Context) (string, time.Duration, error) {
	path := fmt.Sprintf("/cgi-bin/token?grant_type=client_credential&appid=%s&secret=%s",
		url.QueryEscape(c.creds.AppID), url.QueryEscape(c.creds.AppSecret))

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch access token: %w", err)
	}
	if err := handleAPIResponse(resp, &result); err != nil {
		return "", 0, fmt.Errorf("failed to fetch access token: %w", err)
	}

	return result.AccessToken, time.Duration(result.ExpiresIn) * time.Second, nil
}

func (c *Client) fetchJSAPITicket(ctx context.Context) (string, time.Duration, error) {
	var result struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int64  `json:"expires_in"`
	}

	if err := c.doAuthorized(ctx, "GET", "/cgi-bin/ticket/getticket?type=jsapi", nil, &result); err != nil {
		return "", 0, fmt.Errorf("failed to fetch jsapi ticket: %w", err)
	}

	return result.Ticket, time.Duration(result.ExpiresIn) * time.Second, nil
}

// SendText sends a customer-service text message to a user
func (c *Client) SendText(ctx context.Context, openID, content string) error {
	if openID == "" {
		return fmt.Errorf("open id is required")
	}

	req := map[string]interface{}{
		"touser":  openID,
		"msgtype": "text",
		"text": map[string]string{
			"content": content,
		},
	}

	if err := c.doAuthorized(ctx, "POST", "/cgi-bin/message/custom/send", req, nil); err != nil {
		return fmt.Errorf("failed to send text message: %w", err)
	}

	return nil
}

// User is a follower profile returned by the user info endpoint
type User struct {
	OpenID        string `json:"openid"`
	UnionID       string `json:"unionid,omitempty"`
	Subscribe     int    `json:"subscribe"`
	SubscribeTime int64  `json:"subscribe_time"`
	Language      string `json:"language"`
	Remark        string `json:"remark"`
	GroupID       int    `json:"groupid"`
}

// GetUser retrieves a follower's profile by openid
func (c *Client) GetUser(ctx context.Context, openID string) (*User, error) {
	if openID == "" {
		return nil, fmt.Errorf("open id is required")
	}

	path := fmt.Sprintf("/cgi-bin/user/info?openid=%s&lang=zh_CN", url.QueryEscape(openID))

	var user User
	if err := c.doAuthorized(ctx, "GET", path, nil, &user); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// doAuthorized performs an API call with the access token attached. If the
// platform reports the token as invalid or expired, the cached token is
// invalidated and the call retried exactly once.
func (c *Client) doAuthorized(ctx context.Context, method, path string, body, result interface{}) error {
	err := c.doAuthorizedOnce(ctx, method, path, body, result)
	if err == nil {
		return nil
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) || !apiErr.IsInvalidCredential() {
		return err
	}

	log.Debug().Int("errcode", apiErr.Code).Str("path", path).Msg("access token rejected, refreshing and retrying")

	if invErr := c.InvalidateAccessToken(ctx); invErr != nil {
		return fmt.Errorf("failed to invalidate rejected access token: %w", invErr)
	}

	return c.doAuthorizedOnce(ctx, method, path, body, result)
}

func (c *Client) doAuthorizedOnce(ctx context.Context, method, path string, body, result interface{}) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	authorizedPath := fmt.Sprintf("%s%saccess_token=%s", path, separator, url.QueryEscape(token))

	resp, err := c.doRequest(ctx, method, authorizedPath, body)
	if err != nil {
		return err
	}

	return handleAPIResponse(resp, result)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// handleAPIResponse decodes a platform response body. The platform signals
// failure with errcode/errmsg in a 200 response, so the body is probed for
// an error before the caller's result type is unmarshalled.
func handleAPIResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var apiErr Error
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
