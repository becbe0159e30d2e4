package wechat

import (
	"net/http"
	"time"

	"github.com/tidewave/wechatgo/pkg/store"
)

// ClientOption represents an option for configuring the WeChat client
type ClientOption func(*ClientConfig)

// ClientConfig holds the configuration for the WeChat client
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	HTTPClient   *http.Client
	UserAgent    string
	Store        store.Store   // credential cache backend, in-memory when nil
	SafetyMargin time.Duration // refresh this long before credential expiry
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      "https://api.weixin.qq.com",
		Timeout:      30 * time.Second,
		UserAgent:    "wechatgo/1.0.0",
		SafetyMargin: 5 * time.Minute,
	}
}

// WithBaseURL sets the base URL for the WeChat API
func WithBaseURL(baseURL string) ClientOption {
	return func(c *ClientConfig) {
		c.BaseURL = baseURL
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *ClientConfig) {
		c.HTTPClient = httpClient
	}
}

// WithUserAgent sets a custom user agent
func WithUserAgent(userAgent string) ClientOption {
	return func(c *ClientConfig) {
		c.UserAgent = userAgent
	}
}

// WithStore sets the credential cache backend
func WithStore(s store.Store) ClientOption {
	return func(c *ClientConfig) {
		c.Store = s
	}
}

// WithSafetyMargin sets how long before expiry cached credentials are refreshed
func WithSafetyMargin(margin time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.SafetyMargin = margin
	}
}
