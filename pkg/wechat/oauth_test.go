package wechat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOAuthConfig() OAuthConfig {
	return OAuthConfig{
		AppID:       "wx123",
		AppSecret:   "secret",
		RedirectURI: "https://example.com/callback",
	}
}

func TestNewOAuthValidation(t *testing.T) {
	config := testOAuthConfig()
	config.AppID = ""
	_, err := NewOAuth(config)
	require.Error(t, err)

	config = testOAuthConfig()
	config.RedirectURI = ""
	_, err = NewOAuth(config)
	require.Error(t, err)
}

func TestAuthorizeURL(t *testing.T) {
	oauth, err := NewOAuth(testOAuthConfig())
	require.NoError(t, err)

	assert.Equal(t,
		"https://open.weixin.qq.com/connect/oauth2/authorize"+
			"?appid=wx123"+
			"&redirect_uri=https%3A%2F%2Fexample.com%2Fcallback"+
			"&response_type=code&scope=snsapi_base#wechat_redirect",
		oauth.AuthorizeURL())

	config := testOAuthConfig()
	config.Scope = "snsapi_userinfo"
	config.State = "abc"
	oauth, err = NewOAuth(config)
	require.NoError(t, err)

	assert.Equal(t,
		"https://open.weixin.qq.com/connect/oauth2/authorize"+
			"?appid=wx123"+
			"&redirect_uri=https%3A%2F%2Fexample.com%2Fcallback"+
			"&response_type=code&scope=snsapi_userinfo&state=abc#wechat_redirect",
		oauth.AuthorizeURL())
}

func TestQRConnectURL(t *testing.T) {
	config := testOAuthConfig()
	config.State = "abc"
	oauth, err := NewOAuth(config)
	require.NoError(t, err)

	assert.Equal(t,
		"https://open.weixin.qq.com/connect/qrconnect"+
			"?appid=wx123"+
			"&redirect_uri=https%3A%2F%2Fexample.com%2Fcallback"+
			"&response_type=code&scope=snsapi_login&state=abc#wechat_redirect",
		oauth.QRConnectURL())
}

func TestExchangeCode(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sns/oauth2/access_token", r.URL.Path)
		assert.Equal(t, "wx123", r.URL.Query().Get("appid"))
		assert.Equal(t, "secret", r.URL.Query().Get("secret"))
		assert.Equal(t, "CODE", r.URL.Query().Get("code"))
		assert.Equal(t, "authorization_code", r.URL.Query().Get("grant_type"))

		fmt.Fprint(w, `{"access_token":"USER_TOKEN","expires_in":7200,"refresh_token":"REFRESH","openid":"user-openid","scope":"snsapi_base"}`)
	}))
	defer server.Close()

	config := testOAuthConfig()
	config.APIBaseURL = server.URL
	oauth, err := NewOAuth(config)
	require.NoError(t, err)

	token, err := oauth.ExchangeCode(ctx, "CODE")
	require.NoError(t, err)
	assert.Equal(t, "USER_TOKEN", token.AccessToken)
	assert.Equal(t, "REFRESH", token.RefreshToken)
	assert.Equal(t, "user-openid", token.OpenID)
	assert.Equal(t, int64(7200), token.ExpiresIn)

	_, err = oauth.ExchangeCode(ctx, "")
	require.Error(t, err)
}

func TestExchangeCodeSurfacesPlatformError(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errcode":40029,"errmsg":"invalid code"}`)
	}))
	defer server.Close()

	config := testOAuthConfig()
	config.APIBaseURL = server.URL
	oauth, err := NewOAuth(config)
	require.NoError(t, err)

	_, err = oauth.ExchangeCode(ctx, "BADCODE")
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 40029, apiErr.Code)
}

func TestRefreshUserToken(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sns/oauth2/refresh_token", r.URL.Path)
		assert.Equal(t, "REFRESH", r.URL.Query().Get("refresh_token"))
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))

		fmt.Fprint(w, `{"access_token":"USER_TOKEN2","expires_in":7200,"refresh_token":"REFRESH2","openid":"user-openid","scope":"snsapi_base"}`)
	}))
	defer server.Close()

	config := testOAuthConfig()
	config.APIBaseURL = server.URL
	oauth, err := NewOAuth(config)
	require.NoError(t, err)

	token, err := oauth.RefreshUserToken(ctx, "REFRESH")
	require.NoError(t, err)
	assert.Equal(t, "USER_TOKEN2", token.AccessToken)
	assert.Equal(t, "REFRESH2", token.RefreshToken)
}

func TestGetUserInfo(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sns/userinfo", r.URL.Path)
		assert.Equal(t, "USER_TOKEN", r.URL.Query().Get("access_token"))
		assert.Equal(t, "user-openid", r.URL.Query().Get("openid"))

		fmt.Fprint(w, `{"openid":"user-openid","nickname":"tester","sex":1,"country":"CN","privilege":[]}`)
	}))
	defer server.Close()

	config := testOAuthConfig()
	config.APIBaseURL = server.URL
	oauth, err := NewOAuth(config)
	require.NoError(t, err)

	user, err := oauth.GetUserInfo(ctx, "USER_TOKEN", "user-openid")
	require.NoError(t, err)
	assert.Equal(t, "user-openid", user.OpenID)
	assert.Equal(t, "tester", user.Nickname)
	assert.Equal(t, "CN", user.Country)
}

func TestCheckUserToken(t *testing.T) {
	ctx := context.Background()

	valid := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sns/auth", r.URL.Path)
		if valid {
			fmt.Fprint(w, `{"errcode":0,"errmsg":"ok"}`)
			return
		}
		fmt.Fprint(w, `{"errcode":40003,"errmsg":"invalid openid"}`)
	}))
	defer server.Close()

	config := testOAuthConfig()
	config.APIBaseURL = server.URL
	oauth, err := NewOAuth(config)
	require.NoError(t, err)

	ok, err := oauth.CheckUserToken(ctx, "USER_TOKEN", "user-openid")
	require.NoError(t, err)
	assert.True(t, ok)

	valid = false
	ok, err = oauth.CheckUserToken(ctx, "USER_TOKEN", "user-openid")
	require.NoError(t, err)
	assert.False(t, ok)
}
