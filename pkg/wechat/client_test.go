package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAESKey = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQ"

func testCreds() AppCredentials {
	return AppCredentials{
		AppID:     "wx123",
		AppSecret: "secret",
		Token:     "callback-token",
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(AppCredentials{AppSecret: "secret"})
	require.Error(t, err)

	_, err = NewClient(AppCredentials{AppID: "wx123"})
	require.Error(t, err)

	creds := testCreds()
	creds.EncodingAESKey = "too-short"
	_, err = NewClient(creds)
	require.Error(t, err, "a malformed aes key must fail at construction")

	creds.EncodingAESKey = testAESKey
	client, err := NewClient(creds)
	require.NoError(t, err)
	assert.NotNil(t, client.Crypto())

	client, err = NewClient(testCreds())
	require.NoError(t, err)
	assert.Nil(t, client.Crypto(), "plain-mode accounts have no message crypto")
}

func TestAccessTokenFetchedOnceAndCached(t *testing.T) {
	ctx := context.Background()

	var tokenHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cgi-bin/token", r.URL.Path)
		require.Equal(t, "wx123", r.URL.Query().Get("appid"))
		require.Equal(t, "secret", r.URL.Query().Get("secret"))

		n := atomic.AddInt32(&tokenHits, 1)
		fmt.Fprintf(w, `{"access_token":"TOKEN%d","expires_in":7200}`, n)
	}))
	defer server.Close()

	client, err := NewClient(testCreds(), WithBaseURL(server.URL))
	require.NoError(t, err)

	token, err := client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN1", token)

	token, err = client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN1", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenHits))
}

func TestSendTextInvalidatesAndRetriesOnRejectedToken(t *testing.T) {
	ctx := context.Background()

	var tokenHits, sendHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenHits, 1)
		fmt.Fprintf(w, `{"access_token":"TOKEN%d","expires_in":7200}`, n)
	})
	mux.HandleFunc("/cgi-bin/message/custom/send", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&sendHits, 1)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-openid", req["touser"])

		if n == 1 {
			// the platform invalidated our first token out from under us
			assert.Equal(t, "TOKEN1", r.URL.Query().Get("access_token"))
			fmt.Fprint(w, `{"errcode":40001,"errmsg":"invalid credential"}`)
			return
		}

		assert.Equal(t, "TOKEN2", r.URL.Query().Get("access_token"))
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok"}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(testCreds(), WithBaseURL(server.URL))
	require.NoError(t, err)

	require.NoError(t, client.SendText(ctx, "user-openid", "hello"))

	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenHits))
	assert.Equal(t, int32(2), atomic.LoadInt32(&sendHits))
}

func TestSendTextRetriesOnlyOnce(t *testing.T) {
	ctx := context.Background()

	var sendHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"TOKEN","expires_in":7200}`)
	})
	mux.HandleFunc("/cgi-bin/message/custom/send", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sendHits, 1)
		fmt.Fprint(w, `{"errcode":42001,"errmsg":"access_token expired"}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(testCreds(), WithBaseURL(server.URL))
	require.NoError(t, err)

	err = client.SendText(ctx, "user-openid", "hello")
	require.Error(t, err)
	assert.True(t, IsInvalidCredentialError(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&sendHits))
}

func TestAPIErrorsAreTyped(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"TOKEN","expires_in":7200}`)
	})
	mux.HandleFunc("/cgi-bin/message/custom/send", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errcode":45009,"errmsg":"reach max api daily quota limit"}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(testCreds(), WithBaseURL(server.URL))
	require.NoError(t, err)

	err = client.SendText(ctx, "user-openid", "hello")
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 45009, apiErr.Code)
	assert.True(t, IsRateLimitedError(err))
	assert.False(t, IsInvalidCredentialError(err))
}

func TestTokenFetchFailureSurfaced(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errcode":40013,"errmsg":"invalid appid"}`)
	}))
	defer server.Close()

	client, err := NewClient(testCreds(), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.AccessToken(ctx)
	require.Error(t, err)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 40013, apiErr.Code)
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"TOKEN","expires_in":7200}`)
	})
	mux.HandleFunc("/cgi-bin/user/info", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user-openid", r.URL.Query().Get("openid"))
		assert.Equal(t, "TOKEN", r.URL.Query().Get("access_token"))
		fmt.Fprint(w, `{"openid":"user-openid","subscribe":1,"language":"zh_CN","subscribe_time":1409735669}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(testCreds(), WithBaseURL(server.URL))
	require.NoError(t, err)

	user, err := client.GetUser(ctx, "user-openid")
	require.NoError(t, err)
	assert.Equal(t, "user-openid", user.OpenID)
	assert.Equal(t, 1, user.Subscribe)
	assert.Equal(t, int64(1409735669), user.SubscribeTime)
}

func TestJSAPITicket(t *testing.T) {
	ctx := context.Background()

	var ticketHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"TOKEN","expires_in":7200}`)
	})
	mux.HandleFunc("/cgi-bin/ticket/getticket", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ticketHits, 1)
		assert.Equal(t, "jsapi", r.URL.Query().Get("type"))
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok","ticket":"TICKET","expires_in":7200}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(testCreds(), WithBaseURL(server.URL))
	require.NoError(t, err)

	ticket, err := client.JSAPITicket(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TICKET", ticket)

	// the ticket is cached independently of the access token
	_, err = client.JSAPITicket(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ticketHits))
}
