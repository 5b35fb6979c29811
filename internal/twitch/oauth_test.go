package twitch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthFlow_AuthCodeURL(t *testing.T) {
	flow := NewOAuthFlow("client-id", "client-secret", "http://localhost:3000/auth/callback")

	raw := flow.AuthCodeURL("state123")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:3000/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "state123", q.Get("state"))
	assert.Equal(t, "channel:read:redemptions chat:read", q.Get("scope"))
}

func TestOAuthFlow_Exchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "code123", r.Form.Get("code"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))
		assert.Equal(t, "http://localhost:3000/auth/callback", r.Form.Get("redirect_uri"))
		w.Write([]byte(`{"access_token":"access123","refresh_token":"refresh123","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)

	flow := NewOAuthFlow("client-id", "client-secret", "http://localhost:3000/auth/callback")
	flow.TokenURL = server.URL

	tokens, err := flow.Exchange(context.Background(), "code123")
	require.NoError(t, err)
	assert.Equal(t, "access123", tokens.AccessToken)
	assert.Equal(t, "refresh123", tokens.RefreshToken)
	assert.False(t, tokens.ExpiresAt.IsZero())
}

func TestOAuthFlow_ExchangeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Invalid authorization code"}`, http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	flow := NewOAuthFlow("client-id", "client-secret", "http://localhost:3000/auth/callback")
	flow.TokenURL = server.URL

	_, err := flow.Exchange(context.Background(), "bogus")
	assert.Error(t, err)
}

func TestOAuthFlow_ExchangeEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	flow := NewOAuthFlow("client-id", "client-secret", "http://localhost:3000/auth/callback")
	flow.TokenURL = server.URL

	_, err := flow.Exchange(context.Background(), "code123")
	assert.Error(t, err)
}
