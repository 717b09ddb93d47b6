package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	srv   *httptest.Server
	calls atomic.Int32
	last  atomic.Value // url.Values
}

func newFakeProvider(t *testing.T, handle func(w http.ResponseWriter, form url.Values)) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		require.NoError(t, r.ParseForm())
		p.last.Store(r.PostForm)
		handle(w, r.PostForm)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) client() *Client {
	return NewClient(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8431/auth/callback",
		Scopes:       []string{"openid", "email"},
		AuthURL:      p.srv.URL + "/auth",
		TokenURL:     p.srv.URL + "/token",
		Timeout:      2 * time.Second,
	}, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func signedIDToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1234", "email": "a@example.com"})
	s, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestAuthCodeURL(t *testing.T) {
	p := newFakeProvider(t, func(http.ResponseWriter, url.Values) {})
	raw := p.client().AuthCodeURL("https://app.example.com")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/auth", u.Path)
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "openid email", q.Get("scope"))
	assert.Equal(t, "http://localhost:8431/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "https://app.example.com", q.Get("state"))
}

func TestExchangeCode_Success(t *testing.T) {
	idTok := signedIDToken(t)
	p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "at-1",
			"token_type":    "Bearer",
			"expires_in":    3599,
			"refresh_token": "rt-1",
			"id_token":      idTok,
		})
	})

	tok, err := p.client().ExchangeCode(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Equal(t, "rt-1", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, idTok, tok.IDToken)
	assert.InDelta(t, 3599, tok.ExpiresIn, 1)

	form := p.last.Load().(url.Values)
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "code-1", form.Get("code"))
	assert.Equal(t, "cid", form.Get("client_id"))
	assert.Equal(t, "secret", form.Get("client_secret"))
}

func TestExchangeCode_ProviderError(t *testing.T) {
	p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Bad Request",
		})
	})

	_, err := p.client().ExchangeCode(context.Background(), "used-code")
	require.Error(t, err)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "invalid_grant", pe.Code)
	assert.Equal(t, "Bad Request", pe.Description)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.True(t, IsInvalidGrant(err))
}

func TestRefresh_Success(t *testing.T) {
	p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "at-2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	tok, err := p.client().Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", tok.AccessToken)
	assert.InDelta(t, 3600, tok.ExpiresIn, 1)
	assert.Equal(t, "rt-1", tok.RefreshToken)

	form := p.last.Load().(url.Values)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "rt-1", form.Get("refresh_token"))
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestRefresh_InvalidGrant(t *testing.T) {
	p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
	})

	_, err := p.client().Refresh(context.Background(), "revoked")
	assert.True(t, IsInvalidGrant(err))
}

func TestRefresh_ServerError(t *testing.T) {
	p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "temporarily_unavailable"})
	})

	_, err := p.client().Refresh(context.Background(), "rt")
	require.Error(t, err)
	assert.False(t, IsInvalidGrant(err))
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
}

func TestRefresh_TransportError(t *testing.T) {
	p := newFakeProvider(t, func(http.ResponseWriter, url.Values) {})
	c := p.client()
	p.srv.Close()

	_, err := c.Refresh(context.Background(), "rt")
	require.Error(t, err)
	var pe *ProviderError
	assert.False(t, IsInvalidGrant(err))
	assert.NotErrorAs(t, err, &pe)
}

func TestIdentityClaims(t *testing.T) {
	sub, email := identityClaims(signedIDToken(t))
	assert.Equal(t, "1234", sub)
	assert.Equal(t, "a@example.com", email)

	sub, email = identityClaims("not-a-jwt")
	assert.Empty(t, sub)
	assert.Empty(t, email)
}
