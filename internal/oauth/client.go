package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultTimeout = 10 * time.Second

// Config carries the OAuth client registration and provider endpoints.
// Empty AuthURL/TokenURL select Google's endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	Timeout      time.Duration
}

// Token is the subset of a token endpoint response the broker uses.
type Token struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	IDToken      string
}

// ProviderError is an error response from the token endpoint.
type ProviderError struct {
	Code        string
	Description string
	StatusCode  int
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth provider error %s (%d): %s", e.Code, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("oauth provider error %s (%d)", e.Code, e.StatusCode)
}

// IsInvalidGrant reports whether err means the refresh token or code was
// permanently rejected.
func IsInvalidGrant(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == "invalid_grant"
}

// Client talks to the provider's authorization and token endpoints.
type Client struct {
	cfg    *oauth2.Config
	http   *http.Client
	logger *zap.SugaredLogger
}

func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// AuthCodeURL builds the consent URL. state is echoed back on the callback.
func (c *Client) AuthCodeURL(state string) string {
	return c.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode redeems an authorization code.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	t, err := c.cfg.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, c.convertErr("exchange code", err)
	}
	tok := fromOAuth2(t)
	if tok.IDToken != "" {
		sub, email := identityClaims(tok.IDToken)
		c.logger.Infow("code exchanged", "sub", sub, "email", email, "has_refresh_token", tok.RefreshToken != "")
	}
	return tok, nil
}

// Refresh obtains a fresh access token. Providers normally omit the
// refresh token here, in which case the input one is returned unchanged.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	src := c.cfg.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	t, err := src.Token()
	if err != nil {
		return nil, c.convertErr("refresh token", err)
	}
	return fromOAuth2(t), nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

func (c *Client) convertErr(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		pe := &ProviderError{Code: re.ErrorCode, Description: re.ErrorDescription}
		if re.Response != nil {
			pe.StatusCode = re.Response.StatusCode
		}
		c.logger.Warnw("token endpoint rejected request", "op", op, "code", pe.Code, "status", pe.StatusCode)
		return pe
	}
	return fmt.Errorf("%s: %w", op, err)
}

func fromOAuth2(t *oauth2.Token) *Token {
	tok := &Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.Type(),
		RefreshToken: t.RefreshToken,
	}
	if !t.Expiry.IsZero() {
		tok.ExpiresIn = int64(time.Until(t.Expiry).Round(time.Second) / time.Second)
	}
	if id, ok := t.Extra("id_token").(string); ok {
		tok.IDToken = id
	}
	return tok
}

// identityClaims reads sub and email for audit logs. The token came directly
// from the token endpoint so its signature is not checked here.
func identityClaims(idToken string) (sub, email string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", ""
	}
	sub, _ = claims["sub"].(string)
	email, _ = claims["email"].(string)
	return sub, email
}
