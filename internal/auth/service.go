// Package auth implements the session lifecycle: login redirect, callback,
// access token issuance, status and logout.
package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/oauth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session/entity"
)

var (
	ErrNoCode         = errors.New("no authorization code")
	ErrNoRefreshToken = errors.New("provider returned no refresh token")
	ErrNoSession      = errors.New("no session cookie")
	ErrSessionExpired = errors.New("session expired")
	ErrRefreshRevoked = errors.New("refresh token revoked")
	ErrRefreshFailed  = errors.New("refresh failed")
	ErrSessionStore   = errors.New("session store failure")
)

// TokenExchanger is the upstream provider.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth.Token, error)
}

// Sessions is the session id to record mapping.
type Sessions interface {
	Create(ctx context.Context, refreshToken string) (string, *entity.Session, error)
	Lookup(ctx context.Context, id string) (*entity.Session, error)
	Revoke(ctx context.Context, id string) error
}

type Service struct {
	provider TokenExchanger
	sessions Sessions
	logger   *zap.SugaredLogger
}

func NewService(provider TokenExchanger, sessions Sessions, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{provider: provider, sessions: sessions, logger: logger}
}

// LoginURL returns the provider consent URL carrying origin as state.
func (s *Service) LoginURL(origin string) string {
	return s.provider.AuthCodeURL(origin)
}

// CompleteLogin exchanges code and opens a session. It returns the new
// session id. No session is written unless a refresh token was issued.
func (s *Service) CompleteLogin(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrNoCode
	}
	tok, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", err
	}
	if tok.RefreshToken == "" {
		s.logger.Warnw("code exchange returned no refresh token")
		return "", ErrNoRefreshToken
	}
	id, _, err := s.sessions.Create(ctx, tok.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSessionStore, err)
	}
	return id, nil
}

// AccessToken mints a fresh access token from the session's refresh token.
// A revoked refresh token deletes the session.
func (s *Service) AccessToken(ctx context.Context, id string) (*oauth.Token, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	sess, err := s.sessions.Lookup(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionStore, err)
	}

	tok, err := s.provider.Refresh(ctx, sess.RefreshToken)
	if err == nil {
		return tok, nil
	}
	if oauth.IsInvalidGrant(err) {
		if derr := s.sessions.Revoke(ctx, id); derr != nil {
			s.logger.Errorw("failed to delete revoked session", "error", derr)
		}
		s.logger.Infow("refresh token revoked, session deleted")
		return nil, ErrRefreshRevoked
	}
	return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
}

// Status reports the session record without contacting the provider.
// A nil session with a nil error means not authenticated.
func (s *Service) Status(ctx context.Context, id string) (*entity.Session, error) {
	if id == "" {
		return nil, nil
	}
	sess, err := s.sessions.Lookup(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionStore, err)
	}
	return sess, nil
}

// Logout deletes the session. Unknown ids succeed.
func (s *Service) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, id)
}
