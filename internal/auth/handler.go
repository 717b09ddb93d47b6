package auth

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/oauth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/origin"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/response"
)

// Callback failure messages carried back to the app.
const (
	msgNoCode          = "no_code"
	msgNoRefreshToken  = "no_refresh_token"
	msgExchangeFailed  = "token_exchange_failed"
	msgSessionStoreErr = "session_error"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type statusResponse struct {
	Authenticated  bool   `json:"authenticated"`
	SessionCreated string `json:"sessionCreated,omitempty"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

type Handler struct {
	svc     *Service
	origins *origin.Validator
	resp    *response.Builder
	logger  *zap.SugaredLogger
}

func NewHandler(svc *Service, origins *origin.Validator, resp *response.Builder, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, origins: origins, resp: resp, logger: logger}
}

// Login redirects to the provider consent page.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	o := h.origins.Resolve(r)
	h.resp.Redirect(w, r, h.svc.LoginURL(o))
}

// Callback finishes the authorization round-trip and returns to the app.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	o := h.origins.FromState(q.Get("state"))

	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Infow("provider returned error on callback", "error", providerErr)
		h.resp.Redirect(w, r, response.AuthResult(o, providerErr))
		return
	}

	id, err := h.svc.CompleteLogin(r.Context(), q.Get("code"))
	if err != nil {
		msg := callbackMessage(err)
		if msg == msgExchangeFailed || msg == msgSessionStoreErr {
			h.logger.Errorw("callback failed", "error", err)
		}
		h.resp.Redirect(w, r, response.AuthResult(o, msg))
		return
	}

	h.resp.SetSession(w, id)
	h.resp.Redirect(w, r, response.AuthResult(o, ""))
}

func callbackMessage(err error) string {
	var pe *oauth.ProviderError
	switch {
	case errors.Is(err, ErrNoCode):
		return msgNoCode
	case errors.Is(err, ErrNoRefreshToken):
		return msgNoRefreshToken
	case errors.Is(err, ErrSessionStore):
		return msgSessionStoreErr
	case errors.As(err, &pe) && pe.Code != "":
		return pe.Code
	default:
		return msgExchangeFailed
	}
}

// Token returns a fresh access token for the session cookie.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	tok, err := h.svc.AccessToken(r.Context(), h.resp.SessionID(r))
	switch {
	case err == nil:
		h.resp.JSON(w, r, http.StatusOK, tokenResponse{AccessToken: tok.AccessToken, ExpiresIn: tok.ExpiresIn})
	case errors.Is(err, ErrNoSession):
		h.resp.Error(w, r, http.StatusUnauthorized, response.CodeNoSession, "No session")
	case errors.Is(err, ErrSessionExpired):
		h.resp.Error(w, r, http.StatusUnauthorized, response.CodeSessionExpired, "Session expired")
	case errors.Is(err, ErrRefreshRevoked):
		h.resp.ClearSession(w)
		h.resp.Error(w, r, http.StatusUnauthorized, response.CodeRefreshFailed, "Refresh token revoked")
	case errors.Is(err, ErrRefreshFailed):
		h.logger.Errorw("token refresh failed", "error", err)
		h.resp.Error(w, r, http.StatusInternalServerError, response.CodeRefreshError, refreshErrorMessage(err))
	default:
		h.logger.Errorw("token request failed", "error", err)
		h.resp.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
	}
}

// refreshErrorMessage surfaces the provider's error code when there is one.
func refreshErrorMessage(err error) string {
	var pe *oauth.ProviderError
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	return "Failed to refresh token"
}

// Logout deletes the session and clears the cookie. It always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), h.resp.SessionID(r)); err != nil {
		h.logger.Errorw("failed to delete session on logout", "error", err)
	}
	h.resp.ClearSession(w)
	h.resp.JSON(w, r, http.StatusOK, logoutResponse{Success: true})
}

// Status reports whether the cookie maps to a live session.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Status(r.Context(), h.resp.SessionID(r))
	if err != nil {
		h.logger.Errorw("status lookup failed", "error", err)
		h.resp.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
		return
	}
	if sess == nil {
		h.resp.JSON(w, r, http.StatusOK, statusResponse{Authenticated: false})
		return
	}
	h.resp.JSON(w, r, http.StatusOK, statusResponse{
		Authenticated:  true,
		SessionCreated: sess.CreatedAt.UTC().Format(time.RFC3339),
	})
}
