// Package response writes every outgoing answer of the broker: CORS grants,
// the session cookie, JSON bodies and redirects.
package response

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/origin"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeNoSession      = "NO_SESSION"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeRefreshFailed  = "REFRESH_FAILED"
	CodeRefreshError   = "REFRESH_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeRateLimited    = "RATE_LIMITED"
)

type CookieConfig struct {
	Name   string
	MaxAge time.Duration
}

type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type Builder struct {
	Origins *origin.Validator
	Cookie  CookieConfig
}

func NewBuilder(origins *origin.Validator, cookie CookieConfig) *Builder {
	if cookie.Name == "" {
		cookie.Name = "session"
	}
	return &Builder{Origins: origins, Cookie: cookie}
}

// CORS grants credentialed access to the resolved origin only.
func (b *Builder) CORS(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", b.Origins.ResolveCORS(r))
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Add("Vary", "Origin")
}

// SessionID returns the session cookie value, or "" when absent.
func (b *Builder) SessionID(r *http.Request) string {
	c, err := r.Cookie(b.Cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (b *Builder) SetSession(w http.ResponseWriter, id string) {
	http.SetCookie(w, b.cookie(id, int(b.Cookie.MaxAge/time.Second)))
}

// ClearSession overwrites the cookie with an empty, immediately expiring one.
func (b *Builder) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, b.cookie("", -1))
}

func (b *Builder) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     b.Cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func (b *Builder) JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b.CORS(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Builder) Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	b.JSON(w, r, status, ErrorBody{Error: message, Code: code})
}

// NoContent answers a preflight.
func (b *Builder) NoContent(w http.ResponseWriter, r *http.Request) {
	b.CORS(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Builder) Redirect(w http.ResponseWriter, r *http.Request, target string) {
	b.CORS(w, r)
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusFound)
}

// AuthResult builds the SPA return URL: base?auth=success, or
// base?auth=error&message=<message> when message is non-empty.
func AuthResult(base, message string) string {
	q := url.Values{}
	if message == "" {
		q.Set("auth", "success")
	} else {
		q.Set("auth", "error")
		q.Set("message", message)
	}
	return base + "?" + q.Encode()
}
