package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/response"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

type Deps struct {
	Logger  *zap.SugaredLogger
	Auth    *auth.Handler
	Resp    *response.Builder
	IDs     *utilities.RequestIDs
	Proxies *TrustedProxies
	Limiter *RateLimiter
}

// RegisterRoutes mounts the auth endpoints. Anything else, including a wrong
// method on a known path, is a JSON 404.
func RegisterRoutes(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware(d.IDs))
	r.Use(LoggingMiddleware(d.Logger, d.Proxies))
	r.Use(RecoverMiddleware(d.Logger, d.Resp))
	r.Use(SecurityHeadersMiddleware())
	r.Use(PreflightMiddleware(d.Resp))

	notFound := func(w http.ResponseWriter, r *http.Request) {
		d.Resp.Error(w, r, http.StatusNotFound, response.CodeNotFound, "Not found")
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.NotFound(notFound)
		r.MethodNotAllowed(notFound)
		limited := r.With(d.Limiter.Middleware(d.Resp))
		limited.Get("/login", d.Auth.Login)
		limited.Get("/callback", d.Auth.Callback)
		limited.Get("/token", d.Auth.Token)
		r.Post("/logout", d.Auth.Logout)
		r.Get("/status", d.Auth.Status)
	})

	return r
}
