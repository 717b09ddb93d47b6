package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/oauth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/origin"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/response"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// purger is implemented by stores that need expired rows removed.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func main() {
	// best-effort: a missing .env leaves the real environment in charge
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	sugar.Infow("starting service-auth-go", "addr", cfg.HTTPAddr, "store", cfg.SessionStore, "origins", cfg.AllowedOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalf("session store: %v", err)
	}
	defer closeStore()

	if p, ok := store.(purger); ok {
		go sweep(ctx, p, cfg.SweepInterval, sugar)
	}

	origins, err := origin.New(cfg.AllowedOrigins)
	if err != nil {
		sugar.Fatalf("origins: %v", err)
	}
	proxies, err := router.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		sugar.Fatalf("trusted proxies: %v", err)
	}
	resp := response.NewBuilder(origins, response.CookieConfig{Name: cfg.CookieName, MaxAge: cfg.SessionTTL})
	provider := oauth.NewClient(oauth.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		Timeout:      cfg.OAuthHTTPTimeout,
	}, sugar.Named("oauth"))
	sessions := session.NewService(store, cfg.SessionTTL, nil)
	authSvc := auth.NewService(provider, sessions, sugar.Named("auth"))

	handler := router.RegisterRoutes(router.Deps{
		Logger:  sugar.Named("http"),
		Auth:    auth.NewHandler(authSvc, origins, resp, sugar.Named("auth")),
		Resp:    resp,
		IDs:     utilities.RequestIDsFromEnv(),
		Proxies: proxies,
		Limiter: router.NewRateLimiter(cfg.RateLimitPerMin, proxies),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}

// openStore builds the configured session store and returns its closer.
func openStore(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		s := repo.NewRedisStore(client, cfg.KeyPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return s, func() { _ = client.Close() }, nil

	case config.StorePostgres:
		sqlDB, err := database.Connect(database.ConfigFromEnv(cfg.DatabaseURL))
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := database.Migrate(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
		db := sqlx.NewDb(sqlDB, "postgres")
		return repo.NewPostgresStore(db, nil), func() { _ = db.Close() }, nil

	case config.StoreMemory:
		sugar.Warn("using in-memory session store; sessions are lost on restart")
		return repo.NewMemoryStore(nil), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
}

// sweep purges expired sessions until ctx is done.
func sweep(ctx context.Context, p purger, every time.Duration, sugar *zap.SugaredLogger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				sugar.Warnw("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				sugar.Debugw("expired sessions purged", "count", n)
			}
		}
	}
}
