// Package app wires the vidra runtime: config, logging, storage, media,
// the auth HTTP surface and graceful shutdown.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"vidra/cmd/account"
	authapi "vidra/cmd/internal/auth/api"
	"vidra/cmd/internal/auth/session"
	"vidra/cmd/internal/media"
	"vidra/cmd/security/password"
)

// App is the vidra server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool
	rdb       *redis.Client

	registry *prometheus.Registry
	httpMet  *HTTPMetrics

	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, pool, dbEnabled, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	host, err := newMediaHost(ctx, cfg, log)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	sessCfg := session.Config{
		Issuer:         "vidra",
		AccessSecret:   []byte(cfg.Session.AccessSecret),
		RefreshSecret:  []byte(cfg.Session.RefreshSecret),
		RefreshHashKey: []byte(cfg.Session.RefreshHashKey),
		AccessTTL:      cfg.Session.AccessTTL,
		RefreshTTL:     cfg.Session.RefreshTTL,
	}
	sessions := session.NewService(sessCfg, store, host, password.DefaultConfig(), log)

	var rdb *redis.Client
	var limiter *authapi.LoginLimiter
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = authapi.NewLoginLimiter(rdb)
		log.Info("redis.enabled.login_throttle", "addr", cfg.Redis.Addr)
	} else {
		log.Info("redis.disabled.login_throttle_off")
	}

	apiCfg := authapi.Config{
		TrustProxy:     cfg.Auth.TrustProxy,
		MaxBodyBytes:   cfg.Auth.MaxBodyBytes,
		MaxUploadBytes: cfg.Auth.MaxUploadBytes,
		UploadDir:      cfg.Auth.UploadDir,
		CookieSecure:   cfg.Auth.CookieSecure,
		CookieDomain:   cfg.Auth.CookieDomain,
		LoginIPMax:     cfg.Auth.LoginIPMax,
		LoginIPWindow:  cfg.Auth.LoginIPWindow,
		LoginIDMax:     cfg.Auth.LoginIDMax,
		LoginIDWindow:  cfg.Auth.LoginIDWindow,
	}
	auth, err := authapi.NewHandler(log, apiCfg, sessions,
		authapi.WithLoginLimiter(limiter),
		authapi.WithMetrics(authapi.NewMetrics(registry)),
	)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    pool,
		dbEnabled: dbEnabled,
		rdb:       rdb,
		registry:  registry,
		httpMet:   NewHTTPMetrics(registry),
		auth:      auth,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.dbPool, a.dbEnabled, a.registry, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log, a.httpMet),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "env", a.cfg.Env, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

// newStore decides between Postgres-backed persistence and the in-memory
// dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (account.Store, *pgxpool.Pool, bool, error) {
	if cfg.DB.URL == "" {
		log.Info("db.disabled.inmemory_store")
		return account.NewMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg.DB)
	if err != nil {
		return nil, nil, false, err
	}

	store, err := account.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return store, pool, true, nil
}

// newMediaHost builds the S3 media host, or nil when media is not
// configured (uploads then fail with an upstream error).
func newMediaHost(ctx context.Context, cfg Config, log Logger) (media.Host, error) {
	if cfg.Media.Endpoint == "" || cfg.Media.Bucket == "" {
		log.Warn("media.disabled.uploads_unavailable")
		return nil, nil
	}

	host, err := media.NewS3Host(ctx, media.Config{
		Endpoint:  cfg.Media.Endpoint,
		Region:    cfg.Media.Region,
		Bucket:    cfg.Media.Bucket,
		AccessKey: cfg.Media.AccessKey,
		SecretKey: cfg.Media.SecretKey,
	}, log)
	if err != nil {
		return nil, err
	}

	log.Info("media.enabled.s3_host", "bucket", cfg.Media.Bucket)
	return host, nil
}
