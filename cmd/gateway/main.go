package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"anires-gateway/internal/config"
	"anires-gateway/internal/controlplane"
	"anires-gateway/internal/observability"
	"anires-gateway/internal/securityapi"
	"anires-gateway/middleware/edge"
	"anires-gateway/middleware/ratelimit"
	"anires-gateway/middleware/ratelimit/domain"
	"anires-gateway/middleware/ratelimit/infra"
	"anires-gateway/middleware/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	warn := observability.NewWarnSampler(cfg.LogWarnRPS, cfg.LogWarnBurst)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancelPing()
		if err != nil {
			logger.Fatal("redis ping error", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	var (
		store   domain.WindowStore
		windows func() int
	)
	switch cfg.RateStore {
	case "redis":
		store = infra.NewRedisWindowStore(rdb, infra.WithWindowPrefix(cfg.RateRedisPrefix))
	default:
		mem := infra.NewMemoryWindowStore(infra.WithEvictEvery(cfg.RateEvictEvery))
		mem.StartJanitor(ctx)
		store, windows = mem, mem.Len
	}

	memStats := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))
	var redisStats domain.StatsStore
	if cfg.Stats.Enabled {
		redisStats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		)
	}
	stats := infra.NewTeeStatsStore(memStats, redisStats)

	keyFn := ratelimit.DefaultKeyFunc(cfg.TrustXFF)
	api := &securityapi.Handler{
		TrustedDomains:      cfg.TrustedDomains,
		TrustForwardedProto: cfg.TrustForwardedProto,
		ClientIP:            func(r *http.Request) string { return string(keyFn(r)) },
		Logger:              logger,
	}

	r := chi.NewRouter()
	r.Mount("/api/security", api.Routes())
	r.NotFound(upstream(cfg.UpstreamURL, logger))

	var slots domain.SlotPool
	if cfg.ConcurrencyMax > 0 {
		slots = infra.NewChanPool(cfg.ConcurrencyMax)
	}

	h := http.Handler(r)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Pool:           slots,
		AcquireTimeout: cfg.ConcurrencyTimeout,
		RetryAfter:     time.Second,
		Stats:          stats,
		KeyFn:          keyFn,
		Logger:         logger,
		Warn:           warn,
	})(h)
	h = edge.Middleware(edge.Options{
		Mode:                cfg.Mode,
		AllowedOrigins:      cfg.AllowedOrigins,
		SuspiciousIPs:       cfg.SuspiciousIPs,
		Headers:             security.DefaultHeaders().WithCSP(cfg.ContentSecurityPolicy),
		RedirectHTTPS:       cfg.RedirectHTTPS,
		TrustForwardedProto: cfg.TrustForwardedProto,
		TrustXForwardedFor:  cfg.TrustXFF,
		Store:               store,
		Limit:               cfg.RateLimit,
		Window:              cfg.RateWindow,
		RetryAfter:          cfg.RetryAfter,
		AddRateLimitHeaders: cfg.AddRateLimitHeaders,
		Stats:               stats,
		Logger:              logger,
		Warn:                warn,
	})(h)

	srv := newServer(cfg.ListenAddr, h)

	var admin *http.Server
	if cfg.AdminAddr != "" {
		deps := controlplane.Deps{Stats: memStats, Windows: windows, Warn: warn, Slots: slots, Logger: logger}
		if rdb != nil {
			deps.Ready = controlplane.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		}
		admin = newServer(cfg.AdminAddr, controlplane.Router(deps))
		go func() {
			logger.Info("admin listening", zap.String("addr", cfg.AdminAddr))
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server error", zap.Error(err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if admin != nil {
			_ = admin.Shutdown(shutdownCtx)
		}
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("upstream", cfg.UpstreamURL),
		zap.String("mode", string(cfg.Mode)),
		zap.Bool("tls", cfg.TLSEnabled()),
		zap.Bool("trustForwardedProto", cfg.TrustForwardedProto),
	)
	logger.Info("rate",
		zap.String("store", cfg.RateStore),
		zap.Int("limit", cfg.RateLimit),
		zap.Duration("window", cfg.RateWindow),
		zap.Duration("retryAfter", cfg.RetryAfter),
		zap.Bool("trustXFF", cfg.TrustXFF),
	)
	logger.Info("rate-stats",
		zap.Bool("redis", cfg.Stats.Enabled),
		zap.String("bucket", cfg.Stats.Bucket),
		zap.Duration("ttl", cfg.Stats.TTL),
		zap.Bool("trackKeys", cfg.Stats.TrackKeys),
	)
	logger.Info("concurrency", zap.Int("max", cfg.ConcurrencyMax), zap.Duration("acquireTimeout", cfg.ConcurrencyTimeout))

	if err := listen(srv, cfg); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// listen usa TLS próprio quando há certificado; sem ele o esquema vem do
// X-Forwarded-Proto do terminador na frente.
func listen(srv *http.Server, cfg config.Config) error {
	if cfg.TLSEnabled() {
		return srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	}
	return srv.ListenAndServe()
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}

// upstream repassa para o app quando UPSTREAM_URL está definido; sem ele o
// gateway só responde as próprias rotas.
func upstream(rawURL string, logger *zap.Logger) http.HandlerFunc {
	if rawURL == "" {
		return http.NotFound
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		logger.Fatal("invalid UPSTREAM_URL", zap.Error(err))
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy.ServeHTTP
}
