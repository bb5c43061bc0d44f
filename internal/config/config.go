// Package config centraliza o carregamento de configurações do gateway.
//
// Ordem de precedência: padrões < arquivo YAML (CONFIG_FILE) < variáveis de
// ambiente (inclusive as vindas de um .env carregado com godotenv).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"anires-gateway/middleware/security/domain"
)

var ErrInvalid = errors.New("invalid configuration")

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StatsConfig struct {
	// Enabled liga o espelhamento das estatísticas no Redis. As estatísticas
	// em memória (control plane) estão sempre ligadas.
	Enabled   bool
	Prefix    string
	TTL       time.Duration
	Bucket    string
	TrackKeys bool
}

type Config struct {
	ListenAddr  string
	AdminAddr   string
	UpstreamURL string
	// TLSCertFile e TLSKeyFile ligam ListenAndServeTLS; vazios, o gateway
	// atende HTTP puro e depende de um terminador TLS na frente.
	TLSCertFile string
	TLSKeyFile  string

	Mode                domain.Mode
	RedirectHTTPS       bool
	TrustXFF            bool
	TrustForwardedProto bool

	RateLimit           int
	RateWindow          time.Duration
	RetryAfter          time.Duration
	RateStore           string
	RateEvictEvery      time.Duration
	RateRedisPrefix     string
	AddRateLimitHeaders bool
	Redis               RedisConfig
	Stats               StatsConfig

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	AllowedOrigins        []string
	SuspiciousIPs         []string
	TrustedDomains        []string
	ContentSecurityPolicy string

	LogLevel     string
	LogFormat    string
	LogWarnRPS   float64
	LogWarnBurst int
}

// fileConfig é o formato do arquivo apontado por CONFIG_FILE.
type fileConfig struct {
	AllowedOrigins        []string `yaml:"allowed_origins"`
	SuspiciousIPs         []string `yaml:"suspicious_ips"`
	TrustedDomains        []string `yaml:"trusted_domains"`
	ContentSecurityPolicy string   `yaml:"content_security_policy"`
}

func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		Mode:          domain.ModeProduction,
		RedirectHTTPS: true,
		// o gateway roda atrás de um terminador TLS (CDN/ingress)
		TrustForwardedProto: true,
		RateLimit:           60,
		RateWindow:          60 * time.Second,
		RetryAfter:          60 * time.Second,
		RateStore:           "memory",
		RateRedisPrefix:     "ratelimit:window",
		Redis:               RedisConfig{Addr: "localhost:6379"},
		Stats: StatsConfig{
			Prefix: "edge:stats",
			TTL:    24 * time.Hour,
			Bucket: "minute",
		},
		AllowedOrigins: append([]string(nil), domain.DefaultAllowedOrigins...),
		TrustedDomains: append([]string(nil), domain.DefaultTrustedDomains...),
		LogLevel:       "info",
		LogFormat:      "json",
		LogWarnRPS:     10,
		LogWarnBurst:   20,
	}
}

// Load lê .env (se existir), o YAML opcional e as variáveis de ambiente.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	env := envReader{}
	cfg.ListenAddr = env.str("LISTEN_ADDR", cfg.ListenAddr)
	cfg.AdminAddr = env.str("ADMIN_ADDR", cfg.AdminAddr)
	cfg.UpstreamURL = env.str("UPSTREAM_URL", cfg.UpstreamURL)
	cfg.TLSCertFile = env.str("TLS_CERT", cfg.TLSCertFile)
	cfg.TLSKeyFile = env.str("TLS_KEY", cfg.TLSKeyFile)

	cfg.Mode = domain.ParseMode(env.str("APP_ENV", env.str("NODE_ENV", string(cfg.Mode))))
	cfg.RedirectHTTPS = env.bool("REDIRECT_HTTPS", cfg.RedirectHTTPS)
	cfg.TrustXFF = env.bool("TRUST_XFF", cfg.TrustXFF)
	cfg.TrustForwardedProto = env.bool("TRUST_FORWARDED_PROTO", cfg.TrustForwardedProto)

	cfg.RateLimit = env.int("RATE_LIMIT", cfg.RateLimit)
	cfg.RateWindow = env.duration("RATE_WINDOW", cfg.RateWindow)
	cfg.RetryAfter = env.duration("RETRY_AFTER", cfg.RetryAfter)
	cfg.RateStore = strings.ToLower(env.str("RATE_STORE", cfg.RateStore))
	cfg.RateEvictEvery = env.duration("RATE_EVICT_EVERY", cfg.RateEvictEvery)
	cfg.RateRedisPrefix = env.str("RATE_REDIS_PREFIX", cfg.RateRedisPrefix)
	cfg.AddRateLimitHeaders = env.bool("ADD_RATELIMIT_HEADERS", cfg.AddRateLimitHeaders)

	cfg.Redis.Addr = env.str("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = env.str("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = env.int("REDIS_DB", cfg.Redis.DB)

	cfg.Stats.Enabled = env.bool("RATE_STATS_ENABLED", cfg.Stats.Enabled)
	cfg.Stats.Prefix = env.str("RATE_STATS_PREFIX", cfg.Stats.Prefix)
	cfg.Stats.TTL = env.duration("RATE_STATS_TTL", cfg.Stats.TTL)
	cfg.Stats.Bucket = env.str("RATE_STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackKeys = env.bool("RATE_STATS_TRACK_KEYS", cfg.Stats.TrackKeys)

	cfg.ConcurrencyMax = env.int("CONCURRENCY_MAX", cfg.ConcurrencyMax)
	cfg.ConcurrencyTimeout = env.duration("CONCURRENCY_TIMEOUT", cfg.ConcurrencyTimeout)

	cfg.AllowedOrigins = env.list("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.SuspiciousIPs = env.list("SUSPICIOUS_IPS", cfg.SuspiciousIPs)
	cfg.TrustedDomains = env.list("TRUSTED_DOMAINS", cfg.TrustedDomains)
	cfg.ContentSecurityPolicy = env.str("CONTENT_SECURITY_POLICY", cfg.ContentSecurityPolicy)

	cfg.LogLevel = env.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = env.str("LOG_FORMAT", cfg.LogFormat)
	cfg.LogWarnRPS = env.float("LOG_WARN_RPS", cfg.LogWarnRPS)
	cfg.LogWarnBurst = env.int("LOG_WARN_BURST", cfg.LogWarnBurst)

	if env.err != nil {
		return Config{}, env.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.AllowedOrigins != nil {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.SuspiciousIPs != nil {
		c.SuspiciousIPs = fc.SuspiciousIPs
	}
	if fc.TrustedDomains != nil {
		c.TrustedDomains = fc.TrustedDomains
	}
	if fc.ContentSecurityPolicy != "" {
		c.ContentSecurityPolicy = fc.ContentSecurityPolicy
	}
	return nil
}

func (c Config) Validate() error {
	if c.RateLimit <= 0 {
		return fmt.Errorf("%w: RATE_LIMIT must be > 0", ErrInvalid)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("%w: RATE_WINDOW must be > 0", ErrInvalid)
	}
	if c.RetryAfter <= 0 {
		return fmt.Errorf("%w: RETRY_AFTER must be > 0", ErrInvalid)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("%w: TLS_CERT and TLS_KEY must be set together", ErrInvalid)
	}
	// sem TLS próprio e sem confiar em X-Forwarded-Proto toda requisição
	// parece http e o redirecionamento vira loop
	if c.RedirectHTTPS && !c.TrustForwardedProto && !c.TLSEnabled() {
		return fmt.Errorf("%w: REDIRECT_HTTPS needs TRUST_FORWARDED_PROTO or TLS_CERT/TLS_KEY", ErrInvalid)
	}
	switch c.RateStore {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("%w: REDIS_ADDR is required when RATE_STORE=redis", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported RATE_STORE %q", ErrInvalid, c.RateStore)
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("%w: REDIS_ADDR is required when RATE_STATS_ENABLED=true", ErrInvalid)
	}
	if c.ConcurrencyMax < 0 {
		return fmt.Errorf("%w: CONCURRENCY_MAX must be >= 0", ErrInvalid)
	}
	return nil
}

func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// NeedsRedis informa se algum componente usa Redis.
func (c Config) NeedsRedis() bool {
	return c.RateStore == "redis" || c.Stats.Enabled
}
