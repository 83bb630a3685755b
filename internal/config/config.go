// Package config builds the process-wide Config from environment variables
// read once at init, using GoFire's functional-options construction style
// (internal/models/config/config.go in the teacher repo) adapted to the
// specific variables spec.md §6 names.
package config

import (
	"os"
	"strconv"
	"strings"

	"gofire/internal/errs"
)

const (
	DefaultRedisHost = "localhost"
	DefaultRedisPort = "6379"
	DefaultPort      = "3000"
)

// Config is the process-wide, read-once-at-init configuration.
type Config struct {
	PostgresURL         string
	RedisHost           string
	RedisPort           string
	Port                string
	AllowedOrigins      []string
	AllowedTargetHosts  []string
	Production          bool
}

// Option mutates a Config during construction; used by tests to override
// individual fields instead of mutating the environment.
type Option func(*Config) error

// FromEnv builds a Config from the environment, applying any Option
// overrides afterwards (mirroring NewGofireConfig(instance, opts...) in the
// teacher, which applies options over a struct pre-populated with
// defaults).
func FromEnv(opts ...Option) (*Config, error) {
	cfg := &Config{
		PostgresURL:        os.Getenv("POSTGRES_URL"),
		RedisHost:          envOr("REDIS_HOST", DefaultRedisHost),
		RedisPort:          envOr("REDIS_PORT", DefaultRedisPort),
		Port:               envOr("PORT", DefaultPort),
		AllowedOrigins:     splitCSV(envOr("ALLOWED_ORIGINS", "*")),
		AllowedTargetHosts: splitCSV(os.Getenv("ALLOWED_TARGET_HOSTS")),
		Production:         os.Getenv("NODE_ENV") == "production",
	}

	validationErrs := &errs.ValidationErrors{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			validationErrs.Add(err)
		}
	}
	if validationErrs.HasErrors() {
		return nil, validationErrs
	}

	if cfg.PostgresURL == "" {
		return nil, errs.New(errs.KindValidation, "POSTGRES_URL is required")
	}

	return cfg, nil
}

func WithPostgresURL(url string) Option {
	return func(c *Config) error {
		c.PostgresURL = url
		return nil
	}
}

func WithRedisAddr(host, port string) Option {
	return func(c *Config) error {
		c.RedisHost = host
		c.RedisPort = port
		return nil
	}
}

func WithAllowedTargetHosts(hosts ...string) Option {
	return func(c *Config) error {
		c.AllowedTargetHosts = hosts
		return nil
	}
}

// RedisAddr returns the "host:port" address go-redis expects.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// TargetAllowed checks hostname against AllowedTargetHosts. An empty
// allow-list permits every hostname. Entries of the form "*.domain" match
// domain and any subdomain, per spec.md §4.4 step 2.
func (c *Config) TargetAllowed(hostname string) bool {
	if len(c.AllowedTargetHosts) == 0 {
		return true
	}
	hostname = strings.ToLower(hostname)
	for _, entry := range c.AllowedTargetHosts {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "*.") {
			domain := entry[2:]
			if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
				return true
			}
			continue
		}
		if hostname == entry {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParsePort validates that a port string is numeric and returns it as an int.
func ParsePort(port string) (int, error) {
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0, errs.Wrap(errs.KindValidation, "invalid port", err)
	}
	return n, nil
}
