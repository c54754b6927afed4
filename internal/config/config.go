// Package config resolves the run configuration shared by the gatewaysync
// commands: defaults, then a TOML file, then command-line overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/normalize"
	"github.com/danmuck/gatewaysync/internal/reconcile"
	"github.com/rs/zerolog"
)

const DefaultAdminURL = "http://localhost:8001"

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	AdminURL       string
	AdminToken     string
	AdminTLS       admin.TLSConfig
	RequestTimeout time.Duration
	MaxAttempts    int
	Backoff        admin.BackoffConfig
	Limits         reconcile.Limits
	Policy         normalize.Policy
	MetricsAddr    string
	PushgatewayURL string
	SkipFixup      bool
}

func DefaultConfig() Config {
	return Config{
		AdminURL:       DefaultAdminURL,
		RequestTimeout: admin.DefaultRequestTimeout,
		MaxAttempts:    admin.DefaultMaxAttempts,
		Backoff:        admin.DefaultBackoff(),
		Limits:         reconcile.DefaultLimits(),
		Policy:         normalize.DefaultPolicy(),
	}
}

type fileConfig struct {
	AdminURL              string  `toml:"admin_url"`
	AdminToken            string  `toml:"admin_token"`
	AdminCAFile           string  `toml:"admin_ca_file"`
	AdminCertFile         string  `toml:"admin_cert_file"`
	AdminKeyFile          string  `toml:"admin_key_file"`
	AdminTLSSkipVerify    bool    `toml:"admin_tls_skip_verify"`
	RequestTimeout        string  `toml:"request_timeout"`
	MaxAttempts           int     `toml:"max_attempts"`
	BackoffInitial        string  `toml:"backoff_initial"`
	BackoffMultiplier     float64 `toml:"backoff_multiplier"`
	BackoffMax            string  `toml:"backoff_max"`
	ServicesPageSize      int     `toml:"services_page_size"`
	RoutesPageSize        int     `toml:"routes_page_size"`
	PluginsPageSize       int     `toml:"plugins_page_size"`
	CredentialsPageSize   int     `toml:"credentials_page_size"`
	ACLsPageSize          int     `toml:"acls_page_size"`
	GlobalPluginsPageSize int     `toml:"global_plugins_page_size"`
	AnonymousConsumer     string  `toml:"anonymous_consumer"`
	AnonymousGroup        string  `toml:"anonymous_group"`
	MetricsAddr           string  `toml:"metrics_addr"`
	PushgatewayURL        string  `toml:"pushgateway_url"`
	SkipFixup             bool    `toml:"skip_fixup"`
}

// Load applies the keys present in the TOML file at path over DefaultConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load gatewaysync config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("admin_url") {
		cfg.AdminURL = strings.TrimSpace(raw.AdminURL)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("admin_ca_file") {
		cfg.AdminTLS.CAFile = strings.TrimSpace(raw.AdminCAFile)
	}
	if meta.IsDefined("admin_cert_file") {
		cfg.AdminTLS.CertFile = strings.TrimSpace(raw.AdminCertFile)
	}
	if meta.IsDefined("admin_key_file") {
		cfg.AdminTLS.KeyFile = strings.TrimSpace(raw.AdminKeyFile)
	}
	if meta.IsDefined("admin_tls_skip_verify") {
		cfg.AdminTLS.InsecureSkipVerify = raw.AdminTLSSkipVerify
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"request_timeout", raw.RequestTimeout, &cfg.RequestTimeout},
		{"backoff_initial", raw.BackoffInitial, &cfg.Backoff.InitialDelay},
		{"backoff_max", raw.BackoffMax, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	if meta.IsDefined("max_attempts") {
		cfg.MaxAttempts = raw.MaxAttempts
	}
	if meta.IsDefined("backoff_multiplier") {
		cfg.Backoff.Multiplier = raw.BackoffMultiplier
	}

	ceilings := []struct {
		key string
		val int
		dst *int
	}{
		{"services_page_size", raw.ServicesPageSize, &cfg.Limits.Services},
		{"routes_page_size", raw.RoutesPageSize, &cfg.Limits.Routes},
		{"plugins_page_size", raw.PluginsPageSize, &cfg.Limits.Plugins},
		{"credentials_page_size", raw.CredentialsPageSize, &cfg.Limits.Credentials},
		{"acls_page_size", raw.ACLsPageSize, &cfg.Limits.ACLs},
		{"global_plugins_page_size", raw.GlobalPluginsPageSize, &cfg.Limits.GlobalPlugins},
	}
	for _, c := range ceilings {
		if meta.IsDefined(c.key) {
			*c.dst = c.val
		}
	}

	if meta.IsDefined("anonymous_consumer") {
		cfg.Policy.AnonymousConsumer = strings.TrimSpace(raw.AnonymousConsumer)
	}
	if meta.IsDefined("anonymous_group") {
		cfg.Policy.AnonymousGroup = strings.TrimSpace(raw.AnonymousGroup)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("pushgateway_url") {
		cfg.PushgatewayURL = strings.TrimSpace(raw.PushgatewayURL)
	}
	if meta.IsDefined("skip_fixup") {
		cfg.SkipFixup = raw.SkipFixup
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AdminURL) == "" {
		return fmt.Errorf("%w: admin_url is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.AdminURL, "http://") && !strings.HasPrefix(c.AdminURL, "https://") {
		return fmt.Errorf("%w: admin_url must be http(s): %q", ErrInvalidConfig, c.AdminURL)
	}
	if (c.AdminTLS.CertFile == "") != (c.AdminTLS.KeyFile == "") {
		return fmt.Errorf("%w: admin_cert_file and admin_key_file must be set together", ErrInvalidConfig)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	}
	if c.Backoff.InitialDelay < 0 || c.Backoff.MaxDelay < 0 || c.Backoff.Multiplier < 0 {
		return fmt.Errorf("%w: backoff values must not be negative", ErrInvalidConfig)
	}
	for name, v := range map[string]int{
		"services_page_size":       c.Limits.Services,
		"routes_page_size":         c.Limits.Routes,
		"plugins_page_size":        c.Limits.Plugins,
		"credentials_page_size":    c.Limits.Credentials,
		"acls_page_size":           c.Limits.ACLs,
		"global_plugins_page_size": c.Limits.GlobalPlugins,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	if strings.TrimSpace(c.Policy.AnonymousConsumer) == "" || strings.TrimSpace(c.Policy.AnonymousGroup) == "" {
		return fmt.Errorf("%w: anonymous consumer and group must not be empty", ErrInvalidConfig)
	}
	return nil
}

func (c Config) ClientOptions(logger zerolog.Logger) admin.Options {
	return admin.Options{
		BaseURL:        c.AdminURL,
		AdminToken:     c.AdminToken,
		TLS:            c.AdminTLS,
		RequestTimeout: c.RequestTimeout,
		MaxAttempts:    c.MaxAttempts,
		Backoff:        c.Backoff,
		Logger:         logger,
	}
}

func (c Config) ReconcileOptions(logger zerolog.Logger) reconcile.Options {
	return reconcile.Options{
		Limits: c.Limits,
		Policy: c.Policy,
		Logger: logger,
	}
}
