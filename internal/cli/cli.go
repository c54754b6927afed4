// Package cli holds the flag and startup plumbing shared by the gatewaysync
// commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/config"
	"github.com/danmuck/gatewaysync/internal/logging"
	"github.com/danmuck/gatewaysync/internal/observability"
	"github.com/danmuck/gatewaysync/internal/reconcile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const (
	flagConfig      = "config"
	flagAdminURL    = "admin-url"
	flagAdminToken  = "admin-token"
	flagMetricsAddr = "metrics-addr"
	flagPushgateway = "pushgateway-url"
	flagSkipFixup   = "skip-fixup"
)

// Common are the flags every command accepts. Flags that are set override
// the config file.
type Common struct {
	ConfigPath  string
	AdminURL    string
	AdminToken  string
	MetricsAddr string
	Pushgateway string
	SkipFixup   bool

	fs *pflag.FlagSet
}

func NewFlagSet(app, usage string, out io.Writer) (*pflag.FlagSet, *Common) {
	fs := pflag.NewFlagSet(app, pflag.ContinueOnError)
	fs.SetOutput(out)
	c := &Common{fs: fs}
	fs.StringVarP(&c.ConfigPath, flagConfig, "c", "", "path to a gatewaysync TOML config")
	fs.StringVar(&c.AdminURL, flagAdminURL, config.DefaultAdminURL, "gateway admin API base URL")
	fs.StringVar(&c.AdminToken, flagAdminToken, "", "admin API token")
	fs.StringVar(&c.MetricsAddr, flagMetricsAddr, "", "serve /metrics on this address during the run")
	fs.StringVar(&c.Pushgateway, flagPushgateway, "", "push run metrics to this Pushgateway when done")
	fs.Usage = func() {
		fmt.Fprintf(out, "usage: %s %s\n\nflags:\n", app, usage)
		fs.PrintDefaults()
	}
	return fs, c
}

// AddSkipFixup registers --skip-fixup for commands that run the acl fixup.
func (c *Common) AddSkipFixup() {
	c.fs.BoolVar(&c.SkipFixup, flagSkipFixup, false, "do not run the acl fixup pass")
}

// Resolve builds the run configuration: defaults, the config file when given,
// then explicitly set flags.
func (c *Common) Resolve() (config.Config, error) {
	cfg := config.DefaultConfig()
	if strings.TrimSpace(c.ConfigPath) != "" {
		loaded, err := config.Load(c.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if c.fs.Changed(flagAdminURL) {
		cfg.AdminURL = strings.TrimSpace(c.AdminURL)
	}
	if c.fs.Changed(flagAdminToken) {
		cfg.AdminToken = strings.TrimSpace(c.AdminToken)
	}
	if c.fs.Changed(flagMetricsAddr) {
		cfg.MetricsAddr = strings.TrimSpace(c.MetricsAddr)
	}
	if c.fs.Changed(flagPushgateway) {
		cfg.PushgatewayURL = strings.TrimSpace(c.Pushgateway)
	}
	if c.fs.Lookup(flagSkipFixup) != nil && c.fs.Changed(flagSkipFixup) {
		cfg.SkipFixup = c.SkipFixup
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Env is one command run: its logger, admin client and reconciler.
type Env struct {
	App        string
	RunID      string
	Config     config.Config
	Logger     zerolog.Logger
	Client     *admin.Client
	Reconciler *reconcile.Reconciler

	metrics *observability.MetricsServer
}

// Start configures logging and metrics and builds the admin client.
func Start(app string, cfg config.Config) (*Env, error) {
	logging.ConfigureRuntime()
	logger, runID := logging.WithRun(log.Logger, app)
	observability.RegisterMetrics()

	client, err := admin.NewClient(cfg.ClientOptions(logger))
	if err != nil {
		return nil, err
	}
	env := &Env{
		App:        app,
		RunID:      runID,
		Config:     cfg,
		Logger:     logger,
		Client:     client,
		Reconciler: reconcile.New(client, cfg.ReconcileOptions(logger)),
	}

	if cfg.MetricsAddr != "" {
		env.metrics = observability.NewMetricsServer(app, logger)
		if err := env.metrics.Start(cfg.MetricsAddr); err != nil {
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info().Str("addr", env.metrics.Addr()).Msg("metrics server listening")
	}
	logger.Info().Str("admin_url", client.BaseURL()).Msg("run started")
	return env, nil
}

// Close pushes metrics when configured and stops the metrics server.
func (e *Env) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if e.Config.PushgatewayURL != "" {
		if err := observability.Push(ctx, e.Config.PushgatewayURL, e.App); err != nil {
			e.Logger.Warn().Err(err).Msg("metrics push failed")
		}
	}
	if e.metrics != nil {
		if err := e.metrics.Shutdown(ctx); err != nil {
			e.Logger.Warn().Err(err).Msg("metrics server shutdown failed")
		}
	}
}

// Fail reports err on stderr and returns the process exit code. A rejected
// admin request prints the gateway's response body verbatim.
func Fail(stderr io.Writer, app string, err error) int {
	var serr *admin.StatusError
	if errors.As(err, &serr) && len(serr.Body) > 0 {
		fmt.Fprintln(stderr, strings.TrimSpace(string(serr.Body)))
	}
	fmt.Fprintf(stderr, "%s: %v\n", app, err)
	return 1
}
