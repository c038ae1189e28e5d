package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokenscope/internal/binding"
	"github.com/samcharles93/tokenscope/internal/bootstrap"
	"github.com/samcharles93/tokenscope/internal/logger"
	"github.com/samcharles93/tokenscope/internal/metrics"
	"github.com/samcharles93/tokenscope/internal/session"
)

type configKey struct{}

// setup loads the config file, applies it to unset flags and installs the
// logger in the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := configFile
	if path == "" {
		path = configPath()
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	if err := applyGlobalConfig(cmd, cfg); err != nil {
		return ctx, err
	}

	format, err := logger.ParseFormat(logFormat)
	if err != nil {
		return ctx, err
	}
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	log := logger.Build(os.Stderr, logger.Options{
		Level:  level,
		Format: format,
		Color:  isTerminal(os.Stderr),
		Source: format == logger.FormatJSON,
	})

	ctx = logger.WithContext(ctx, log)
	ctx = context.WithValue(ctx, configKey{}, cfg)
	return ctx, nil
}

func configFromContext(ctx context.Context) Config {
	cfg, _ := ctx.Value(configKey{}).(Config)
	return cfg
}

// app holds the wired components shared by the commands.
type app struct {
	boot     *bootstrap.Initializer
	ctrl     *session.Controller
	metrics  *metrics.Collector
	registry *prometheus.Registry
}

// newApp wires the module, initializer and session. allowLocal lets the
// session read tokenizer configs from the local filesystem.
func newApp(log logger.Logger, allowLocal bool) (*app, error) {
	mod, err := binding.Lookup(moduleName)
	if err != nil {
		return nil, err
	}
	strategy, err := bootstrap.ParseStrategy(strategyName)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(metrics.Namespace, registry)

	boot := bootstrap.New(mod, bootstrap.Options{
		Strategy: strategy,
		BaseDir:  moduleDir,
		Logger:   log,
		Metrics:  collector,
	})
	fetcher := session.NewHTTPFetcher(session.FetcherOptions{
		Timeout:    fetchTimeout,
		RPS:        fetchRPS,
		Burst:      1,
		AllowLocal: allowLocal,
	})
	ctrl := session.NewController(boot, session.Options{
		Fetcher: fetcher,
		Logger:  log,
		Metrics: collector,
	})
	return &app{boot: boot, ctrl: ctrl, metrics: collector, registry: registry}, nil
}

func resolveSource(source string) string {
	if source != "" {
		return source
	}
	return session.DefaultSources[0]
}
