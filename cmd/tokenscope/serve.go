package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokenscope/internal/api"
	"github.com/samcharles93/tokenscope/internal/logger"
	"github.com/samcharles93/tokenscope/internal/session"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		source      string
		readTimeout time.Duration
		noPreload   bool
		allowLocal  bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the tokenizer demo page and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			sourceFlag(&source),
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.BoolFlag{
				Name:        "no-preload",
				Usage:       "do not load the default tokenizer at startup",
				Destination: &noPreload,
			},
			&cli.BoolFlag{
				Name:        "allow-local-sources",
				Usage:       "let API clients load tokenizer configs from this machine's filesystem",
				Destination: &allowLocal,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, configFromContext(ctx), &addr, &source)

			a, err := newApp(log, allowLocal)
			if err != nil {
				return err
			}

			sources := session.DefaultSources
			if source != "" {
				sources = append([]string{source}, session.DefaultSources...)
			}
			if !noPreload {
				go func() {
					// Failure is recorded in the session; the server stays up.
					_, _ = a.ctrl.LoadTokenizer(ctx, sources[0])
				}()
			}

			server := api.NewServer(a.ctrl, api.ServerOptions{
				Sources:  sources,
				Logger:   log,
				Gatherer: a.registry,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "module", moduleName, "strategy", string(a.boot.Strategy()))
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					srv.Handler = api.Instrument(srv.Handler, a.metrics)
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
