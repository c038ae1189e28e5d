package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

var (
	configFile   string
	moduleName   string
	moduleDir    string
	strategyName string
	fetchTimeout time.Duration
	fetchRPS     float64
	logLevel     string
	logFormat    string
	debug        bool
)

func moduleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "module",
			Usage:       "tokenizer module (hf, tiktoken)",
			Value:       "hf",
			Destination: &moduleName,
		},
		&cli.StringFlag{
			Name:        "module-dir",
			Usage:       "directory holding module artifacts (default: next to the executable)",
			Destination: &moduleDir,
		},
		&cli.StringFlag{
			Name:        "strategy",
			Usage:       "module load strategy (auto, browser, host)",
			Value:       "auto",
			Destination: &strategyName,
		},
		&cli.DurationFlag{
			Name:        "fetch-timeout",
			Usage:       "timeout for fetching a tokenizer config",
			Value:       time.Minute,
			Destination: &fetchTimeout,
		},
		&cli.Float64Flag{
			Name:        "fetch-rps",
			Usage:       "max outbound config fetches per second (0 = unlimited)",
			Destination: &fetchRPS,
		},
	}
}

func sourceFlag(dest *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "source",
		Aliases:     []string{"s"},
		Usage:       "tokenizer config URL, file path, or inline:<config>",
		Destination: dest,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
