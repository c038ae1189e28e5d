package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the optional ~/.config/tokenscope/config.yaml. Values apply only
// when the matching flag was not set on the command line.
type Config struct {
	Module        string   `yaml:"module"`
	ModuleDir     string   `yaml:"module_dir"`
	Strategy      string   `yaml:"strategy"`
	DefaultSource string   `yaml:"default_source"`
	ServerAddress string   `yaml:"server_address"`
	FetchTimeout  string   `yaml:"fetch_timeout"`
	FetchRPS      *float64 `yaml:"fetch_rps"`
	LogLevel      string   `yaml:"log_level"`
	LogFormat     string   `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tokenscope", "config.yaml")
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config; a malformed one is an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyGlobalConfig applies config file defaults to the root flags.
func applyGlobalConfig(c *cli.Command, cfg Config) error {
	if cfg.Module != "" && !c.IsSet("module") {
		moduleName = cfg.Module
	}
	if cfg.ModuleDir != "" && !c.IsSet("module-dir") {
		moduleDir = cfg.ModuleDir
	}
	if cfg.Strategy != "" && !c.IsSet("strategy") {
		strategyName = cfg.Strategy
	}
	if cfg.FetchTimeout != "" && !c.IsSet("fetch-timeout") {
		d, err := time.ParseDuration(cfg.FetchTimeout)
		if err != nil {
			return fmt.Errorf("config fetch_timeout: %w", err)
		}
		fetchTimeout = d
	}
	if cfg.FetchRPS != nil && !c.IsSet("fetch-rps") {
		fetchRPS = *cfg.FetchRPS
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
	return nil
}

// applySourceConfig fills --source from default_source.
func applySourceConfig(c *cli.Command, cfg Config, source *string) {
	if cfg.DefaultSource != "" && !c.IsSet("source") {
		*source = cfg.DefaultSource
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr, source *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	applySourceConfig(c, cfg, source)
}
