package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
module: tiktoken
module_dir: /opt/tokenscope
default_source: inline:cl100k_base
server_address: 0.0.0.0:9000
fetch_timeout: 5s
fetch_rps: 2.5
log_level: debug
log_format: json
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Module != "tiktoken" || cfg.ModuleDir != "/opt/tokenscope" || cfg.DefaultSource != "inline:cl100k_base" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.FetchRPS == nil || *cfg.FetchRPS != 2.5 {
		t.Fatalf("fetch_rps not parsed: %+v", cfg.FetchRPS)
	}
}

func TestLoadConfigMissingAndMalformed(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || cfg != (Config{}) {
		t.Fatalf("missing file should yield zero config, got %+v %v", cfg, err)
	}
	if _, err := LoadConfig(writeConfig(t, "module: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}

// runWithConfig parses args against the root flags and applies cfg the way
// the Before hook does.
func runWithConfig(t *testing.T, cfg Config, args ...string) error {
	t.Helper()
	moduleName, moduleDir, strategyName, logLevel, logFormat = "", "", "", "", ""
	fetchTimeout, fetchRPS = 0, 0

	var applyErr error
	cmd := &cli.Command{
		Name:  "tokenscope",
		Flags: append(loggingFlags(), moduleFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyErr = applyGlobalConfig(c, cfg)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), append([]string{"tokenscope"}, args...)); err != nil {
		t.Fatalf("run: %v", err)
	}
	return applyErr
}

func TestConfigDoesNotOverrideFlags(t *testing.T) {
	rps := 3.0
	cfg := Config{Module: "tiktoken", ModuleDir: "/cfg", FetchTimeout: "7s", FetchRPS: &rps, LogLevel: "warn"}

	if err := runWithConfig(t, cfg, "--module", "hf", "--log-level", "error"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if moduleName != "hf" {
		t.Errorf("flag should win for module, got %q", moduleName)
	}
	if logLevel != "error" {
		t.Errorf("flag should win for log level, got %q", logLevel)
	}
	if moduleDir != "/cfg" || fetchTimeout != 7*time.Second || fetchRPS != 3 {
		t.Errorf("config should fill unset flags: dir=%q timeout=%v rps=%v", moduleDir, fetchTimeout, fetchRPS)
	}
}

func TestConfigBadDuration(t *testing.T) {
	if err := runWithConfig(t, Config{FetchTimeout: "soon"}); err == nil {
		t.Fatal("expected error for bad fetch_timeout")
	}
}
