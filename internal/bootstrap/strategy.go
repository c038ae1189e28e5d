package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
)

// Strategy decides where a module's artifact is looked up.
type Strategy string

const (
	// StrategyBrowser lets the module resolve its own resources.
	StrategyBrowser Strategy = "browser"
	// StrategyHost resolves the artifact next to the running executable,
	// or under a configured base directory.
	StrategyHost Strategy = "host"
)

// Detect picks the strategy for the current process.
func Detect() Strategy {
	if HasBrowserGlobal() {
		return StrategyBrowser
	}
	return StrategyHost
}

// ParseStrategy accepts "", "auto", "browser" or "host". Empty and auto
// defer to Detect.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "auto":
		return Detect(), nil
	case string(StrategyBrowser), string(StrategyHost):
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown load strategy %q", s)
	}
}

// locate returns the location passed to Module.Load.
func (s Strategy) locate(baseDir, artifact string, executable func() (string, error)) (string, error) {
	if s == StrategyBrowser || artifact == "" {
		return "", nil
	}
	if baseDir == "" {
		exe, err := executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		baseDir = filepath.Dir(exe)
	}
	return filepath.Join(baseDir, artifact), nil
}

var osExecutable = os.Executable
