// Package bootstrap loads a tokenizer module exactly once per Initializer.
// Concurrent callers share the in-flight load; a successful load is cached
// for the life of the Initializer and a failed one is retried on the next
// call.
package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/samcharles93/tokenscope/internal/binding"
	"github.com/samcharles93/tokenscope/internal/logger"
	"github.com/samcharles93/tokenscope/internal/metrics"
)

// Options configures an Initializer. The zero value detects the strategy
// and logs nowhere.
type Options struct {
	// Strategy overrides detection when set.
	Strategy Strategy
	// BaseDir overrides the executable directory for StrategyHost.
	BaseDir string
	Logger  logger.Logger
	Metrics *metrics.Collector
}

// Initializer prepares one binding.Module for use. It is safe for
// concurrent use; share a single Initializer per module in a process.
type Initializer struct {
	module   binding.Module
	strategy Strategy
	baseDir  string
	log      logger.Logger
	metrics  *metrics.Collector

	executable func() (string, error)

	group singleflight.Group
	loads atomic.Int64

	mu      sync.Mutex
	state   State
	lastErr error
}

// New returns an Initializer for module. The loading strategy is fixed here,
// either from opts.Strategy or by Detect.
func New(module binding.Module, opts Options) *Initializer {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = Detect()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Initializer{
		module:     module,
		strategy:   strategy,
		baseDir:    opts.BaseDir,
		log:        log.With("component", "bootstrap", "module", module.Name()),
		metrics:    opts.Metrics,
		executable: osExecutable,
	}
}

// Initialize loads the module if it is not loaded yet. A caller whose ctx
// ends returns early; the shared load keeps running for the others.
func (i *Initializer) Initialize(ctx context.Context) error {
	if i.State() == Ready {
		return nil
	}
	ch := i.group.DoChan("load", func() (any, error) {
		return nil, i.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (i *Initializer) load(ctx context.Context) error {
	i.mu.Lock()
	if i.state == Ready {
		i.mu.Unlock()
		return nil
	}
	i.state = Initializing
	i.mu.Unlock()

	location, err := i.strategy.locate(i.baseDir, i.module.Artifact(), i.executable)
	if err != nil {
		return i.fail(&InitError{
			Module:   i.module.Name(),
			Strategy: i.strategy,
			Reason:   "resolve artifact",
			Err:      err,
		})
	}

	i.log.Debug("loading tokenizer module", "strategy", string(i.strategy), "location", location)
	i.loads.Add(1)
	start := time.Now()
	err = i.module.Load(ctx, location)
	i.metrics.RecordModuleLoad(i.module.Name(), string(i.strategy), err, time.Since(start))
	if err != nil {
		return i.fail(&InitError{
			Module:   i.module.Name(),
			Strategy: i.strategy,
			Location: location,
			Reason:   "load failed",
			Err:      err,
		})
	}

	i.mu.Lock()
	i.state = Ready
	i.lastErr = nil
	i.mu.Unlock()
	i.log.Info("tokenizer module ready", "strategy", string(i.strategy), "took", time.Since(start))
	return nil
}

func (i *Initializer) fail(err *InitError) error {
	i.mu.Lock()
	i.state = Failed
	i.lastErr = err
	i.mu.Unlock()
	i.log.Error("tokenizer module failed to load", "error", err)
	return err
}

// State reports the current load state.
func (i *Initializer) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Err returns the error of the last failed load, or nil.
func (i *Initializer) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

func (i *Initializer) Strategy() Strategy { return i.strategy }

// Module returns the module this Initializer loads.
func (i *Initializer) Module() binding.Module { return i.module }

// Loads counts calls made to Module.Load.
func (i *Initializer) Loads() int64 { return i.loads.Load() }
