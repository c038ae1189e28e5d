package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/tokenscope/internal/binding"
	"github.com/samcharles93/tokenscope/internal/metrics"
)

type fakeModule struct {
	artifact string
	gate     chan struct{}

	mu        sync.Mutex
	calls     atomic.Int64
	failures  int
	locations []string
}

func (m *fakeModule) Name() string     { return "fake" }
func (m *fakeModule) Artifact() string { return m.artifact }

func (m *fakeModule) Load(ctx context.Context, location string) error {
	m.calls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, location)
	if m.failures > 0 {
		m.failures--
		return errors.New("artifact missing")
	}
	return ctx.Err()
}

func (m *fakeModule) NewTokenizer(string) (binding.Tokenizer, error) {
	return nil, errors.New("not used")
}

func TestConcurrentCallersShareOneLoad(t *testing.T) {
	t.Parallel()

	mod := &fakeModule{gate: make(chan struct{})}
	in := New(mod, Options{Strategy: StrategyBrowser, Metrics: metrics.NewCollector("test", prometheus.NewRegistry())})

	const callers = 16
	errs := make(chan error, callers)
	var started sync.WaitGroup
	for range callers {
		started.Add(1)
		go func() {
			started.Done()
			errs <- in.Initialize(context.Background())
		}()
	}
	started.Wait()
	require.Eventually(t, func() bool { return in.State() == Initializing }, time.Second, time.Millisecond)
	// Give the remaining callers time to join the in-flight load.
	time.Sleep(20 * time.Millisecond)
	close(mod.gate)

	for range callers {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, int64(1), in.Loads())
	assert.Equal(t, int64(1), mod.calls.Load())
	assert.Equal(t, Ready, in.State())
}

func TestConcurrentCallersShareOneFailure(t *testing.T) {
	t.Parallel()

	mod := &fakeModule{gate: make(chan struct{}), failures: 1}
	in := New(mod, Options{Strategy: StrategyBrowser})

	const callers = 16
	errs := make(chan error, callers)
	var started sync.WaitGroup
	for range callers {
		started.Add(1)
		go func() {
			started.Done()
			errs <- in.Initialize(context.Background())
		}()
	}
	started.Wait()
	require.Eventually(t, func() bool { return in.State() == Initializing }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(mod.gate)

	var first *InitError
	for range callers {
		var initErr *InitError
		require.ErrorAs(t, <-errs, &initErr)
		if first == nil {
			first = initErr
		}
		assert.Same(t, first, initErr)
	}
	assert.Equal(t, "load failed", first.Reason)
	assert.Equal(t, int64(1), in.Loads())
	assert.Equal(t, int64(1), mod.calls.Load())
	assert.Equal(t, Failed, in.State())
	assert.Same(t, first, in.Err())
}

func TestSuccessIsCached(t *testing.T) {
	t.Parallel()

	mod := &fakeModule{}
	in := New(mod, Options{Strategy: StrategyBrowser})
	for range 3 {
		require.NoError(t, in.Initialize(context.Background()))
	}
	assert.Equal(t, int64(1), in.Loads())
}

func TestFailureIsRetried(t *testing.T) {
	t.Parallel()

	mod := &fakeModule{failures: 1}
	in := New(mod, Options{Strategy: StrategyBrowser})

	err := in.Initialize(context.Background())
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "fake", initErr.Module)
	assert.Equal(t, StrategyBrowser, initErr.Strategy)
	assert.Equal(t, Failed, in.State())
	assert.Equal(t, err, in.Err())

	require.NoError(t, in.Initialize(context.Background()))
	assert.Equal(t, Ready, in.State())
	assert.NoError(t, in.Err())
	assert.Equal(t, int64(2), in.Loads())
}

func TestCallerCancellationDoesNotAbortLoad(t *testing.T) {
	t.Parallel()

	mod := &fakeModule{gate: make(chan struct{})}
	in := New(mod, Options{Strategy: StrategyBrowser})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Initialize(ctx) }()
	require.Eventually(t, func() bool { return in.State() == Initializing }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(mod.gate)
	require.NoError(t, in.Initialize(context.Background()))
	assert.Equal(t, int64(1), in.Loads())
}

func TestHostStrategyLocation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mod := &fakeModule{artifact: "encodings"}
	require.NoError(t, New(mod, Options{Strategy: StrategyHost, BaseDir: dir}).Initialize(context.Background()))
	assert.Equal(t, []string{filepath.Join(dir, "encodings")}, mod.locations)

	exeDir := t.TempDir()
	mod = &fakeModule{artifact: "encodings"}
	in := New(mod, Options{Strategy: StrategyHost})
	in.executable = func() (string, error) { return filepath.Join(exeDir, "tokenscope"), nil }
	require.NoError(t, in.Initialize(context.Background()))
	assert.Equal(t, []string{filepath.Join(exeDir, "encodings")}, mod.locations)
}

func TestHostStrategyWithoutArtifact(t *testing.T) {
	t.Parallel()

	mod := &fakeModule{}
	in := New(mod, Options{Strategy: StrategyHost})
	in.executable = func() (string, error) { return "", errors.New("should not be called") }
	require.NoError(t, in.Initialize(context.Background()))
	assert.Equal(t, []string{""}, mod.locations)
}

func TestExecutableLookupFailure(t *testing.T) {
	t.Parallel()

	mod := &fakeModule{artifact: "encodings"}
	in := New(mod, Options{Strategy: StrategyHost})
	in.executable = func() (string, error) { return "", errors.New("no procfs") }

	err := in.Initialize(context.Background())
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "resolve artifact", initErr.Reason)
	assert.Equal(t, int64(0), in.Loads())
}

func TestBrowserStrategyPassesEmptyLocation(t *testing.T) {
	t.Parallel()

	mod := &fakeModule{artifact: "encodings"}
	require.NoError(t, New(mod, Options{Strategy: StrategyBrowser, BaseDir: "/opt"}).Initialize(context.Background()))
	assert.Equal(t, []string{""}, mod.locations)
}

func TestDetectOutsideBrowser(t *testing.T) {
	t.Parallel()

	assert.False(t, HasBrowserGlobal())
	assert.Equal(t, StrategyHost, Detect())

	s, err := ParseStrategy("auto")
	require.NoError(t, err)
	assert.Equal(t, StrategyHost, s)
	_, err = ParseStrategy("cloud")
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "unknown", State(42).String())
}
