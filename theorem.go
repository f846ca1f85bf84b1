package theorem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-theorem/harness"
	"github.com/ethereum-optimism/infra/op-theorem/metrics"
	"github.com/ethereum-optimism/infra/op-theorem/plan"
	"github.com/ethereum-optimism/infra/op-theorem/registry"
	"github.com/ethereum-optimism/infra/op-theorem/reporting"
	"github.com/ethereum-optimism/infra/op-theorem/service"
	"github.com/ethereum-optimism/infra/op-theorem/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// theorem implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &theorem{}

// theorem runs the registered suites once or periodically.
type theorem struct {
	ctx      context.Context
	config   *Config
	version  string
	registry *registry.Registry
	harness  *harness.Harness
	recorder *metrics.Recorder
	service  *service.Service

	mu     sync.Mutex
	runID  string
	result *harness.Result
	runErr error

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the op-theorem lifecycle from config. A nil shutdownCallback is ignored.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*theorem, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Registry == nil {
		config.Registry = registry.Default
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	config.Log.Debug("Creating op-theorem with config",
		"plan", config.PlanFile,
		"gate", config.Gate,
		"include", config.Meta.Include,
		"exclude", config.Meta.Exclude,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	var loader harness.Loader
	if config.PlanFile != "" {
		p, err := plan.Load(config.PlanFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load plan: %w", err)
		}
		loader = harness.PlanLoader(config.Registry, p, config.Gate)
	}

	h, err := harness.NewHarness(harness.Config{
		Registry: config.Registry,
		Loader:   loader,
		Log:      config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create harness: %w", err)
	}

	t := &theorem{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         config.Registry,
		harness:          h,
		recorder:         metrics.NewRecorder(""),
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}
	if config.Serve {
		t.service = service.New(t.health)
	}

	console := reporting.NewConsole(config.Out)
	if config.NoColor {
		console.WithColor(false)
	}
	console.Subscribe(h.Events())
	t.recorder.Subscribe(h.Events())
	if config.LogDir != "" {
		h.Events().OnSuiteFinished(t.writeResults)
	}

	config.Log.Info("theorem.New: created harness", "suites", t.registry.Len(), "tests", t.registry.TestCount())
	return t, nil
}

// Start runs the suites immediately and then, unless in run-once mode, at the
// configured interval.
// Start implements the cliapp.Lifecycle interface.
func (t *theorem) Start(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.config.Log.Error("Runtime error occurred", "error", r)
			err = NewRuntimeError(fmt.Errorf("panic: %v", r))
		}
	}()

	t.ctx = ctx
	t.done = make(chan struct{})
	t.running.Store(true)

	if t.service != nil {
		t.service.Start(ctx)
	}

	if t.config.RunOnce {
		t.config.Log.Info("Starting op-theorem in run-once mode")
	} else {
		t.config.Log.Info("Starting op-theorem in continuous mode", "interval", t.config.RunInterval)
	}

	if err := t.runTests(); err != nil {
		t.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	if t.config.RunOnce {
		t.config.Log.Info("Tests completed, exiting (run-once mode)")

		result := t.Result()
		if result != nil && result.Stats.Failed > 0 {
			t.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
			return NewTestFailureError(result.Stats.Failed, result.Stats.Total)
		}

		go func() {
			t.shutdownCallback(nil)
		}()
		return nil
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.config.Log.Debug("Starting periodic test runner goroutine", "interval", t.config.RunInterval)

		for {
			select {
			case <-time.After(t.config.RunInterval):
				if !t.running.Load() {
					t.config.Log.Debug("Service stopped, exiting periodic test runner")
					return
				}

				t.config.Log.Info("Running periodic tests")
				if err := t.runTests(); err != nil {
					t.config.Log.Error("Error running periodic tests", "error", err)
				}

			case <-t.done:
				t.config.Log.Debug("Done signal received, stopping periodic test runner")
				return

			case <-ctx.Done():
				t.config.Log.Debug("Context canceled, stopping periodic test runner")
				t.running.Store(false)
				return
			}
		}
	}()
	t.config.Log.Debug("op-theorem started successfully")
	return nil
}

// runTests performs a single harness run under a fresh run ID.
func (t *theorem) runTests() error {
	runID := uuid.New().String()
	t.mu.Lock()
	t.runID = runID
	t.mu.Unlock()
	t.recorder.SetRunID(runID)

	t.config.Log.Info("Running all tests...", "run_id", runID)
	result, err := t.harness.Run(t.ctx, harness.Options{Meta: t.config.Meta, RunID: runID})

	t.mu.Lock()
	t.runErr = err
	if err == nil {
		t.result = result
	}
	t.mu.Unlock()

	if err != nil {
		metrics.RecordErrorDetails("run", err)
		return NewRuntimeError(err)
	}
	t.config.Log.Info("Test run completed", "run_id", result.RunID, "exit_code", result.ExitCode)
	return nil
}

func (t *theorem) writeResults(results []*types.CompletedTest, elapsed time.Duration) error {
	t.mu.Lock()
	runID := t.runID
	t.mu.Unlock()

	reporter, err := reporting.NewFileReporter(t.config.LogDir, runID, t.config.Log)
	if err != nil {
		return err
	}
	return reporter.Write(results, elapsed)
}

// health reports the outcome of the latest run to /healthz.
func (t *theorem) health() (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.runErr != nil:
		return false, t.runErr.Error()
	case t.result == nil:
		return true, "no run yet"
	case t.result.Stats.Failed > 0:
		return false, fmt.Sprintf("run %s: %d of %d tests failed", t.result.RunID, t.result.Stats.Failed, t.result.Stats.Total)
	default:
		return true, ""
	}
}

// Result returns the result of the latest successful run.
func (t *theorem) Result() *harness.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Stop stops the op-theorem service.
// Stop implements the cliapp.Lifecycle interface.
func (t *theorem) Stop(ctx context.Context) error {
	t.config.Log.Info("Stopping op-theorem")

	if !t.running.Load() {
		t.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	t.running.Store(false)

	t.config.Log.Debug("Sending done signal to goroutines")
	close(t.done)
	t.wg.Wait()

	if t.service != nil {
		t.service.Shutdown()
	}

	t.config.Log.Info("op-theorem stopped successfully")
	return nil
}

// Stopped returns true if the op-theorem service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (t *theorem) Stopped() bool {
	return !t.running.Load()
}
