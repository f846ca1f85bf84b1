// Package harness drives a complete run: it loads suites, runs them and maps the
// results to an exit code. Each of the three steps is pluggable.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/ethereum-optimism/infra/op-theorem/events"
	"github.com/ethereum-optimism/infra/op-theorem/exitcodes"
	"github.com/ethereum-optimism/infra/op-theorem/registry"
	"github.com/ethereum-optimism/infra/op-theorem/suite"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Options are passed to the loader and the runner.
type Options struct {
	// Meta narrows the loaded suites by tag.
	Meta types.Filter
	// RunID identifies the run. A random one is generated when empty.
	RunID string
}

// Loader returns the suites to run.
type Loader func(opts Options) ([]*suite.Suite, error)

// Runner runs suites and returns their results in order.
type Runner func(ctx context.Context, suites []*suite.Suite, opts Options) ([]*types.CompletedTest, error)

// ExitPolicy maps results to a process exit code.
type ExitPolicy func(results []*types.CompletedTest) int

// Config holds configuration for creating a new harness
type Config struct {
	Registry   *registry.Registry
	Loader     Loader
	Runner     Runner
	ExitPolicy ExitPolicy
	Log        log.Logger
	Clock      clock.PassiveClock
}

// Stats counts the results of a run.
type Stats struct {
	Total  int
	Passed int
	Failed int
	// NotRun counts tests failed without executing because their before-all hooks failed.
	NotRun int
}

// Result is the outcome of a harness run.
type Result struct {
	RunID    string
	Results  []*types.CompletedTest
	Duration time.Duration
	Stats    Stats
	ExitCode int
}

// Harness loads, runs and judges suites.
type Harness struct {
	registry *registry.Registry
	loader   Loader
	runner   Runner
	exit     ExitPolicy
	log      log.Logger
	clock    clock.PassiveClock
	tracer   trace.Tracer

	// suites is set by the first Run; the loader is invoked once per harness.
	suites []*suite.Suite
	loaded bool
}

// NewHarness creates a harness. Unset steps fall back to the registry loader, the
// sequential runner and the default exit policy.
func NewHarness(cfg Config) (*Harness, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.Default
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Loader == nil {
		cfg.Loader = RegistryLoader(cfg.Registry)
	}
	if cfg.Runner == nil {
		cfg.Runner = SequentialRunner(cfg.Log)
	}
	if cfg.ExitPolicy == nil {
		cfg.ExitPolicy = DefaultExitPolicy
	}

	return &Harness{
		registry: cfg.Registry,
		loader:   cfg.Loader,
		runner:   cfg.Runner,
		exit:     cfg.ExitPolicy,
		log:      cfg.Log,
		clock:    cfg.Clock,
		tracer:   otel.Tracer("theorem harness"),
	}, nil
}

// Events returns the subscriber lists the harness publishes suiteStarted and
// suiteFinished to.
func (h *Harness) Events() *events.Bus {
	return h.registry.Events()
}

// Run loads the suites, publishes suiteStarted with every test, runs them, publishes
// suiteFinished with the results and the elapsed time, and applies the exit policy.
func (h *Harness) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	ctx, span := h.tracer.Start(ctx, fmt.Sprintf("run %s", opts.RunID))
	defer span.End()

	suites, err := h.load(opts)
	if err != nil {
		span.SetStatus(codes.Error, "loading suites")
		return nil, fmt.Errorf("loading suites: %w", err)
	}

	var summaries []types.TestSummary
	for _, s := range suites {
		summaries = append(summaries, s.Summaries()...)
	}
	if err := h.Events().PublishSuiteStarted(summaries); err != nil {
		return nil, err
	}

	start := h.clock.Now()
	results, err := h.runner(ctx, suites, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	elapsed := h.clock.Since(start)

	if err := h.Events().PublishSuiteFinished(results, elapsed); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:    opts.RunID,
		Results:  results,
		Duration: elapsed,
		Stats:    Summarize(results),
		ExitCode: h.exit(results),
	}
	h.log.Info("Run finished",
		"run_id", result.RunID,
		"total", result.Stats.Total,
		"passed", result.Stats.Passed,
		"failed", result.Stats.Failed,
		"duration", result.Duration)
	return result, nil
}

func (h *Harness) load(opts Options) ([]*suite.Suite, error) {
	if h.loaded {
		return h.suites, nil
	}
	suites, err := h.loader(opts)
	if err != nil {
		return nil, err
	}
	// Suites from custom loaders may never have been added to the registry.
	for _, s := range suites {
		s.AttachEvents(h.Events())
	}
	h.suites = suites
	h.loaded = true
	h.log.Info("Loaded suites", "run_id", opts.RunID, "suites", len(suites))
	return suites, nil
}

// Summarize counts results.
func Summarize(results []*types.CompletedTest) Stats {
	stats := Stats{Total: len(results)}
	for _, r := range results {
		if r.Failed() {
			stats.Failed++
		} else {
			stats.Passed++
		}
		if !r.Executed {
			stats.NotRun++
		}
	}
	return stats
}

// DefaultExitPolicy returns exitcodes.TestFailure when any result failed.
func DefaultExitPolicy(results []*types.CompletedTest) int {
	if types.AnyFailed(results) {
		return exitcodes.TestFailure
	}
	return exitcodes.Success
}
