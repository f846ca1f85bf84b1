package theorem

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-theorem/flags"
	"github.com/ethereum-optimism/infra/op-theorem/registry"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Config holds the application configuration
type Config struct {
	PlanFile    string        // Run plan file; empty runs every registered suite
	Gate        string        // Gate of the run plan to execute
	Meta        types.Filter  // Tag filter applied on top of the gate's
	RunInterval time.Duration // Interval between test runs
	RunOnce     bool          // Indicates if the service should exit after one test run
	LogDir      string        // Directory to store run results; empty disables file output
	Serve       bool          // Expose /healthz and /metrics
	NoColor     bool

	// Registry defaults to registry.Default.
	Registry *registry.Registry
	// Out receives console output and defaults to stdout.
	Out io.Writer
	Log log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	var planFile string
	if p := ctx.String(flags.Plan.Name); p != "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for plan '%s': %w", p, err)
		}
		planFile = abs
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	if runInterval < 0 {
		return nil, fmt.Errorf("run interval must not be negative, got %s", runInterval)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		abs, err := filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
		}
		logDir = abs
	}

	return &Config{
		PlanFile: planFile,
		Gate:     ctx.String(flags.Gate.Name),
		Meta: types.Filter{
			Include: ctx.StringSlice(flags.Include.Name),
			Exclude: ctx.StringSlice(flags.Exclude.Name),
		},
		RunInterval: runInterval,
		RunOnce:     runInterval == 0,
		LogDir:      logDir,
		Serve:       ctx.Bool(flags.Serve.Name),
		NoColor:     ctx.Bool(flags.NoColor.Name),
		Log:         log,
	}, nil
}
