package harness

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/ethereum-optimism/infra/op-theorem/plan"
	"github.com/ethereum-optimism/infra/op-theorem/registry"
	"github.com/ethereum-optimism/infra/op-theorem/suite"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// RegistryLoader loads every suite of reg, narrowed by Options.Meta.
func RegistryLoader(reg *registry.Registry) Loader {
	return func(opts Options) ([]*suite.Suite, error) {
		filtered, err := reg.Filter(opts.Meta)
		if err != nil {
			return nil, err
		}
		return filtered.Suites(), nil
	}
}

// PlanLoader loads the suites the gate selects from reg. A test is kept only when it
// passes both the gate's tag filter and Options.Meta, so Meta can narrow a gate but
// never widen it.
func PlanLoader(reg *registry.Registry, p *plan.Plan, gateID string) Loader {
	return func(opts Options) ([]*suite.Suite, error) {
		gate, ok := p.Gate(gateID)
		if !ok {
			return nil, fmt.Errorf("gate %q not found in plan", gateID)
		}
		for _, name := range gate.Suites {
			if _, ok := reg.Suite(name); !ok {
				return nil, fmt.Errorf("gate %q selects unknown suite %q", gateID, name)
			}
		}

		filtered, err := reg.Filter(gate.Filter())
		if err != nil {
			return nil, err
		}

		var suites []*suite.Suite
		for _, s := range filtered.Suites() {
			if !gate.Selects(s.Name()) {
				continue
			}
			if !opts.Meta.Empty() {
				s.FilterTests(opts.Meta)
			}
			suites = append(suites, s)
		}
		return suites, nil
	}
}

// SequentialRunner runs the suites one after another and concatenates their results.
// Cancellation is checked between suites only.
func SequentialRunner(logger log.Logger) Runner {
	tracer := otel.Tracer("theorem runner")
	return func(ctx context.Context, suites []*suite.Suite, opts Options) ([]*types.CompletedTest, error) {
		var results []*types.CompletedTest
		for _, s := range suites {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("run %s interrupted before suite %s: %w", opts.RunID, s.Name(), err)
			}

			_, span := tracer.Start(ctx, fmt.Sprintf("suite %s", s.Name()))
			suiteResults, err := s.Run()
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				span.End()
				return nil, fmt.Errorf("suite %s: %w", s.Name(), err)
			}
			if types.AnyFailed(suiteResults) {
				span.SetStatus(codes.Error, "tests failed")
			}
			span.End()

			logger.Debug("Suite completed", "suite", s.Name(), "state", s.State(), "results", len(suiteResults))
			results = append(results, suiteResults...)
		}
		return results, nil
	}
}
