package suite

import (
	"slices"

	"github.com/ethereum-optimism/infra/op-theorem/types"
)

type experimentTest struct {
	name string
	body types.Body
	opts []types.TestOption
}

// Experiment is a reusable set of tests that suites pull in with Declarer.Experiments.
// Its tests take the namespace of the consuming suite.
type Experiment struct {
	name  string
	tests []experimentTest
}

// NewExperiment declares a reusable set of tests.
func NewExperiment(name string, declare func(e *Experiment)) *Experiment {
	e := &Experiment{name: name}
	if declare != nil {
		declare(e)
	}
	return e
}

// Name returns the experiment name.
func (e *Experiment) Name() string {
	return e.name
}

// Test declares a test of the experiment.
func (e *Experiment) Test(name string, body types.Body, opts ...types.TestOption) {
	e.tests = append(e.tests, experimentTest{name: name, body: body, opts: slices.Clone(opts)})
}

// Len returns the number of tests in the experiment.
func (e *Experiment) Len() int {
	return len(e.tests)
}
