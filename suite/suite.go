// Package suite declares suites of tests and runs them.
//
// A suite is built with New (or Derive from a parent suite) and a declaration block
// that registers hooks, tests and fixtures through a Declarer. Run executes the suite
// sequentially: before-all once, then for every test before-each, the body (wrapped by
// the around hook when one is set) and after-each, and finally after-all.
package suite

import (
	"maps"
	"slices"

	"github.com/ethereum/go-ethereum/log"
	"k8s.io/utils/clock"

	"github.com/ethereum-optimism/infra/op-theorem/events"
	"github.com/ethereum-optimism/infra/op-theorem/failure"
	"github.com/ethereum-optimism/infra/op-theorem/hooks"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Suite is a declared group of tests together with its hook chains.
type Suite struct {
	name   string
	parent *Suite

	beforeAll  *hooks.Chain
	beforeEach *hooks.Chain
	afterEach  *hooks.Chain
	afterAll   *hooks.Chain
	around     *hooks.Wrap

	tests    []*types.TestCase
	fixtures map[string]types.Fixture

	events     *events.Bus
	classifier *failure.Classifier
	clock      clock.PassiveClock
	log        log.Logger

	state RunState
}

// Option configures a Suite.
type Option func(*Suite)

// WithClock sets the clock used to time tests.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Suite) {
		s.clock = c
	}
}

// WithLogger sets the suite logger.
func WithLogger(l log.Logger) Option {
	return func(s *Suite) {
		s.log = l
	}
}

// WithClassifier sets the classifier deciding which errors abort the run.
func WithClassifier(c *failure.Classifier) Option {
	return func(s *Suite) {
		s.classifier = c
	}
}

// WithEvents sets the bus test results are published to.
func WithEvents(bus *events.Bus) Option {
	return func(s *Suite) {
		s.events = bus
	}
}

// New declares a suite called name. declare may be nil.
func New(name string, declare func(d *Declarer), opts ...Option) *Suite {
	s := &Suite{
		name:       name,
		beforeAll:  hooks.NewChain(),
		beforeEach: hooks.NewChain(),
		afterEach:  hooks.NewChain(),
		afterAll:   hooks.NewChain(),
		around:     hooks.NewWrap(),
		fixtures:   make(map[string]types.Fixture),
		events:     events.NewBus(),
		classifier: failure.Default,
		clock:      clock.RealClock{},
		log:        log.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Declare(declare)
	return s
}

// Derive declares a suite inheriting from s. Each of the derived suite's hook chains
// starts with a copy of the matching chain of s, so parent before-hooks run first and
// parent after-hooks run last. Fixtures, the event bus, the classifier, the clock and
// the logger are inherited; tests and the around hook are not. Hooks added to s after
// Derive returns do not reach the derived suite.
func (s *Suite) Derive(name string, declare func(d *Declarer), opts ...Option) *Suite {
	child := &Suite{
		name:       name,
		parent:     s,
		beforeAll:  hooks.NewChain(),
		beforeEach: hooks.NewChain(),
		afterEach:  hooks.NewChain(),
		afterAll:   hooks.NewChain(),
		around:     hooks.NewWrap(),
		fixtures:   maps.Clone(s.fixtures),
		events:     s.events,
		classifier: s.classifier,
		clock:      s.clock,
		log:        s.log,
	}
	child.beforeAll.Concat(s.beforeAll.Clone())
	child.beforeEach.Concat(s.beforeEach.Clone())
	child.afterEach.Concat(s.afterEach.Clone())
	child.afterAll.Concat(s.afterAll.Clone())

	for _, opt := range opts {
		opt(child)
	}
	child.Declare(declare)
	return child
}

// Declare evaluates another declaration block against s.
func (s *Suite) Declare(declare func(d *Declarer)) {
	if declare == nil {
		return
	}
	declare(&Declarer{suite: s})
}

// Name returns the suite name. It is the namespace of every test declared on it.
func (s *Suite) Name() string {
	return s.name
}

// Parent returns the suite s was derived from, or nil.
func (s *Suite) Parent() *Suite {
	return s.parent
}

// Tests returns the declared tests in declaration order.
func (s *Suite) Tests() []*types.TestCase {
	return slices.Clone(s.tests)
}

// Summaries returns the name and metadata of every declared test.
func (s *Suite) Summaries() []types.TestSummary {
	out := make([]types.TestSummary, 0, len(s.tests))
	for _, tc := range s.tests {
		out = append(out, tc.Summary())
	}
	return out
}

// FilterTests narrows the declared tests in place and returns how many were dropped.
func (s *Suite) FilterTests(filter types.Filter) int {
	if filter.Empty() {
		return 0
	}
	before := len(s.tests)
	s.tests = slices.DeleteFunc(s.tests, func(tc *types.TestCase) bool {
		return !filter.Keep(tc.Metadata())
	})
	return before - len(s.tests)
}

// Events returns the bus results are published to.
func (s *Suite) Events() *events.Bus {
	return s.events
}

// AttachEvents replaces the bus results are published to.
func (s *Suite) AttachEvents(bus *events.Bus) {
	s.events = bus
}

// State returns the state the last Run ended in.
func (s *Suite) State() RunState {
	return s.state
}
