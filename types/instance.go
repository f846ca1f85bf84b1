// Package types contains the records shared by the suite runner, the registry and reporters.
package types

import (
	"fmt"
	"maps"

	"github.com/ethereum-optimism/infra/op-theorem/state"
)

// FixtureScope controls when a memoized fixture value is discarded.
type FixtureScope int

const (
	// ScopeTest fixtures are resolved at most once per test and cleared after the
	// after-each hooks.
	ScopeTest FixtureScope = iota
	// ScopeSuite fixtures are resolved at most once per run and cleared after the
	// after-all hooks.
	ScopeSuite
)

func (s FixtureScope) String() string {
	switch s {
	case ScopeTest:
		return "test"
	case ScopeSuite:
		return "suite"
	default:
		return "unknown"
	}
}

// FixtureFactory builds a fixture value on first access.
type FixtureFactory func(inst *Instance) (any, error)

// Fixture is a named lazily-resolved value declared on a suite.
type Fixture struct {
	Name    string
	Scope   FixtureScope
	Factory FixtureFactory
}

type lazyValue struct {
	factory  FixtureFactory
	resolved bool
	value    any
}

// fixtureCache holds suite-scoped values shared by every instance of one run.
type fixtureCache struct {
	values map[string]*lazyValue
}

// Instance is the receiver hooks and test bodies run against: a state store plus
// memoized fixtures.
type Instance struct {
	suite    string
	state    *state.Store
	fixtures map[string]Fixture
	perTest  map[string]*lazyValue
	shared   *fixtureCache
	current  *TestCase
}

// NewInstance creates a fresh instance for suite with an empty state store.
func NewInstance(suite string, fixtures map[string]Fixture) *Instance {
	return &Instance{
		suite:    suite,
		state:    state.New(),
		fixtures: maps.Clone(fixtures),
		perTest:  make(map[string]*lazyValue),
		shared:   &fixtureCache{values: make(map[string]*lazyValue)},
	}
}

// Suite returns the name of the suite that created the instance.
func (i *Instance) Suite() string {
	return i.suite
}

// State returns the instance's state store.
func (i *Instance) State() *state.Store {
	return i.state
}

// Notate passes the instance's state store to fn.
func (i *Instance) Notate(fn func(*state.Store)) {
	fn(i.state)
}

// Current returns the test being executed on this instance, or nil outside a test.
func (i *Instance) Current() *TestCase {
	return i.current
}

// WithCurrent returns i after marking tc as the test running on it.
func (i *Instance) WithCurrent(tc *TestCase) *Instance {
	i.current = tc
	return i
}

// Clone returns a value-level copy of the instance. The state store is cloned with
// state.Store.Clone, so only scalar values and values implementing state.Cloner are
// independent of i; maps, slices and pointers written to the state stay shared.
// Per-test fixture values are dropped and suite-scoped fixture values stay shared.
func (i *Instance) Clone() *Instance {
	return &Instance{
		suite:    i.suite,
		state:    i.state.Clone(),
		fixtures: i.fixtures,
		perTest:  make(map[string]*lazyValue),
		shared:   i.shared,
	}
}

// Fixture resolves the fixture called name, building it on first access.
func (i *Instance) Fixture(name string) (any, error) {
	def, ok := i.fixtures[name]
	if !ok {
		return nil, fmt.Errorf("can't find fixture %q", name)
	}

	cache := i.perTest
	if def.Scope == ScopeSuite {
		cache = i.shared.values
	}

	lv, ok := cache[name]
	if !ok {
		lv = &lazyValue{factory: def.Factory}
		cache[name] = lv
	}
	if lv.resolved {
		return lv.value, nil
	}

	value, err := lv.factory(i)
	if err != nil {
		return nil, fmt.Errorf("resolving fixture %q: %w", name, err)
	}
	lv.value = value
	lv.resolved = true
	return value, nil
}

// MustFixture is like Fixture but panics when the fixture cannot be resolved.
func (i *Instance) MustFixture(name string) any {
	v, err := i.Fixture(name)
	if err != nil {
		panic(err)
	}
	return v
}

// ResetFixtures discards memoized values of the given scope.
func (i *Instance) ResetFixtures(scope FixtureScope) {
	switch scope {
	case ScopeTest:
		clear(i.perTest)
	case ScopeSuite:
		clear(i.shared.values)
	}
}
