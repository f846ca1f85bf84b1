package suite

import (
	"slices"

	"github.com/ethereum-optimism/infra/op-theorem/hooks"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Declarer is the declaration surface passed to a suite's declaration block.
type Declarer struct {
	suite *Suite
}

// Name returns the name of the suite being declared.
func (d *Declarer) Name() string {
	return d.suite.name
}

// BeforeAll appends a hook run once before the first test.
func (d *Declarer) BeforeAll(hook hooks.Hook) {
	d.suite.beforeAll.Prepare(hook)
}

// BeforeEach appends a hook run before every test.
func (d *Declarer) BeforeEach(hook hooks.Hook) {
	d.suite.beforeEach.Prepare(hook)
}

// AfterEach appends a hook run after every test, in reverse declaration order.
// The hook receives the test's error, if any, under types.ErrorParam.
func (d *Declarer) AfterEach(hook hooks.Hook) {
	d.suite.afterEach.Prepare(hook)
}

// AfterAll appends a hook run once after the last test, in reverse declaration order.
func (d *Declarer) AfterAll(hook hooks.Hook) {
	d.suite.afterAll.Prepare(hook)
}

// Around sets the hook wrapping each test body, replacing a previous one.
func (d *Declarer) Around(fn hooks.WrapFunc) {
	d.suite.around.Prepare(fn)
}

// Test declares a test.
func (d *Declarer) Test(name string, body types.Body, opts ...types.TestOption) *types.TestCase {
	tc := types.NewTestCase(name, d.suite.name, body, opts...)
	d.suite.tests = append(d.suite.tests, tc)
	return tc
}

// Let declares a fixture resolved at most once per test.
func (d *Declarer) Let(name string, factory types.FixtureFactory) {
	d.suite.fixtures[name] = types.Fixture{Name: name, Scope: types.ScopeTest, Factory: factory}
}

// LetAll declares a fixture resolved at most once per run and shared by every test.
func (d *Declarer) LetAll(name string, factory types.FixtureFactory) {
	d.suite.fixtures[name] = types.Fixture{Name: name, Scope: types.ScopeSuite, Factory: factory}
}

// Experiments adds the tests of exp to the suite. params are passed to every test
// body, overriding parameters the experiment declared itself.
func (d *Declarer) Experiments(exp *Experiment, params types.Params) {
	for _, t := range exp.tests {
		d.Test(t.name, t.body, slices.Concat(t.opts, []types.TestOption{types.WithParams(params)})...)
	}
}
