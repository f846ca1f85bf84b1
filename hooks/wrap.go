package hooks

import (
	"github.com/ethereum-optimism/infra/op-theorem/failure"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Runnable is the handle a wrap hook receives for the test it wraps.
type Runnable interface {
	Name() string
	Run() error
}

// WrapFunc wraps the execution of one test. It decides whether and when to call test.Run.
type WrapFunc func(inst *types.Instance, test Runnable) error

// RunnableFactory builds the handle passed to a wrap hook.
type RunnableFactory func(test *types.TestCase, inst *types.Instance) Runnable

type testRunner struct {
	test *types.TestCase
	inst *types.Instance
}

func (r *testRunner) Name() string {
	return r.test.Name()
}

func (r *testRunner) Run() error {
	return r.test.Run(r.inst)
}

// NewRunnable is the default RunnableFactory.
func NewRunnable(test *types.TestCase, inst *types.Instance) Runnable {
	return &testRunner{test: test, inst: inst}
}

// Wrap holds at most one wrap hook.
type Wrap struct {
	fn WrapFunc
}

// NewWrap creates an empty wrap hook.
func NewWrap() *Wrap {
	return &Wrap{}
}

// Prepare sets the wrap callable, replacing any previous one.
func (w *Wrap) Prepare(fn WrapFunc) {
	w.fn = fn
}

// Empty reports whether no wrap callable is set.
func (w *Wrap) Empty() bool {
	return w.fn == nil
}

// Run executes test on inst through the wrap callable, or directly when none is set.
// Errors and panics are caught here and returned after classification; a fatal
// error comes back as a *failure.FatalError.
func (w *Wrap) Run(test *types.TestCase, inst *types.Instance, classifier *failure.Classifier, factory RunnableFactory) error {
	if classifier == nil {
		classifier = failure.Default
	}
	if factory == nil {
		factory = NewRunnable
	}
	runnable := factory(test, inst)

	err := failure.Call(func() error {
		if w.fn == nil {
			return runnable.Run()
		}
		return w.fn(inst, runnable)
	})
	return classifier.Classify(err)
}
