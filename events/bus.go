// Package events implements the four lifecycle subscriber lists reporters attach to.
package events

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Event names a lifecycle point a subscriber can attach to.
type Event string

const (
	SuiteStarted  Event = "suiteStarted"
	TestStarted   Event = "testStarted"
	TestFinished  Event = "testFinished"
	SuiteFinished Event = "suiteFinished"
)

// All lists every event in the order they occur during a run.
var All = []Event{SuiteStarted, TestStarted, TestFinished, SuiteFinished}

// Subscriber signatures. A returned error halts publication and the run.
type (
	SuiteStartedFunc  func(tests []types.TestSummary) error
	TestStartedFunc   func(test *types.TestCase) error
	TestFinishedFunc  func(result *types.CompletedTest) error
	SuiteFinishedFunc func(results []*types.CompletedTest, elapsed time.Duration) error
)

// Bus holds the subscriber lists. Subscribers are invoked synchronously in
// registration order.
type Bus struct {
	mu            sync.RWMutex
	suiteStarted  []SuiteStartedFunc
	testStarted   []TestStartedFunc
	testFinished  []TestFinishedFunc
	suiteFinished []SuiteFinishedFunc
}

// NewBus creates a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// OnSuiteStarted subscribes fn to the list of tests about to run.
func (b *Bus) OnSuiteStarted(fn SuiteStartedFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suiteStarted = append(b.suiteStarted, fn)
}

// OnTestStarted subscribes fn to each test before its before-each hooks run.
func (b *Bus) OnTestStarted(fn TestStartedFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.testStarted = append(b.testStarted, fn)
}

// OnTestFinished subscribes fn to each completed test.
func (b *Bus) OnTestFinished(fn TestFinishedFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.testFinished = append(b.testFinished, fn)
}

// OnSuiteFinished subscribes fn to the results of a whole run and its duration.
func (b *Bus) OnSuiteFinished(fn SuiteFinishedFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suiteFinished = append(b.suiteFinished, fn)
}

// On appends fn to the subscriber list of ev. fn must have the signature matching
// ev (one of the *Func types, or the equivalent plain func type).
func (b *Bus) On(ev Event, fn any) error {
	switch ev {
	case SuiteStarted:
		switch f := fn.(type) {
		case SuiteStartedFunc:
			b.OnSuiteStarted(f)
			return nil
		case func([]types.TestSummary) error:
			b.OnSuiteStarted(f)
			return nil
		}
	case TestStarted:
		switch f := fn.(type) {
		case TestStartedFunc:
			b.OnTestStarted(f)
			return nil
		case func(*types.TestCase) error:
			b.OnTestStarted(f)
			return nil
		}
	case TestFinished:
		switch f := fn.(type) {
		case TestFinishedFunc:
			b.OnTestFinished(f)
			return nil
		case func(*types.CompletedTest) error:
			b.OnTestFinished(f)
			return nil
		}
	case SuiteFinished:
		switch f := fn.(type) {
		case SuiteFinishedFunc:
			b.OnSuiteFinished(f)
			return nil
		case func([]*types.CompletedTest, time.Duration) error:
			b.OnSuiteFinished(f)
			return nil
		}
	default:
		return fmt.Errorf("unknown event %q", ev)
	}
	return fmt.Errorf("subscriber of type %T does not match event %q", fn, ev)
}

// SubscribersFor returns a snapshot of the subscriber list of ev.
func (b *Bus) SubscribersFor(ev Event) []any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []any
	switch ev {
	case SuiteStarted:
		for _, fn := range b.suiteStarted {
			out = append(out, fn)
		}
	case TestStarted:
		for _, fn := range b.testStarted {
			out = append(out, fn)
		}
	case TestFinished:
		for _, fn := range b.testFinished {
			out = append(out, fn)
		}
	case SuiteFinished:
		for _, fn := range b.suiteFinished {
			out = append(out, fn)
		}
	}
	return out
}

// Len returns the number of subscribers attached to ev.
func (b *Bus) Len(ev Event) int {
	return len(b.SubscribersFor(ev))
}

// Reset drops every subscriber.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suiteStarted = nil
	b.testStarted = nil
	b.testFinished = nil
	b.suiteFinished = nil
}

// PublishSuiteStarted calls the suiteStarted subscribers in order and stops at the
// first error.
func (b *Bus) PublishSuiteStarted(tests []types.TestSummary) error {
	b.mu.RLock()
	subs := slices.Clone(b.suiteStarted)
	b.mu.RUnlock()
	for _, fn := range subs {
		if err := fn(tests); err != nil {
			return fmt.Errorf("%s subscriber: %w", SuiteStarted, err)
		}
	}
	return nil
}

// PublishTestStarted calls the testStarted subscribers in order and stops at the
// first error.
func (b *Bus) PublishTestStarted(test *types.TestCase) error {
	b.mu.RLock()
	subs := slices.Clone(b.testStarted)
	b.mu.RUnlock()
	for _, fn := range subs {
		if err := fn(test); err != nil {
			return fmt.Errorf("%s subscriber: %w", TestStarted, err)
		}
	}
	return nil
}

// PublishTestFinished calls the testFinished subscribers in order and stops at the
// first error.
func (b *Bus) PublishTestFinished(result *types.CompletedTest) error {
	b.mu.RLock()
	subs := slices.Clone(b.testFinished)
	b.mu.RUnlock()
	for _, fn := range subs {
		if err := fn(result); err != nil {
			return fmt.Errorf("%s subscriber: %w", TestFinished, err)
		}
	}
	return nil
}

// PublishSuiteFinished calls the suiteFinished subscribers in order and stops at the
// first error.
func (b *Bus) PublishSuiteFinished(results []*types.CompletedTest, elapsed time.Duration) error {
	b.mu.RLock()
	subs := slices.Clone(b.suiteFinished)
	b.mu.RUnlock()
	for _, fn := range subs {
		if err := fn(results, elapsed); err != nil {
			return fmt.Errorf("%s subscriber: %w", SuiteFinished, err)
		}
	}
	return nil
}
