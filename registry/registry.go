package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ethereum-optimism/infra/op-theorem/events"
	"github.com/ethereum-optimism/infra/op-theorem/suite"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

var (
	// ErrDuplicateSuite is returned when a suite name is registered twice.
	ErrDuplicateSuite = errors.New("duplicate suite")
	// ErrAlreadyFiltered is returned when Filter is called more than once.
	ErrAlreadyFiltered = errors.New("registry already filtered")
)

// Registry is the ordered set of declared suites plus the event subscriber lists
// every registered suite publishes to.
//
// Suites are added during the declaration phase, the registry is narrowed at most
// once with Filter, and is read-only while suites run.
type Registry struct {
	config   Config
	suites   *orderedmap.OrderedMap[string, *suite.Suite]
	events   *events.Bus
	filtered bool
	mu       sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
}

// Default is the process-wide registry suites register themselves with from init.
var Default = NewRegistry(Config{})

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Registry{
		config: cfg,
		suites: orderedmap.New[string, *suite.Suite](),
		events: events.NewBus(),
	}
}

// Add registers s and points its results at the registry's subscriber lists.
func (r *Registry) Add(s *suite.Suite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.suites.Get(s.Name()); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSuite, s.Name())
	}
	s.AttachEvents(r.events)
	r.suites.Set(s.Name(), s)
	r.config.Log.Debug("Registered suite", "suite", s.Name(), "tests", len(s.Tests()))
	return nil
}

// Register adds s to the Default registry and returns it. It panics on a duplicate
// name, so it is meant for package-level declarations.
func Register(s *suite.Suite) *suite.Suite {
	if err := Default.Add(s); err != nil {
		panic(err)
	}
	return s
}

// Suites returns the registered suites in registration order.
func (r *Registry) Suites() []*suite.Suite {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*suite.Suite, 0, r.suites.Len())
	for pair := r.suites.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Suite returns the suite registered under name.
func (r *Registry) Suite(name string) (*suite.Suite, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suites.Get(name)
}

// Len returns the number of registered suites.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suites.Len()
}

// TestCount returns the number of tests across every registered suite.
func (r *Registry) TestCount() int {
	total := 0
	for _, s := range r.Suites() {
		total += len(s.Tests())
	}
	return total
}

// Filter narrows the tests of every registered suite in place: with Include set only
// tests tagged with one of its tags are kept, then tests tagged with one of the
// Exclude tags are dropped. It may be called once, before any suite runs.
func (r *Registry) Filter(filter types.Filter) (*Registry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filtered {
		return nil, ErrAlreadyFiltered
	}
	r.filtered = true

	dropped := 0
	for pair := r.suites.Oldest(); pair != nil; pair = pair.Next() {
		dropped += pair.Value.FilterTests(filter)
	}
	r.config.Log.Debug("Filtered registry", "include", filter.Include, "exclude", filter.Exclude, "dropped", dropped)
	return r, nil
}

// Filtered reports whether Filter has been applied.
func (r *Registry) Filtered() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filtered
}

// Events returns the subscriber lists shared by every registered suite.
func (r *Registry) Events() *events.Bus {
	return r.events
}

// On appends fn to the subscriber list of ev.
func (r *Registry) On(ev events.Event, fn any) error {
	return r.events.On(ev, fn)
}

// SubscribersFor returns the subscribers of ev in registration order.
func (r *Registry) SubscribersFor(ev events.Event) []any {
	return r.events.SubscribersFor(ev)
}

// OnSuiteStarted subscribes fn to the registry's suiteStarted list.
func (r *Registry) OnSuiteStarted(fn events.SuiteStartedFunc) {
	r.events.OnSuiteStarted(fn)
}

// OnTestStarted subscribes fn to the registry's testStarted list.
func (r *Registry) OnTestStarted(fn events.TestStartedFunc) {
	r.events.OnTestStarted(fn)
}

// OnTestFinished subscribes fn to the registry's testFinished list.
func (r *Registry) OnTestFinished(fn events.TestFinishedFunc) {
	r.events.OnTestFinished(fn)
}

// OnSuiteFinished subscribes fn to the registry's suiteFinished list.
func (r *Registry) OnSuiteFinished(fn events.SuiteFinishedFunc) {
	r.events.OnSuiteFinished(fn)
}

// Reset empties the registry. It exists for processes that host several independent
// runs; it must not be called while a suite is running.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suites = orderedmap.New[string, *suite.Suite]()
	r.events.Reset()
	r.filtered = false
}
