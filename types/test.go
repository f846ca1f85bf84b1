package types

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ethereum-optimism/infra/op-theorem/state"
)

// TestStatus represents the outcome of a completed test
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
)

// Metadata is the tag set and free-form labels attached to a test.
type Metadata struct {
	Tags   []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// HasAnyTag reports whether the metadata carries at least one of tags.
func (m Metadata) HasAnyTag(tags []string) bool {
	for _, tag := range tags {
		if slices.Contains(m.Tags, tag) {
			return true
		}
	}
	return false
}

func (m Metadata) clone() Metadata {
	return Metadata{
		Tags:   slices.Clone(m.Tags),
		Labels: maps.Clone(m.Labels),
	}
}

// Filter narrows the tests of registered suites by tag.
type Filter struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Empty reports whether the filter selects everything.
func (f Filter) Empty() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}

// Keep reports whether a test with the given metadata survives the filter.
// Include is applied first, then Exclude rejects from what remains.
func (f Filter) Keep(m Metadata) bool {
	if len(f.Include) > 0 && !m.HasAnyTag(f.Include) {
		return false
	}
	if len(f.Exclude) > 0 && m.HasAnyTag(f.Exclude) {
		return false
	}
	return true
}

// Body is the function run for a test. It receives the working suite instance and
// the test's parameters.
type Body func(inst *Instance, params Params) error

// TestOption configures a TestCase at declaration time.
type TestOption func(*TestCase)

// WithTags adds tags to the test metadata.
func WithTags(tags ...string) TestOption {
	return func(tc *TestCase) {
		tc.metadata.Tags = append(tc.metadata.Tags, tags...)
	}
}

// WithLabel sets a free-form label on the test metadata.
func WithLabel(key, value string) TestOption {
	return func(tc *TestCase) {
		if tc.metadata.Labels == nil {
			tc.metadata.Labels = make(map[string]string)
		}
		tc.metadata.Labels[key] = value
	}
}

// WithParams sets the named arguments injected into the test body.
func WithParams(params Params) TestOption {
	return func(tc *TestCase) {
		maps.Copy(tc.params, params)
	}
}

// TestCase is one declared test. Only its own notary store changes after construction.
type TestCase struct {
	name      string
	namespace string
	params    Params
	metadata  Metadata
	body      Body
	notary    *state.Store
}

// NewTestCase declares a test named name owned by the suite namespace.
func NewTestCase(name, namespace string, body Body, opts ...TestOption) *TestCase {
	tc := &TestCase{
		name:      name,
		namespace: namespace,
		params:    Params{},
		body:      body,
		notary:    state.New(),
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// Name returns the test name.
func (tc *TestCase) Name() string {
	return tc.name
}

// Namespace returns the qualified name of the owning suite.
func (tc *TestCase) Namespace() string {
	return tc.namespace
}

// FullName returns the namespace and name joined by a space.
func (tc *TestCase) FullName() string {
	if tc.namespace == "" {
		return tc.name
	}
	return fmt.Sprintf("%s %s", tc.namespace, tc.name)
}

// Params returns a copy of the test parameters.
func (tc *TestCase) Params() Params {
	return tc.params.Clone()
}

// Metadata returns a copy of the test metadata.
func (tc *TestCase) Metadata() Metadata {
	return tc.metadata.clone()
}

// Summary returns the name and metadata published when a run starts.
func (tc *TestCase) Summary() TestSummary {
	return TestSummary{Name: tc.name, Namespace: tc.namespace, Metadata: tc.Metadata()}
}

// Notary returns the test's own state store.
func (tc *TestCase) Notary() *state.Store {
	return tc.notary
}

// Notate passes the test's own state store to fn.
func (tc *TestCase) Notate(fn func(*state.Store)) {
	fn(tc.notary)
}

// Run executes the test body against inst.
func (tc *TestCase) Run(inst *Instance) error {
	if tc.body == nil {
		return fmt.Errorf("test %q has no body", tc.FullName())
	}
	return tc.body(inst, tc.Params())
}

// TestSummary identifies a test in the suite-started event.
type TestSummary struct {
	Name      string   `json:"name"`
	Namespace string   `json:"namespace"`
	Metadata  Metadata `json:"metadata"`
}

// CompletedTest is the result of running one TestCase.
type CompletedTest struct {
	Test     *TestCase
	Failure  error
	Duration time.Duration
	// Executed is false when the test never ran because the before-all hooks failed.
	Executed bool
	// Notary is the merged state snapshot of the executing instance and the test.
	Notary map[string]any
}

// Failed reports whether the test has a failure.
func (ct *CompletedTest) Failed() bool {
	return ct.Failure != nil
}

// Status maps the failure to a TestStatus.
func (ct *CompletedTest) Status() TestStatus {
	if ct.Failed() {
		return TestStatusFail
	}
	return TestStatusPass
}

// Name returns the test name.
func (ct *CompletedTest) Name() string {
	return ct.Test.Name()
}

// FullName returns the qualified test name.
func (ct *CompletedTest) FullName() string {
	return ct.Test.FullName()
}

// AnyFailed reports whether at least one result failed.
func AnyFailed(results []*CompletedTest) bool {
	return slices.ContainsFunc(results, (*CompletedTest).Failed)
}
