package suite

import (
	"github.com/ethereum-optimism/infra/op-theorem/failure"
	"github.com/ethereum-optimism/infra/op-theorem/state"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// RunState is a state of the suite run state machine.
type RunState int

const (
	NotStarted RunState = iota
	RunningBeforeAll
	Aborted
	RunningTests
	RunningAfterAll
	AfterAllFailed
	Completed
	// Halted means the run was stopped by a fatal error or a failing subscriber and
	// returned no results.
	Halted
)

func (s RunState) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case RunningBeforeAll:
		return "running-before-all"
	case Aborted:
		return "aborted"
	case RunningTests:
		return "running-tests"
	case RunningAfterAll:
		return "running-after-all"
	case AfterAllFailed:
		return "after-all-failed"
	case Completed:
		return "completed"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == Aborted || s == AfterAllFailed || s == Completed || s == Halted
}

// Run executes the suite and returns one result per declared test, in declaration order.
//
// Errors from hooks and test bodies are recorded on the results. A non-nil error is
// returned only for a fatal error (see failure.Classifier) or when a testFinished or
// testStarted subscriber fails; the results are discarded and the suite ends in Halted.
func (s *Suite) Run() ([]*types.CompletedTest, error) {
	results, err := s.run()
	if err != nil {
		s.state = Halted
	}
	return results, err
}

func (s *Suite) run() ([]*types.CompletedTest, error) {
	s.state = NotStarted
	if len(s.tests) == 0 {
		s.state = Completed
		return []*types.CompletedTest{}, nil
	}

	log := s.log.New("suite", s.name)
	log.Info("Running suite", "tests", len(s.tests))

	inst := types.NewInstance(s.name, s.fixtures)

	s.state = RunningBeforeAll
	if err := s.classifier.Classify(s.beforeAll.Run(inst, nil)); err != nil {
		if failure.IsFatal(err) {
			return nil, err
		}
		log.Warn("Before-all hook failed, skipping suite", "err", err)
		results, err := s.abort(inst, err)
		inst.ResetFixtures(types.ScopeSuite)
		s.state = Aborted
		return results, err
	}

	closing := inst.Clone()

	s.state = RunningTests
	streaming := s.afterAll.Empty()
	results := make([]*types.CompletedTest, 0, len(s.tests))
	for _, tc := range s.tests {
		result, err := s.runTest(inst, tc)
		if err != nil {
			return nil, err
		}
		if result.Failed() {
			log.Warn("Test failed", "test", tc.Name(), "err", result.Failure)
		} else {
			log.Debug("Test passed", "test", tc.Name(), "duration", result.Duration)
		}
		results = append(results, result)
		if streaming {
			if err := s.events.PublishTestFinished(result); err != nil {
				return nil, err
			}
		}
	}

	s.state = RunningAfterAll
	afterErr := s.classifier.Classify(s.afterAll.ReverseRun(closing, nil))
	closing.ResetFixtures(types.ScopeSuite)
	if failure.IsFatal(afterErr) {
		return nil, afterErr
	}

	if afterErr != nil {
		log.Warn("After-all hook failed, failing every test", "err", afterErr)
		for _, result := range results {
			result.Failure = afterErr
			result.Notary = closing.State().Dump()
			if err := s.events.PublishTestFinished(result); err != nil {
				return nil, err
			}
		}
		s.state = AfterAllFailed
		return results, nil
	}

	if !streaming {
		for _, result := range results {
			result.Notary = state.FromMap(result.Notary).Merge(closing.State()).Dump()
			if err := s.events.PublishTestFinished(result); err != nil {
				return nil, err
			}
		}
	}

	log.Info("Suite finished", "tests", len(results), "failed", countFailed(results))
	s.state = Completed
	return results, nil
}

// abort builds the results of a suite whose before-all hooks failed. No test has run.
func (s *Suite) abort(inst *types.Instance, cause error) ([]*types.CompletedTest, error) {
	results := make([]*types.CompletedTest, 0, len(s.tests))
	for _, tc := range s.tests {
		result := &types.CompletedTest{
			Test:    tc,
			Failure: cause,
			Notary:  inst.State().Dump(),
		}
		results = append(results, result)
		if err := s.events.PublishTestFinished(result); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// runTest runs one test on a fresh copy of inst. Only the first error of the
// before-each hooks, the body and the after-each hooks is kept.
func (s *Suite) runTest(inst *types.Instance, tc *types.TestCase) (*types.CompletedTest, error) {
	start := s.clock.Now()
	if err := s.events.PublishTestStarted(tc); err != nil {
		return nil, err
	}

	working := inst.Clone().WithCurrent(tc)

	var testErr error
	record := func(err error) error {
		err = s.classifier.Classify(err)
		if failure.IsFatal(err) {
			return err
		}
		if testErr == nil {
			testErr = err
		}
		return nil
	}

	if err := record(s.beforeEach.Run(working, nil)); err != nil {
		return nil, err
	}
	if testErr == nil {
		if err := record(s.around.Run(tc, working, s.classifier, nil)); err != nil {
			return nil, err
		}
	}

	params := types.Params{}
	if testErr != nil {
		params[types.ErrorParam] = testErr
	}
	if err := record(s.afterEach.ReverseRun(working, params)); err != nil {
		return nil, err
	}

	notary := working.State().Merge(tc.Notary()).Dump()
	working.ResetFixtures(types.ScopeTest)

	return &types.CompletedTest{
		Test:     tc,
		Failure:  testErr,
		Duration: s.clock.Since(start),
		Executed: true,
		Notary:   notary,
	}, nil
}

func countFailed(results []*types.CompletedTest) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
