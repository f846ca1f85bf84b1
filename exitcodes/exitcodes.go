// Package exitcodes defines the exit codes op-theorem terminates with.
package exitcodes

// Exit code constants used by op-theorem
//
// * Success (0): every test passed
// * TestFailure (1): at least one test failed, including tests failed by a suite's
// before-all or after-all hooks
// * RuntimeErr (2): the run could not complete, e.g. a fatal error raised by a hook,
// a failing event subscriber or invalid configuration
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
)
