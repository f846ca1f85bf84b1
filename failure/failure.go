// Package failure classifies errors raised by hooks and test bodies.
//
// Errors returned from hooks and test bodies are application failures: they are
// captured on the completed test and the run continues. Errors the Classifier marks
// as fatal abort the whole run and surface as a *FatalError.
package failure

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Failure is an expected failure raised by test logic or an assertion.
type Failure struct {
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Cause)
	}
	return f.Message
}

// Unwrap implements the errors.Unwrap interface
func (f *Failure) Unwrap() error {
	return f.Cause
}

// New creates a Failure with the given message.
func New(message string) *Failure {
	return &Failure{Message: message}
}

// Failf creates a Failure with a formatted message.
func Failf(format string, args ...any) *Failure {
	return &Failure{Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err as a Failure. It returns nil when err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Failure{Message: message, Cause: err}
}

// PanicError is a panic recovered from a hook or test body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// FatalError wraps an error that must terminate the run.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal checks if the error is or wraps a FatalError
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return err != nil && errors.As(err, &fatalErr)
}

// Call runs fn and converts a panic into a *PanicError.
func Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Classifier decides which errors are fatal to a run.
type Classifier struct {
	mu         sync.RWMutex
	sentinels  []error
	predicates []func(error) bool

	// PanicsAreFatal makes recovered panics abort the run instead of failing the test.
	PanicsAreFatal bool
}

// Default is the process-wide classifier used by suites that are not given one.
var Default = NewClassifier()

// NewClassifier creates a classifier that treats every error as an application failure.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// RegisterFatal marks errors matching any of errs (via errors.Is) as fatal.
func (c *Classifier) RegisterFatal(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentinels = append(c.sentinels, errs...)
}

// RegisterFatalFunc marks errors for which fn returns true as fatal.
func (c *Classifier) RegisterFatalFunc(fn func(error) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.predicates = append(c.predicates, fn)
}

// Fatal reports whether err must terminate the run.
func (c *Classifier) Fatal(err error) bool {
	if err == nil {
		return false
	}
	if IsFatal(err) {
		return true
	}
	var panicErr *PanicError
	if c.PanicsAreFatal && errors.As(err, &panicErr) {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sentinel := range c.sentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	for _, fn := range c.predicates {
		if fn(err) {
			return true
		}
	}
	return false
}

// Classify returns err unchanged when it is an application failure and wraps it in a
// *FatalError otherwise.
func (c *Classifier) Classify(err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	if c.Fatal(err) {
		return &FatalError{Err: err}
	}
	return err
}
