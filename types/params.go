package types

import "maps"

// ErrorParam is the parameter under which after-each hooks receive the error
// recorded for the current test, if any.
const ErrorParam = "error"

// Params are named arguments passed to hooks and injected into test bodies.
type Params map[string]any

// Get returns the value for key, or nil when absent.
func (p Params) Get(key string) any {
	return p[key]
}

// String returns the value for key as a string, or "" when absent or not a string.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the value for key as an int, or 0 when absent or not an int.
func (p Params) Int(key string) int {
	i, _ := p[key].(int)
	return i
}

// Err returns the error recorded under ErrorParam.
func (p Params) Err() error {
	err, _ := p[ErrorParam].(error)
	return err
}

// Clone returns a shallow copy. The copy of a nil Params is an empty Params.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	return out
}
