// Package hooks holds the ordered lifecycle hook chains and the single wrap hook of a suite.
package hooks

import (
	"slices"

	"github.com/ethereum-optimism/infra/op-theorem/failure"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Hook is a lifecycle callable run against a suite instance.
type Hook func(inst *types.Instance, params types.Params) error

// Chain is an ordered, appendable list of hooks.
type Chain struct {
	hooks []Hook
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Prepare appends hook to the chain.
func (c *Chain) Prepare(hook Hook) {
	c.hooks = append(c.hooks, hook)
}

// Run executes the hooks in declaration order. The first error stops the chain
// and is returned; a panic is returned as a *failure.PanicError.
func (c *Chain) Run(inst *types.Instance, params types.Params) error {
	for _, hook := range c.hooks {
		if err := call(hook, inst, params); err != nil {
			return err
		}
	}
	return nil
}

// ReverseRun executes the hooks in reverse declaration order, stopping at the first error.
func (c *Chain) ReverseRun(inst *types.Instance, params types.Params) error {
	for _, hook := range slices.Backward(c.hooks) {
		if err := call(hook, inst, params); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether the chain holds no hooks.
func (c *Chain) Empty() bool {
	return len(c.hooks) == 0
}

// Len returns the number of hooks in the chain.
func (c *Chain) Len() int {
	return len(c.hooks)
}

// Clone returns an independent chain holding the same hooks. Appending to either
// chain does not affect the other.
func (c *Chain) Clone() *Chain {
	return &Chain{hooks: slices.Clone(c.hooks)}
}

// Concat appends other's hooks after c's own.
func (c *Chain) Concat(other *Chain) {
	if other == nil {
		return
	}
	c.hooks = append(c.hooks, other.hooks...)
}

func call(hook Hook, inst *types.Instance, params types.Params) error {
	if params == nil {
		params = types.Params{}
	}
	return failure.Call(func() error {
		return hook(inst, params)
	})
}
