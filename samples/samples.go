// Package samples registers a handful of demonstration suites with the default
// registry. Import it for its side effects.
package samples

import (
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-theorem/failure"
	"github.com/ethereum-optimism/infra/op-theorem/hooks"
	"github.com/ethereum-optimism/infra/op-theorem/registry"
	"github.com/ethereum-optimism/infra/op-theorem/state"
	"github.com/ethereum-optimism/infra/op-theorem/suite"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

// Stack is a minimal LIFO used as the subject of the sample suites.
type Stack struct {
	items []int
}

func (s *Stack) Push(v int) { s.items = append(s.items, v) }

func (s *Stack) Pop() (int, error) {
	if len(s.items) == 0 {
		return 0, fmt.Errorf("pop from empty stack")
	}
	v := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return v, nil
}

func (s *Stack) Len() int { return len(s.items) }

// Collection runs against any type that can report its length after n pushes.
var Collection = suite.NewExperiment("collection", func(e *suite.Experiment) {
	e.Test("grows by one per push", func(inst *types.Instance, params types.Params) error {
		st := inst.MustFixture("stack").(*Stack)
		before, pushes := st.Len(), params.Int("pushes")
		for i := 0; i < pushes; i++ {
			st.Push(i)
		}
		return failure.Equal(before+pushes, st.Len())
	}, types.WithTags("fast"))
	e.Test("drains back to empty", func(inst *types.Instance, params types.Params) error {
		st := inst.MustFixture("stack").(*Stack)
		for i := 0; i < params.Int("pushes"); i++ {
			st.Push(i)
		}
		for st.Len() > 0 {
			if _, err := st.Pop(); err != nil {
				return err
			}
		}
		return failure.Equal(0, st.Len())
	}, types.WithTags("fast"))
})

// StackSuite exercises Stack with per-test fixtures and state written by hooks.
var StackSuite = registry.Register(suite.New("Stack", func(d *suite.Declarer) {
	d.Let("stack", func(*types.Instance) (any, error) {
		return &Stack{}, nil
	})

	d.BeforeAll(func(inst *types.Instance, _ types.Params) error {
		inst.State().Write("seed", 42)
		return nil
	})
	d.BeforeEach(func(inst *types.Instance, _ types.Params) error {
		inst.MustFixture("stack").(*Stack).Push(inst.State().Read("seed").(int))
		return nil
	})
	d.AfterEach(func(inst *types.Instance, params types.Params) error {
		if err := params.Err(); err != nil {
			inst.Notate(func(s *state.Store) { s.Write("failed_with", err.Error()) })
		}
		return nil
	})

	d.Test("pops the seed pushed before each test", func(inst *types.Instance, _ types.Params) error {
		v, err := inst.MustFixture("stack").(*Stack).Pop()
		if err != nil {
			return err
		}
		return failure.Equal(42, v)
	}, types.WithTags("fast"))
	d.Test("is empty after popping the seed", func(inst *types.Instance, _ types.Params) error {
		st := inst.MustFixture("stack").(*Stack)
		if _, err := st.Pop(); err != nil {
			return err
		}
		_, err := st.Pop()
		return failure.True(err != nil, "second pop should fail")
	}, types.WithTags("fast"))

	d.Experiments(Collection, types.Params{"pushes": 3})
}))

// BoundedStackSuite inherits the hooks and fixtures of StackSuite and timestamps
// every test through an around hook.
var BoundedStackSuite = registry.Register(StackSuite.Derive("BoundedStack", func(d *suite.Declarer) {
	d.LetAll("limit", func(*types.Instance) (any, error) {
		return 8, nil
	})
	d.Around(func(inst *types.Instance, test hooks.Runnable) error {
		inst.Notate(func(s *state.Store) { s.Write("wrapped", test.Name()) })
		return test.Run()
	})

	d.Test("stays within the limit", func(inst *types.Instance, _ types.Params) error {
		st := inst.MustFixture("stack").(*Stack)
		limit := inst.MustFixture("limit").(int)
		for st.Len() < limit {
			st.Push(0)
		}
		return failure.Equal(limit, st.Len())
	}, types.WithTags("slow"))

	d.Experiments(Collection, types.Params{"pushes": 8})
}))

// WordsSuite shows tests annotating their own results.
var WordsSuite = registry.Register(suite.New("Words", func(d *suite.Declarer) {
	d.BeforeEach(func(inst *types.Instance, _ types.Params) error {
		inst.State().Write("sentence", "the quick brown fox")
		return nil
	})

	d.Test("splits on spaces", func(inst *types.Instance, _ types.Params) error {
		words := strings.Fields(inst.State().Read("sentence").(string))
		inst.Current().Notate(func(s *state.Store) { s.Write("words", len(words)) })
		return failure.Equal(4, len(words))
	}, types.WithTags("fast"), types.WithLabel("area", "text"))
	d.Test("upper-cases", func(inst *types.Instance, _ types.Params) error {
		return failure.Equal("THE QUICK BROWN FOX", strings.ToUpper(inst.State().Read("sentence").(string)))
	}, types.WithTags("fast"), types.WithLabel("area", "text"))
}))
