package suite

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/ethereum-optimism/infra/op-theorem/failure"
	"github.com/ethereum-optimism/infra/op-theorem/hooks"
	"github.com/ethereum-optimism/infra/op-theorem/state"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

func noop(*types.Instance, types.Params) error { return nil }

func record(calls *[]string, name string) hooks.Hook {
	return func(*types.Instance, types.Params) error {
		*calls = append(*calls, name)
		return nil
	}
}

func TestRunEmptySuite(t *testing.T) {
	ran := false
	s := New("Empty", func(d *Declarer) {
		d.BeforeAll(func(*types.Instance, types.Params) error {
			ran = true
			return nil
		})
	})

	results, err := s.Run()
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.False(t, ran, "hooks do not run for a suite without tests")
	assert.Equal(t, Completed, s.State())
}

func TestRunStateIsolation(t *testing.T) {
	check := func(inst *types.Instance, _ types.Params) error {
		if err := failure.Equal(1, inst.State().Read("x"), "x"); err != nil {
			return err
		}
		inst.State().Write("x", 2)
		return nil
	}
	s := New("Isolation", func(d *Declarer) {
		d.BeforeAll(func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("x", 1)
			return nil
		})
		d.Test("first", check)
		d.Test("second", check)
	})

	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Failure, r.Name())
		assert.Equal(t, 2, r.Notary["x"])
	}
}

func TestRunAfterEachReverseOrder(t *testing.T) {
	s := New("AfterEach", func(d *Declarer) {
		d.AfterEach(func(inst *types.Instance, _ types.Params) error {
			return failure.Equal("foo", inst.State().Read("y"))
		})
		d.AfterEach(func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("y", "foo")
			return nil
		})
		d.Test("passes", noop)
	})

	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Failure)
}

func TestRunClosingInstanceIsolation(t *testing.T) {
	var afterAllErr error
	s := New("Closing", func(d *Declarer) {
		d.AfterAll(func(inst *types.Instance, _ types.Params) error {
			afterAllErr = failure.NotEqual("set-by-test", inst.State().Read("z"))
			return afterAllErr
		})
		d.Test("sets z", func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("z", "set-by-test")
			return nil
		})
	})

	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, afterAllErr)
	assert.NoError(t, results[0].Failure)
	assert.Equal(t, Completed, s.State())
}

func TestRunHookOrder(t *testing.T) {
	var calls []string
	s := New("Order", func(d *Declarer) {
		d.BeforeAll(record(&calls, "before-all-1"))
		d.BeforeAll(record(&calls, "before-all-2"))
		d.BeforeEach(record(&calls, "before-each-1"))
		d.BeforeEach(record(&calls, "before-each-2"))
		d.AfterEach(record(&calls, "after-each-1"))
		d.AfterEach(record(&calls, "after-each-2"))
		d.AfterAll(record(&calls, "after-all-1"))
		d.AfterAll(record(&calls, "after-all-2"))
		d.Test("t", func(*types.Instance, types.Params) error {
			calls = append(calls, "body")
			return nil
		})
	})

	_, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"before-all-1", "before-all-2",
		"before-each-1", "before-each-2",
		"body",
		"after-each-2", "after-each-1",
		"after-all-2", "after-all-1",
	}, calls)
}

func TestRunInheritedHookOrder(t *testing.T) {
	var calls []string
	parent := New("Parent", func(d *Declarer) {
		d.BeforeAll(record(&calls, "parent-before-all"))
		d.BeforeEach(record(&calls, "parent-before-each"))
		d.AfterEach(record(&calls, "parent-after-each"))
		d.AfterAll(record(&calls, "parent-after-all"))
	})
	child := parent.Derive("Child", func(d *Declarer) {
		d.BeforeAll(record(&calls, "child-before-all"))
		d.BeforeEach(record(&calls, "child-before-each"))
		d.AfterEach(record(&calls, "child-after-each"))
		d.AfterAll(record(&calls, "child-after-all"))
		d.Test("t", func(*types.Instance, types.Params) error {
			calls = append(calls, "body")
			return nil
		})
	})

	// declared after derivation, must not reach the child
	parent.Declare(func(d *Declarer) {
		d.BeforeEach(record(&calls, "late-parent-hook"))
	})

	results, err := child.Run()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{
		"parent-before-all", "child-before-all",
		"parent-before-each", "child-before-each",
		"body",
		"child-after-each", "parent-after-each",
		"child-after-all", "parent-after-all",
	}, calls)
	assert.Same(t, parent, child.Parent())
	assert.Empty(t, parent.Tests(), "tests are not inherited upwards")
	assert.Equal(t, "Child t", results[0].FullName())
}

func TestRunDerivedDoesNotInheritTests(t *testing.T) {
	parent := New("Parent", func(d *Declarer) {
		d.Test("parent test", noop)
	})
	child := parent.Derive("Child", nil)
	assert.Empty(t, child.Tests())
	assert.Len(t, parent.Tests(), 1)
}

func TestRunBeforeAllFailure(t *testing.T) {
	boom := errors.New("no network")
	bodies := 0
	afterAll := false
	var published []*types.CompletedTest

	s := New("Aborts", func(d *Declarer) {
		d.BeforeAll(func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("partial", true)
			return boom
		})
		d.AfterAll(func(*types.Instance, types.Params) error {
			afterAll = true
			return nil
		})
		for i := range 3 {
			d.Test(fmt.Sprintf("test %d", i), func(*types.Instance, types.Params) error {
				bodies++
				return nil
			})
		}
	})
	s.Events().OnTestFinished(func(r *types.CompletedTest) error {
		published = append(published, r)
		return nil
	})

	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.ErrorIs(t, r.Failure, boom)
		assert.False(t, r.Executed)
		assert.Equal(t, true, r.Notary["partial"])
		assert.Equal(t, fmt.Sprintf("test %d", i), r.Name())
	}
	assert.Zero(t, bodies)
	assert.False(t, afterAll)
	assert.Equal(t, results, published)
	assert.Equal(t, Aborted, s.State())
}

func TestRunAfterAllFailure(t *testing.T) {
	boom := errors.New("teardown failed")
	s := New("AfterAllFails", func(d *Declarer) {
		d.BeforeAll(func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("setup", "done")
			return nil
		})
		d.AfterAll(func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("teardown", "attempted")
			return boom
		})
		d.Test("passes", func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("test-only", 1)
			return nil
		})
		d.Test("fails", func(*types.Instance, types.Params) error {
			return failure.New("own failure")
		})
	})

	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Failure, boom, r.Name())
		assert.Equal(t, map[string]any{"setup": "done", "teardown": "attempted"}, r.Notary)
	}
	assert.True(t, types.AnyFailed(results))
	assert.Equal(t, AfterAllFailed, s.State())
}

func TestRunFirstErrorWins(t *testing.T) {
	beforeEachErr := errors.New("before-each")
	bodyErr := errors.New("body")
	afterEachErr := errors.New("after-each")

	tests := []struct {
		name       string
		beforeEach error
		body       error
		afterEach  error
		want       error
		wantBody   bool
	}{
		{name: "all pass", wantBody: true},
		{name: "before-each fails", beforeEach: beforeEachErr, body: bodyErr, afterEach: afterEachErr, want: beforeEachErr},
		{name: "body fails", body: bodyErr, afterEach: afterEachErr, want: bodyErr, wantBody: true},
		{name: "after-each fails", afterEach: afterEachErr, want: afterEachErr, wantBody: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodyRan := false
			var seenErr error
			s := New("FirstError", func(d *Declarer) {
				d.BeforeEach(func(*types.Instance, types.Params) error { return tt.beforeEach })
				d.AfterEach(func(*types.Instance, types.Params) error { return tt.afterEach })
				d.AfterEach(func(_ *types.Instance, params types.Params) error {
					seenErr = params.Err()
					return nil
				})
				d.Test("t", func(*types.Instance, types.Params) error {
					bodyRan = true
					return tt.body
				})
			})

			results, err := s.Run()
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, tt.want, results[0].Failure)
			assert.Equal(t, tt.wantBody, bodyRan)
			if tt.want == afterEachErr {
				assert.NoError(t, seenErr, "after-each sees only errors recorded before it ran")
			} else {
				assert.Equal(t, tt.want, seenErr)
			}
		})
	}
}

func TestRunFailureIsolation(t *testing.T) {
	s := New("Isolation", func(d *Declarer) {
		d.Test("panics", func(*types.Instance, types.Params) error { panic("kaboom") })
		d.Test("fails", func(*types.Instance, types.Params) error { return failure.Failf("want %d", 1) })
		d.Test("passes", noop)
	})

	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 3)

	var panicErr *failure.PanicError
	require.ErrorAs(t, results[0].Failure, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.EqualError(t, results[1].Failure, "want 1")
	assert.NoError(t, results[2].Failure)
	assert.Equal(t, types.TestStatusPass, results[2].Status())
}

func TestRunPublicationOrder(t *testing.T) {
	tests := []struct {
		name     string
		afterAll bool
		want     []string
	}{
		{
			name: "streaming without after-all",
			want: []string{"started:a", "finished:a", "started:b", "finished:b"},
		},
		{
			name:     "buffered with after-all",
			afterAll: true,
			want:     []string{"started:a", "started:b", "after-all", "finished:a", "finished:b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			s := New("Publication", func(d *Declarer) {
				if tt.afterAll {
					d.AfterAll(record(&calls, "after-all"))
				}
				d.Test("a", noop)
				d.Test("b", noop)
			})
			s.Events().OnTestStarted(func(tc *types.TestCase) error {
				calls = append(calls, "started:"+tc.Name())
				return nil
			})
			s.Events().OnTestFinished(func(r *types.CompletedTest) error {
				calls = append(calls, "finished:"+r.Name())
				return nil
			})

			_, err := s.Run()
			require.NoError(t, err)
			assert.Equal(t, tt.want, calls)
		})
	}
}

func TestRunNotary(t *testing.T) {
	s := New("Notary", func(d *Declarer) {
		d.BeforeAll(func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("owner", "before-all")
			return nil
		})
		d.AfterAll(func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("closed", true)
			return nil
		})
		d.Test("writes", func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("owner", "test")
			inst.State().Write("shared", "instance")
			inst.Current().Notate(func(n *state.Store) {
				n.Write("shared", "test")
			})
			return nil
		})
	})

	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{
		"owner":  "before-all",
		"shared": "test",
		"closed": true,
	}, results[0].Notary)
}

func TestRunStreamingNotary(t *testing.T) {
	s := New("Notary", func(d *Declarer) {
		d.Test("writes", func(inst *types.Instance, _ types.Params) error {
			inst.State().Write("a", 1)
			inst.Current().Notate(func(n *state.Store) {
				n.Write("a", 2)
				n.Write("b", 3)
			})
			return nil
		})
	})

	results, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 2, "b": 3}, results[0].Notary)
}

func TestRunDuration(t *testing.T) {
	fake := testingclock.NewFakeClock(time.Unix(1700000000, 0))
	s := New("Timed", func(d *Declarer) {
		d.BeforeEach(func(*types.Instance, types.Params) error {
			fake.Step(time.Second)
			return nil
		})
		d.Test("slow", func(*types.Instance, types.Params) error {
			fake.Step(2 * time.Second)
			return nil
		})
		d.Test("fast", noop)
	}, WithClock(fake))

	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 3*time.Second, results[0].Duration)
	assert.Equal(t, time.Second, results[1].Duration)
}

func TestRunWrapHook(t *testing.T) {
	var calls []string
	s := New("Wrapped", func(d *Declarer) {
		d.BeforeEach(record(&calls, "before-each"))
		d.AfterEach(record(&calls, "after-each"))
		d.Around(func(_ *types.Instance, test hooks.Runnable) error {
			calls = append(calls, "around:"+test.Name())
			if test.Name() == "skipped" {
				return nil
			}
			return test.Run()
		})
		d.Test("runs", func(*types.Instance, types.Params) error {
			calls = append(calls, "body")
			return nil
		})
		d.Test("skipped", func(*types.Instance, types.Params) error {
			calls = append(calls, "never")
			return nil
		})
	})

	results, err := s.Run()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{
		"before-each", "around:runs", "body", "after-each",
		"before-each", "around:skipped", "after-each",
	}, calls)
}

func TestRunFatalErrors(t *testing.T) {
	fatal := errors.New("out of disk")
	newClassifier := func() *failure.Classifier {
		c := failure.NewClassifier()
		c.RegisterFatal(fatal)
		return c
	}

	tests := []struct {
		name    string
		declare func(d *Declarer)
		panics  bool
	}{
		{
			name: "before-all",
			declare: func(d *Declarer) {
				d.BeforeAll(func(*types.Instance, types.Params) error { return fatal })
				d.Test("t", noop)
			},
		},
		{
			name: "before-each",
			declare: func(d *Declarer) {
				d.BeforeEach(func(*types.Instance, types.Params) error { return fmt.Errorf("wrapped: %w", fatal) })
				d.Test("t", noop)
			},
		},
		{
			name: "body",
			declare: func(d *Declarer) {
				d.Test("t", func(*types.Instance, types.Params) error { return fatal })
			},
		},
		{
			name: "after-all",
			declare: func(d *Declarer) {
				d.AfterAll(func(*types.Instance, types.Params) error { return fatal })
				d.Test("t", noop)
			},
		},
		{
			name: "panic when panics are fatal",
			declare: func(d *Declarer) {
				d.Test("t", func(*types.Instance, types.Params) error { panic("boom") })
			},
			panics: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := newClassifier()
			classifier.PanicsAreFatal = tt.panics
			s := New("Fatal", tt.declare, WithClassifier(classifier))

			results, err := s.Run()
			require.Error(t, err)
			assert.True(t, failure.IsFatal(err))
			assert.Nil(t, results)
			assert.Equal(t, Halted, s.State())
		})
	}
}

func TestRunSubscriberErrorAbortsRun(t *testing.T) {
	boom := errors.New("reporter broke")
	ran := 0
	s := New("Subscriber", func(d *Declarer) {
		d.Test("a", func(*types.Instance, types.Params) error { ran++; return nil })
		d.Test("b", func(*types.Instance, types.Params) error { ran++; return nil })
	})
	s.Events().OnTestFinished(func(*types.CompletedTest) error { return boom })

	results, err := s.Run()
	require.ErrorIs(t, err, boom)
	assert.Nil(t, results)
	assert.Equal(t, 1, ran)
	assert.Equal(t, Halted, s.State())
}

func TestRunFixtures(t *testing.T) {
	perTest, perSuite := 0, 0
	var seen []string
	s := New("Fixtures", func(d *Declarer) {
		d.Let("conn", func(*types.Instance) (any, error) {
			perTest++
			return fmt.Sprintf("conn-%d", perTest), nil
		})
		d.LetAll("db", func(*types.Instance) (any, error) {
			perSuite++
			return fmt.Sprintf("db-%d", perSuite), nil
		})
		use := func(inst *types.Instance, _ types.Params) error {
			seen = append(seen, inst.MustFixture("conn").(string), inst.MustFixture("db").(string))
			// memoized within the test
			seen = append(seen, inst.MustFixture("conn").(string))
			return nil
		}
		d.Test("first", use)
		d.Test("second", use)
		d.AfterAll(func(inst *types.Instance, _ types.Params) error {
			seen = append(seen, inst.MustFixture("db").(string))
			return nil
		})
	})

	_, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"conn-1", "db-1", "conn-1",
		"conn-2", "db-1", "conn-2",
		"db-1",
	}, seen)

	// suite fixtures are resolved again on the next run
	seen = nil
	_, err = s.Run()
	require.NoError(t, err)
	assert.Equal(t, "db-2", seen[1])
}

func TestRunFixtureShadowing(t *testing.T) {
	parent := New("Parent", func(d *Declarer) {
		d.Let("name", func(*types.Instance) (any, error) { return "parent", nil })
		d.Let("kept", func(*types.Instance) (any, error) { return "from parent", nil })
	})
	var got []any
	child := parent.Derive("Child", func(d *Declarer) {
		d.Let("name", func(*types.Instance) (any, error) { return "child", nil })
		d.Test("t", func(inst *types.Instance, _ types.Params) error {
			got = append(got, inst.MustFixture("name"), inst.MustFixture("kept"))
			return nil
		})
	})

	results, err := child.Run()
	require.NoError(t, err)
	require.NoError(t, results[0].Failure)
	assert.Equal(t, []any{"child", "from parent"}, got)
}

func TestRunMissingFixtureFailsTest(t *testing.T) {
	s := New("Missing", func(d *Declarer) {
		d.Test("t", func(inst *types.Instance, _ types.Params) error {
			_, err := inst.Fixture("nope")
			return err
		})
	})

	results, err := s.Run()
	require.NoError(t, err)
	assert.ErrorContains(t, results[0].Failure, `can't find fixture "nope"`)
}

func TestRunIsRepeatable(t *testing.T) {
	s := New("Repeat", func(d *Declarer) {
		d.BeforeAll(func(inst *types.Instance, _ types.Params) error {
			inst.State().Edit("count", func(v any) any {
				n, _ := v.(int)
				return n + 1
			})
			return nil
		})
		d.Test("t", func(inst *types.Instance, _ types.Params) error {
			return failure.Equal(1, inst.State().Read("count"))
		})
	})

	for range 2 {
		results, err := s.Run()
		require.NoError(t, err)
		assert.NoError(t, results[0].Failure)
	}
}
