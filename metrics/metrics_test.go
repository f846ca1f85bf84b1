package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-theorem/events"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("test_error"))
	RecordError("test_error")
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("test_error")))

	RecordErrorDetails("ignored", nil)
	RecordErrorDetails("healthz", errors.New("address in use"))
	assert.Equal(t, 1.0, testutil.ToFloat64(errorsTotal.WithLabelValues("healthz.address_in_use")))
}

func TestRecorder(t *testing.T) {
	bus := events.NewBus()
	recorder := NewRecorder("metrics-run-1")
	recorder.Subscribe(bus)

	pass := &types.CompletedTest{Test: types.NewTestCase("a", "MetricsSuite", nil), Executed: true, Duration: time.Millisecond}
	fail := &types.CompletedTest{Test: types.NewTestCase("b", "MetricsSuite", nil), Failure: errors.New("x")}

	require.NoError(t, bus.PublishTestFinished(pass))
	require.NoError(t, bus.PublishTestFinished(fail))
	require.NoError(t, bus.PublishSuiteFinished([]*types.CompletedTest{pass, fail}, 2*time.Second))

	assert.Equal(t, 1.0, testutil.ToFloat64(testsTotal.WithLabelValues("metrics-run-1", "MetricsSuite", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(testsTotal.WithLabelValues("metrics-run-1", "MetricsSuite", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(runResults.WithLabelValues("metrics-run-1", "fail")))
	assert.Equal(t, 2.0, testutil.ToFloat64(runTestTotal.WithLabelValues("metrics-run-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(runTestFailed.WithLabelValues("metrics-run-1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(runDuration.WithLabelValues("metrics-run-1")))

	recorder.SetRunID("metrics-run-2")
	assert.Equal(t, "metrics-run-2", recorder.RunID())
	require.NoError(t, bus.PublishTestFinished(pass))
	assert.Equal(t, 1.0, testutil.ToFloat64(testsTotal.WithLabelValues("metrics-run-2", "MetricsSuite", "pass")))
}
