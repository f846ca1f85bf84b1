package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-theorem/events"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

const (
	MetricsNamespace = "theorem"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of completed tests",
	}, []string{
		"run_id",
		"suite",
		"result",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of executed tests",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		"suite",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of a run",
	}, []string{
		"run_id",
		"result",
	})

	runTestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_test_total",
		Help:      "Total number of tests in a run",
	}, []string{
		"run_id",
	})

	runTestPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_test_passed",
		Help:      "Number of passed tests in a run",
	}, []string{
		"run_id",
	})

	runTestFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_test_failed",
		Help:      "Number of failed tests in a run",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration",
		Help:      "Duration of a run in seconds",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

// RecordError increments errors_total for the given label.
func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordTest counts one completed test and, when it ran, observes its duration.
func RecordTest(runID string, result *types.CompletedTest) {
	status := result.Status()
	if !isValidResult(status) {
		log.Error("RecordTest - invalid result", "result", status)
		return
	}
	suite := result.Test.Namespace()
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"run_id", runID,
			"suite", suite,
			"test", result.Name(),
			"result", status)
	}
	testsTotal.WithLabelValues(runID, suite, string(status)).Inc()
	if result.Executed {
		testDuration.WithLabelValues(suite).Observe(result.Duration.Seconds())
	}
}

// RecordRun sets the run-level gauges of a finished run.
func RecordRun(
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	runResults.WithLabelValues(runID, result).Set(1)
	runTestTotal.WithLabelValues(runID).Add(float64(total))
	runTestPassed.WithLabelValues(runID).Add(float64(passed))
	runTestFailed.WithLabelValues(runID).Add(float64(failed))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}

// Recorder feeds the metrics from run events. The run ID label is whatever was last
// passed to SetRunID.
type Recorder struct {
	mu    sync.Mutex
	runID string
}

// NewRecorder creates a recorder labelling metrics with runID.
func NewRecorder(runID string) *Recorder {
	return &Recorder{runID: runID}
}

// SetRunID changes the run ID label of subsequent metrics.
func (r *Recorder) SetRunID(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = runID
}

// RunID returns the current run ID label.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Subscribe attaches the recorder to bus.
func (r *Recorder) Subscribe(bus *events.Bus) {
	bus.OnTestFinished(func(result *types.CompletedTest) error {
		RecordTest(r.RunID(), result)
		return nil
	})
	bus.OnSuiteFinished(func(results []*types.CompletedTest, elapsed time.Duration) error {
		passed, failed := 0, 0
		for _, res := range results {
			if res.Failed() {
				failed++
			} else {
				passed++
			}
		}
		result := string(types.TestStatusPass)
		if failed > 0 {
			result = string(types.TestStatusFail)
		}
		RecordRun(r.RunID(), result, len(results), passed, failed, elapsed)
		return nil
	})
}
