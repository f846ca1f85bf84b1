package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-theorem/events"
	"github.com/ethereum-optimism/infra/op-theorem/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Prefix of every per-run directory
	SummaryFilename    = "summary.log"
	ResultsFilename    = "results.json"
)

// FileReporter writes the results of a run to <baseDir>/testrun-<runID>/ once the
// run finishes.
type FileReporter struct {
	baseDir string
	runID   string
	log     log.Logger
}

// NewFileReporter creates a file reporter for the run runID.
func NewFileReporter(baseDir, runID string, logger log.Logger) (*FileReporter, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}
	if logger == nil {
		logger = log.New()
	}
	return &FileReporter{baseDir: baseDir, runID: runID, log: logger}, nil
}

// RunDir returns the directory the reporter writes to.
func (f *FileReporter) RunDir() string {
	return filepath.Join(f.baseDir, RunDirectoryPrefix+f.runID)
}

// Subscribe attaches the reporter to bus.
func (f *FileReporter) Subscribe(bus *events.Bus) {
	bus.OnSuiteFinished(f.Write)
}

// Write stores the summary and the JSON results of a finished run.
func (f *FileReporter) Write(results []*types.CompletedTest, elapsed time.Duration) error {
	dir := f.RunDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	summary := stripansi.Strip(Render(results, elapsed, false))
	if err := os.WriteFile(filepath.Join(dir, SummaryFilename), []byte(summary), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	report := RunReport{
		RunID:    f.runID,
		Duration: elapsed,
		Results:  make([]ResultRecord, 0, len(results)),
	}
	for _, r := range results {
		report.Results = append(report.Results, NewResultRecord(r))
		if r.Failed() {
			report.Failed++
		} else {
			report.Passed++
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ResultsFilename), data, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	f.log.Info("Wrote run results", "dir", dir, "tests", len(results))
	return nil
}

// RunReport is the content of results.json.
type RunReport struct {
	RunID    string         `json:"runID"`
	Duration time.Duration  `json:"duration"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Results  []ResultRecord `json:"results"`
}

// ResultRecord is one completed test in results.json.
type ResultRecord struct {
	Name      string           `json:"name"`
	Namespace string           `json:"namespace"`
	Status    types.TestStatus `json:"status"`
	Executed  bool             `json:"executed"`
	Duration  time.Duration    `json:"duration"`
	Error     string           `json:"error,omitempty"`
	Metadata  types.Metadata   `json:"metadata"`
	Notary    map[string]any   `json:"notary,omitempty"`
}

// NewResultRecord converts a completed test. Notary values that cannot be encoded as
// JSON are stored in their fmt %v form.
func NewResultRecord(r *types.CompletedTest) ResultRecord {
	rec := ResultRecord{
		Name:      r.Test.Name(),
		Namespace: r.Test.Namespace(),
		Status:    r.Status(),
		Executed:  r.Executed,
		Duration:  r.Duration,
		Metadata:  r.Test.Metadata(),
	}
	if r.Failure != nil {
		rec.Error = stripansi.Strip(r.Failure.Error())
	}
	if len(r.Notary) > 0 {
		rec.Notary = make(map[string]any, len(r.Notary))
		for k, v := range r.Notary {
			if _, err := json.Marshal(v); err != nil {
				v = fmt.Sprintf("%v", v)
			}
			rec.Notary[k] = v
		}
	}
	return rec
}
