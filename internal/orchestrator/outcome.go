package orchestrator

import "time"

// Status classifies the outcome of one test case.
type Status string

const (
	// StatusPassed indicates the case executed and all validation held.
	StatusPassed Status = "PASSED"
	// StatusFailed indicates the case executed but validation rejected the
	// data, or infrastructure failed after exhausting the retry budget.
	StatusFailed Status = "FAILED"
	// StatusError indicates the case never ran: unreadable or malformed
	// definition.
	StatusError Status = "ERROR"
	// StatusSkipped indicates the case was not scheduled (fail-fast).
	StatusSkipped Status = "SKIPPED"
)

// Outcome is the immutable record of one executed test case. It is created
// once by the orchestrator and never mutated afterwards.
type Outcome struct {
	// TestID uniquely identifies this execution.
	TestID string `json:"test_id"`
	// Path is the definition file driving the case.
	Path string `json:"path"`
	// Status is the classification of the run.
	Status Status `json:"status"`
	// Duration is the wall time of the full case lifecycle.
	Duration time.Duration `json:"duration"`
	// Detail explains failures: expected/actual diffs for comparisons,
	// unmatched-error detail for error tests, the predicate text for
	// assertion failures.
	Detail string `json:"detail,omitempty"`
}

// DurationMs returns the elapsed time in milliseconds for display.
func (o Outcome) DurationMs() int64 {
	return o.Duration.Milliseconds()
}

// SuiteResult aggregates a batch run. Outcomes preserve submission order
// even though execution completes out of order.
type SuiteResult struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Outcomes  []Outcome `json:"outcomes"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Errored   int       `json:"errored"`
	Skipped   int       `json:"skipped"`
}

// Duration is the wall time of the whole batch.
func (s *SuiteResult) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Failures returns the non-passing outcomes in submission order, for the
// deferred failure rendering at batch end.
func (s *SuiteResult) Failures() []Outcome {
	var failures []Outcome
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed || o.Status == StatusError {
			failures = append(failures, o)
		}
	}
	return failures
}

// Reporter receives execution progress and the aggregated batch result.
// Implementations must tolerate CaseFinished being called concurrently from
// worker goroutines; RunFinished is called once, after all workers drain.
type Reporter interface {
	RunStarted(total, workers int)
	CaseFinished(outcome Outcome)
	RunFinished(result *SuiteResult)
}

// NopReporter discards all events. Used when no reporting sink is attached.
type NopReporter struct{}

func (NopReporter) RunStarted(total, workers int)   {}
func (NopReporter) CaseFinished(outcome Outcome)    {}
func (NopReporter) RunFinished(result *SuiteResult) {}
