package model

import "time"

// RunState is the batch runner's lifecycle state.
type RunState string

const (
	RunStateNotStarted RunState = "not-started"
	RunStateRunning    RunState = "running"
	RunStateFinished   RunState = "finished"
)

// RunStatus is the outcome recorded for a scrape run in the run ledger.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one scrape invocation as recorded in the run ledger.
type Run struct {
	ID        string     `json:"id"`
	Strategy  string     `json:"strategy"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the counters and failures of a finished run.
type RunResult struct {
	Requested      int            `json:"requested"`
	AlreadyScraped int            `json:"already_scraped"`
	Attempted      int            `json:"attempted"`
	Succeeded      int            `json:"succeeded"`
	Failed         int            `json:"failed"`
	BatchesWritten []int          `json:"batches_written,omitempty"`
	Consolidated   int            `json:"consolidated"`
	DurationMs     int64          `json:"duration_ms"`
	Failures       []FailureEntry `json:"failures,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// SuccessRate returns the fraction of attempted characters that succeeded.
func (r *RunResult) SuccessRate() float64 {
	if r == nil || r.Attempted == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Attempted)
}
