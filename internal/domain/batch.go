package domain

// BatchState is the coarse lifecycle of a remote batch job.
type BatchState string

const (
	BatchPending BatchState = "pending"
	BatchRunning BatchState = "running"
	BatchEnded   BatchState = "ended"
)

// BatchOutcome is the terminal result of an ended job.
type BatchOutcome string

const (
	OutcomeSucceeded BatchOutcome = "succeeded"
	OutcomeFailed    BatchOutcome = "failed"
	OutcomeCancelled BatchOutcome = "cancelled"
	OutcomeExpired   BatchOutcome = "expired"
)

// RequestCounts mirrors the per-request tallies providers report for a job.
type RequestCounts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Errored    int `json:"errored"`
}

// BatchStatus is one observation of a remote job. Findings is populated only
// when the job ended successfully; every other terminal outcome carries an
// empty, non-nil slice.
type BatchStatus struct {
	BatchID  string        `json:"batch_id"`
	State    BatchState    `json:"state"`
	Outcome  BatchOutcome  `json:"outcome,omitempty"`
	Counts   RequestCounts `json:"counts"`
	Findings []Finding     `json:"findings,omitempty"`
}

// Ended reports whether the job reached a terminal state.
func (s BatchStatus) Ended() bool { return s.State == BatchEnded }

// BatchRequest is everything a provider needs to create one remote job.
type BatchRequest struct {
	Files           []FileContent
	SystemPrompt    string
	DecisionContext string
	CustomID        string
	DefaultFocus    string
}

// Usage holds token counts of the most recent provider call.
type Usage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens"`
	CacheWriteTokens int `json:"cache_write_tokens"`
}

// Add returns the element-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + o.InputTokens,
		OutputTokens:     u.OutputTokens + o.OutputTokens,
		CacheReadTokens:  u.CacheReadTokens + o.CacheReadTokens,
		CacheWriteTokens: u.CacheWriteTokens + o.CacheWriteTokens,
	}
}
