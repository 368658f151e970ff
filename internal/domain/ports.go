package domain

import (
	"context"
	"time"
)

// FileGatherer collects the files of a repository that match a focus area.
type FileGatherer interface {
	Gather(repoPath string, patterns, exclude []string) ([]FileContent, error)
}

// FocusArea is a named audit lens: which files to read and what to ask.
type FocusArea interface {
	Name() string
	Description() string
	Patterns() []string
	Prompt() string
}

// Provider is a remote language-model job system.
type Provider interface {
	Name() string
	Model() string
	// Submit creates one remote job and returns its opaque handle.
	Submit(ctx context.Context, req BatchRequest) (string, error)
	// Poll reads the job's current state. Safe to call repeatedly.
	Poll(ctx context.Context, batchID, defaultFocus string) (BatchStatus, error)
	// LastUsage reports token counts of the most recent completed call.
	LastUsage() Usage
}

// Classifier is implemented by providers that can run a synchronous
// file-relevance pre-pass.
type Classifier interface {
	Classify(ctx context.Context, files []FileContent, prompt string) ([]Classification, error)
}

// ProviderResolver builds a provider from its registered name.
type ProviderResolver interface {
	Resolve(name, model string) (Provider, error)
}

// DecisionStore is the durable ledger of human decisions.
type DecisionStore interface {
	Load(path string) ([]Decision, error)
	Append(path string, d Decision) error
}

// PendingLedger persists the in-flight submission round.
type PendingLedger interface {
	Save(path string, set PendingSet) error
	// Load returns (nil, nil) when nothing is pending.
	Load(path string) (*PendingSet, error)
	Clear(path string) error
}

// ReportStore renders and saves an audit report, returning its location.
type ReportStore interface {
	Save(dir string, r AuditResult) (string, error)
}

// Notifier delivers a result summary to one target.
type Notifier interface {
	Notify(ctx context.Context, target NotificationTarget, r AuditResult) error
}

// RunRecorder appends run records to the historical corpus.
type RunRecorder interface {
	// Record assigns the next run number for the record's group and stores it.
	Record(dir string, rec RunRecord) (RunRecord, error)
}

// RunLoader reads the historical corpus. Malformed entries are reported in
// skipped and never abort the load.
type RunLoader interface {
	LoadAll(dir string) (records []RunRecord, skipped []error, err error)
}

// CostEntry is one audit's usage and estimated spend.
type CostEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Repo      string    `json:"repo"`
	Focus     string    `json:"focus"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	BatchID   string    `json:"batch_id,omitempty"`
	Batch     bool      `json:"batch"`
	Usage     Usage     `json:"usage"`
	CostUSD   float64   `json:"cost_usd"`
}

// CostSummary aggregates cost entries per provider and model.
type CostSummary struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Audits       int     `json:"audits"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// CostLedger stores per-audit usage.
type CostLedger interface {
	Record(ctx context.Context, e CostEntry) error
	Summary(ctx context.Context) ([]CostSummary, error)
}

// GitInfo reads repository metadata.
type GitInfo interface {
	CommitHash(repoPath string) (string, error)
}

// ConfigLoader reads the orchestrator configuration.
type ConfigLoader interface {
	Load(path string) (Config, error)
}
