package domain

import "time"

// Stage is a state in the per-(repo, focus) audit lifecycle.
type Stage string

const (
	StageGathering    Stage = "gathering"
	StageNoFiles      Stage = "no_files"
	StageDryRun       Stage = "dry_run"
	StageSubmitted    Stage = "submitted"
	StagePolling      Stage = "polling"
	StageEndedSuccess Stage = "ended_success"
	StageEndedEmpty   Stage = "ended_empty"
)

// Terminal reports whether no further transition can follow s.
func (s Stage) Terminal() bool {
	switch s {
	case StageNoFiles, StageDryRun, StageEndedSuccess, StageEndedEmpty:
		return true
	}
	return false
}

// Placeholder provider tags for results that never reached a provider.
const (
	ProviderNone   = "none"
	ProviderDryRun = "dry-run"
)

// AuditResult is the outcome of one (repo, focus) unit of work. It is built
// once and not modified afterwards.
type AuditResult struct {
	Repo          string       `json:"repo"`
	Focus         string       `json:"focus"`
	Provider      string       `json:"provider"`
	Model         string       `json:"model,omitempty"`
	Stage         Stage        `json:"stage"`
	Outcome       BatchOutcome `json:"outcome,omitempty"`
	BatchID       string       `json:"batch_id,omitempty"`
	Findings      []Finding    `json:"findings"`
	NewFindings   []Finding    `json:"new_findings"`
	ResolvedCount int          `json:"resolved_count"`
	FileCount     int          `json:"file_count"`
	Usage         Usage        `json:"usage"`
	CommitHash    string       `json:"commit_hash,omitempty"`
	ReportPath    string       `json:"report_path,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// ShortCommit abbreviates the commit hash for headers and messages.
func (r AuditResult) ShortCommit() string {
	if len(r.CommitHash) > 8 {
		return r.CommitHash[:8]
	}
	return r.CommitHash
}

// RunFinding is the subset of a finding persisted in a run record.
type RunFinding struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	File        string   `json:"file"`
	Line        *int     `json:"line"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// RunRecord is one historical execution snapshot consumed by the scorecard.
type RunRecord struct {
	Provider            string       `json:"provider" validate:"required"`
	Model               string       `json:"model" validate:"required"`
	Repo                string       `json:"repo" validate:"required"`
	Focus               string       `json:"focus" validate:"required"`
	RunNumber           int          `json:"run_number"`
	Timestamp           string       `json:"timestamp,omitempty"`
	CommitHash          string       `json:"commit_hash,omitempty"`
	FindingsCount       int          `json:"findings_count" validate:"gte=0"`
	HighSeverityCount   int          `json:"high_severity_count" validate:"gte=0"`
	MediumSeverityCount int          `json:"medium_severity_count"`
	LowSeverityCount    int          `json:"low_severity_count"`
	CostUSD             float64      `json:"cost_usd"`
	DurationSeconds     *float64     `json:"duration_seconds"`
	InputTokens         int          `json:"input_tokens"`
	OutputTokens        int          `json:"output_tokens"`
	CacheReadTokens     int          `json:"cache_read_tokens"`
	Findings            []RunFinding `json:"findings"`
	DryRun              bool         `json:"dry_run"`
	Source              string       `json:"-"`
}

// NewRunRecord snapshots a completed audit result.
func NewRunRecord(r AuditResult, runNumber int, costUSD float64, duration time.Duration) RunRecord {
	high, medium, low := CountBySeverity(r.Findings)
	findings := make([]RunFinding, 0, len(r.Findings))
	for _, f := range r.Findings {
		findings = append(findings, RunFinding{
			ID:          f.ID,
			Severity:    f.Severity,
			File:        f.File,
			Line:        f.Line,
			Title:       f.Title,
			Description: f.Description,
		})
	}
	var secs *float64
	if duration > 0 {
		v := duration.Seconds()
		secs = &v
	}
	return RunRecord{
		Provider:            r.Provider,
		Model:               r.Model,
		Repo:                r.Repo,
		Focus:               r.Focus,
		RunNumber:           runNumber,
		Timestamp:           r.Timestamp.UTC().Format(time.RFC3339),
		CommitHash:          r.CommitHash,
		FindingsCount:       len(r.Findings),
		HighSeverityCount:   high,
		MediumSeverityCount: medium,
		LowSeverityCount:    low,
		CostUSD:             costUSD,
		DurationSeconds:     secs,
		InputTokens:         r.Usage.InputTokens,
		OutputTokens:        r.Usage.OutputTokens,
		CacheReadTokens:     r.Usage.CacheReadTokens,
		Findings:            findings,
		DryRun:              r.Stage == StageDryRun,
	}
}
