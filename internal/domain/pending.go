package domain

import "time"

// DefaultLedgerPath is where the pending-batch set lives unless a caller
// passes another location.
const DefaultLedgerPath = ".noxaudit/pending-batch.json"

// PendingBatch is one submitted job that has not been retrieved yet.
type PendingBatch struct {
	Repo      string `json:"repo"`
	BatchID   string `json:"batch_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	FileCount int    `json:"file_count,omitempty"`
}

// PendingSet is one submission round. Every batch in the set shares the
// round's focus.
type PendingSet struct {
	SubmissionID string         `json:"submission_id,omitempty"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	Focus        string         `json:"focus"`
	Batches      []PendingBatch `json:"batches"`
}

// IsEmpty reports whether the set tracks no batches.
func (p *PendingSet) IsEmpty() bool {
	return p == nil || len(p.Batches) == 0
}

// Add appends a batch and returns the updated set.
func (p PendingSet) Add(b PendingBatch) PendingSet {
	batches := make([]PendingBatch, 0, len(p.Batches)+1)
	batches = append(batches, p.Batches...)
	p.Batches = append(batches, b)
	return p
}

// Without returns a copy of the set minus the batches whose ids are in done.
func (p PendingSet) Without(done map[string]bool) PendingSet {
	remaining := make([]PendingBatch, 0, len(p.Batches))
	for _, b := range p.Batches {
		if !done[b.BatchID] {
			remaining = append(remaining, b)
		}
	}
	p.Batches = remaining
	return p
}
