package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Severity is the impact level a provider assigns to a finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ParseSeverity validates a raw severity string.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("unknown severity %q (valid: high, medium, low)", s)
	}
}

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Finding is one issue reported by a provider. Findings are never mutated
// after parsing; filters return new slices.
type Finding struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	File        string   `json:"file"`
	Line        *int     `json:"line"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
	Focus       string   `json:"focus,omitempty"`
}

// FindingID computes the stable identity of a finding.
//
// The key is "<focus>:<file>:<title>:<line>". Focus is always part of the key,
// with an empty placeholder when unknown, so that a finding hashes the same
// whether or not the provider echoed its focus back. Description and
// suggestion are excluded because they vary between runs.
func FindingID(file, title string, line *int, focus string) string {
	lineKey := ""
	if line != nil {
		lineKey = strconv.Itoa(*line)
	}
	key := focus + ":" + file + ":" + title + ":" + lineKey
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}

// IntPtr is a small helper for optional line numbers.
func IntPtr(v int) *int { return &v }

// CountBySeverity tallies findings per severity.
func CountBySeverity(findings []Finding) (high, medium, low int) {
	for _, f := range findings {
		switch f.Severity {
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		case SeverityLow:
			low++
		}
	}
	return
}

// FindingIDs returns the identity set of a finding list.
func FindingIDs(findings []Finding) map[string]struct{} {
	ids := make(map[string]struct{}, len(findings))
	for _, f := range findings {
		ids[f.ID] = struct{}{}
	}
	return ids
}

// FileContent is one gathered source file.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Classification is the pre-pass verdict for one file.
type Classification struct {
	Path     string `json:"path"`
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason,omitempty"`
}

// PrepassResult summarises a pre-pass classification round.
type PrepassResult struct {
	Classified    []Classification `json:"classified"`
	OriginalCount int              `json:"original_count"`
	RetainedCount int              `json:"retained_count"`
}

// Retain returns the files the pre-pass marked relevant, in input order.
// An empty classification keeps every file.
func (p PrepassResult) Retain(files []FileContent) []FileContent {
	if p.RetainedCount == 0 {
		return files
	}
	relevant := make(map[string]bool, len(p.Classified))
	for _, c := range p.Classified {
		if c.Relevant {
			relevant[c.Path] = true
		}
	}
	kept := make([]FileContent, 0, p.RetainedCount)
	for _, f := range files {
		if relevant[f.Path] {
			kept = append(kept, f)
		}
	}
	return kept
}
