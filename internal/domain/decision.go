package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DecisionType records how a human ruled on a finding.
type DecisionType string

const (
	DecisionAccept DecisionType = "accept"
	DecisionIgnore DecisionType = "ignore"
	DecisionExpire DecisionType = "expire"
)

// ParseDecisionType validates a raw decision type.
func ParseDecisionType(s string) (DecisionType, error) {
	switch DecisionType(s) {
	case DecisionAccept, DecisionIgnore, DecisionExpire:
		return DecisionType(s), nil
	default:
		return "", fmt.Errorf("unknown decision type %q (valid: accept, ignore, expire)", s)
	}
}

// Decision is a human ruling on a previously reported finding.
// File scopes the ruling; an empty File matches the finding id anywhere.
type Decision struct {
	FindingID string       `json:"finding_id"`
	File      string       `json:"file,omitempty"`
	Type      DecisionType `json:"type"`
	Reason    string       `json:"reason,omitempty"`
	By        string       `json:"by,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Expired reports whether the decision is older than expiryDays at now.
// A non-positive expiryDays disables expiry.
func (d Decision) Expired(now time.Time, expiryDays int) bool {
	if expiryDays <= 0 {
		return false
	}
	return now.Sub(d.CreatedAt) > time.Duration(expiryDays)*24*time.Hour
}

// Covers reports whether the decision applies to f. Identity must match and,
// when the decision carries a file scope, the paths must resolve to the same
// file relative to repoPath.
func (d Decision) Covers(f Finding, repoPath string) bool {
	if d.FindingID != f.ID {
		return false
	}
	if d.File == "" {
		return true
	}
	return relativeTo(repoPath, d.File) == relativeTo(repoPath, f.File)
}

func relativeTo(repoPath, p string) string {
	p = filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(p) && repoPath != "" {
		root := filepath.Clean(repoPath)
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	return filepath.ToSlash(p)
}

// FormatDecisionContext renders prior decisions as free text for the
// provider request. No decisions yields an empty string.
func FormatDecisionContext(decisions []Decision) string {
	if len(decisions) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Prior decisions\n\n")
	b.WriteString("These findings were already reviewed. Do not report them again unless the code changed.\n\n")
	for _, d := range decisions {
		fmt.Fprintf(&b, "- [%s] %s", d.Type, d.FindingID)
		if d.File != "" {
			fmt.Fprintf(&b, " in %s", d.File)
		}
		if d.Reason != "" {
			fmt.Fprintf(&b, ": %s", d.Reason)
		}
		b.WriteString("\n")
	}
	return b.String()
}
