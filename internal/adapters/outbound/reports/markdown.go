package reports

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// Store implements domain.ReportStore, writing one markdown file per result
// to <dir>/<repo>/<date>-<focus>.md.
type Store struct{}

func New() *Store { return &Store{} }

// Save renders r and writes it, replacing a same-day report for the pair.
func (s *Store) Save(dir string, r domain.AuditResult) (string, error) {
	repoDir := filepath.Join(dir, r.Repo)
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", r.Timestamp.Format("2006-01-02"), strings.ReplaceAll(r.Focus, "/", "_"))
	path := filepath.Join(repoDir, name)
	if err := os.WriteFile(path, []byte(Render(r)), 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// Render produces the markdown body of a report.
func Render(r domain.AuditResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s audit: %s\n\n", r.Focus, r.Repo)
	fmt.Fprintf(&b, "- **Date:** %s\n", r.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "- **Provider:** %s", r.Provider)
	if r.Model != "" {
		fmt.Fprintf(&b, " (%s)", r.Model)
	}
	b.WriteString("\n")
	if r.CommitHash != "" {
		fmt.Fprintf(&b, "- **Commit:** `%s`\n", r.CommitHash)
	}
	if r.BatchID != "" {
		fmt.Fprintf(&b, "- **Batch:** `%s` (%s)\n", r.BatchID, r.Outcome)
	}
	fmt.Fprintf(&b, "- **Files reviewed:** %d\n", r.FileCount)
	if r.Usage.InputTokens > 0 || r.Usage.OutputTokens > 0 {
		fmt.Fprintf(&b, "- **Tokens:** %d in / %d out\n", r.Usage.InputTokens, r.Usage.OutputTokens)
	}
	b.WriteString("\n")

	high, medium, low := domain.CountBySeverity(r.NewFindings)
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "| New | High | Medium | Low | Resolved by decisions | Total reported |\n")
	fmt.Fprintf(&b, "|-----|------|--------|-----|-----------------------|----------------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n\n", len(r.NewFindings), high, medium, low, r.ResolvedCount, len(r.Findings))

	if r.Outcome != "" && r.Outcome != domain.OutcomeSucceeded {
		fmt.Fprintf(&b, "> The batch ended as **%s**; no findings were produced.\n\n", r.Outcome)
	}
	if len(r.NewFindings) == 0 {
		b.WriteString("No new findings.\n")
		return b.String()
	}

	findings := append([]domain.Finding(nil), r.NewFindings...)
	sort.SliceStable(findings, func(i, j int) bool {
		return domain.SeverityRank(findings[i].Severity) > domain.SeverityRank(findings[j].Severity)
	})

	b.WriteString("## Findings\n")
	for _, f := range findings {
		loc := f.File
		if f.Line != nil {
			loc = fmt.Sprintf("%s:%d", f.File, *f.Line)
		}
		fmt.Fprintf(&b, "\n### [%s] %s\n\n", strings.ToUpper(string(f.Severity)), f.Title)
		fmt.Fprintf(&b, "- **Location:** `%s`\n", loc)
		fmt.Fprintf(&b, "- **ID:** `%s`\n", f.ID)
		if f.Focus != "" && f.Focus != r.Focus {
			fmt.Fprintf(&b, "- **Focus:** %s\n", f.Focus)
		}
		if f.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", f.Description)
		}
		if f.Suggestion != "" {
			fmt.Fprintf(&b, "\n**Suggestion:** %s\n", f.Suggestion)
		}
	}
	return b.String()
}
