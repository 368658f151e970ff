package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/domain/metrics"
)

var (
	accent  = lipgloss.Color("#D97706") // amber
	fg      = lipgloss.Color("#E8E6E3") // warm light gray
	dim     = lipgloss.Color("#6B7280") // muted gray
	faint   = lipgloss.Color("#3F3F46") // very dim
	success = lipgloss.Color("#22C55E") // green
	danger  = lipgloss.Color("#EF4444") // red
	warning = lipgloss.Color("#F59E0B") // amber-yellow
	info    = lipgloss.Color("#8B949E") // soft blue-gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2).
			Width(68)

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	highTagStyle  = lipgloss.NewStyle().Foreground(danger).Bold(true)
	medTagStyle   = lipgloss.NewStyle().Foreground(warning).Bold(true)
	lowTagStyle   = lipgloss.NewStyle().Foreground(info)
	fileStyle     = lipgloss.NewStyle().Foreground(dim)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

const missing = "—"

// RenderResults formats the outcome of one audit invocation.
func RenderResults(results []domain.AuditResult) string {
	if len(results) == 0 {
		return "  " + dimStyle.Render("Nothing to report.") + "\n"
	}

	var b strings.Builder
	for i, r := range results {
		renderResult(&b, r)
		if i < len(results)-1 {
			b.WriteString("\n  " + separatorLine + "\n\n")
		}
	}
	return b.String()
}

func renderResult(b *strings.Builder, r domain.AuditResult) {
	title := headerStyle.Render(r.Repo) + dimStyle.Render("  "+r.Focus)
	meta := dimStyle.Render(fmt.Sprintf("%s %s", r.Provider, r.Model))
	b.WriteString(boxStyle.Render(title + "\n" + meta))
	b.WriteString("\n")

	switch r.Stage {
	case domain.StageNoFiles:
		b.WriteString("  " + dimStyle.Render("No matching files.") + "\n")
		return
	case domain.StageDryRun:
		fmt.Fprintf(b, "  %s %d files would be submitted\n", warnStyle.Render("dry run"), r.FileCount)
		return
	case domain.StageSubmitted, domain.StagePolling:
		fmt.Fprintf(b, "  %s %s\n", warnStyle.Render("still processing"), faintStyle.Render(r.BatchID))
		return
	}

	high, medium, low := domain.CountBySeverity(r.NewFindings)
	fmt.Fprintf(b, "  %s  %s  %s  %s  %s\n",
		titleStyle.Render(fmt.Sprintf("%d new", len(r.NewFindings))),
		highTagStyle.Render(fmt.Sprintf("%d high", high)),
		medTagStyle.Render(fmt.Sprintf("%d medium", medium)),
		lowTagStyle.Render(fmt.Sprintf("%d low", low)),
		dimStyle.Render(fmt.Sprintf("%d resolved", r.ResolvedCount)),
	)
	if r.Outcome != "" && r.Outcome != domain.OutcomeSucceeded {
		fmt.Fprintf(b, "  %s\n", failStyle.Render("batch "+string(r.Outcome)))
	}
	b.WriteString("\n")

	findings := append([]domain.Finding(nil), r.NewFindings...)
	sort.SliceStable(findings, func(i, j int) bool {
		return domain.SeverityRank(findings[i].Severity) > domain.SeverityRank(findings[j].Severity)
	})
	for _, f := range findings {
		renderFinding(b, f)
	}
	if len(findings) == 0 {
		b.WriteString("  " + passStyle.Render("No new findings.") + "\n")
	}
	if r.ReportPath != "" {
		fmt.Fprintf(b, "\n  %s %s\n", dimStyle.Render("report"), fileStyle.Render(r.ReportPath))
	}
}

func renderFinding(b *strings.Builder, f domain.Finding) {
	loc := shortenPath(f.File)
	if f.Line != nil {
		loc = fmt.Sprintf("%s:%d", loc, *f.Line)
	}
	fmt.Fprintf(b, "    %s %s %s\n", severityTag(f.Severity), fileStyle.Render(loc), faintStyle.Render(f.ID))
	fmt.Fprintf(b, "         %s\n", titleStyle.Render(f.Title))
	if f.Description != "" {
		fmt.Fprintf(b, "         %s\n", dimStyle.Render(f.Description))
	}
}

func severityTag(s domain.Severity) string {
	switch s {
	case domain.SeverityHigh:
		return highTagStyle.Render("high  ")
	case domain.SeverityMedium:
		return medTagStyle.Render("medium")
	default:
		return lowTagStyle.Render("low   ")
	}
}

// RenderPending formats the pending ledger with any freshly polled states.
func RenderPending(set *domain.PendingSet, statuses map[string]domain.BatchStatus) string {
	if set.IsEmpty() {
		return "  " + dimStyle.Render("No pending batches.") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Pending batches") + "  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s  submitted %s", set.Focus, set.SubmittedAt.Format("2006-01-02 15:04 MST"))))
	b.WriteString("\n  " + separatorLine + "\n")
	for _, p := range set.Batches {
		state := dimStyle.Render("unknown")
		if st, ok := statuses[p.BatchID]; ok {
			state = stateLabel(st)
		}
		fmt.Fprintf(&b, "  %s %s %s  %s\n",
			titleStyle.Render(padRight(p.Repo, 18)),
			dimStyle.Render(padRight(p.Provider, 10)),
			state,
			faintStyle.Render(p.BatchID))
	}
	return b.String()
}

func stateLabel(st domain.BatchStatus) string {
	if !st.Ended() {
		return warnStyle.Render(padRight(string(st.State), 10))
	}
	if st.Outcome == domain.OutcomeSucceeded {
		return passStyle.Render(padRight("ready", 10))
	}
	return failStyle.Render(padRight(string(st.Outcome), 10))
}

// RenderScorecard formats the per-model summary and group table.
func RenderScorecard(sc metrics.Scorecard) string {
	if len(sc.Groups) == 0 {
		return "  " + dimStyle.Render("No run records found.") + "\n"
	}

	var b strings.Builder
	b.WriteString(boxStyle.Render(headerStyle.Render("noxaudit scorecard") + "\n" +
		dimStyle.Render(fmt.Sprintf("%d runs, %d groups", sc.RunCount, len(sc.Groups)))))
	b.WriteString("\n\n  " + titleStyle.Render("Models") + "\n")

	unique := sc.UniqueCounts()
	fmt.Fprintf(&b, "  %s\n", dimStyle.Render(fmt.Sprintf("%-28s %8s %8s %8s %10s %8s", "model", "findings", "high", "consist", "cost/run", "unique")))
	for _, m := range sc.Models {
		fmt.Fprintf(&b, "  %s %8s %8s %8s %10s %8d\n",
			titleStyle.Render(padRight(m.Model, 28)),
			fmtFloat(m.AvgFindings, "%.1f"),
			fmtPct(m.HighSeverityRate),
			consistencyStyled(m.Consistency),
			fmtFloat(m.AvgCostUSD, "$%.3f"),
			unique[m.Model])
	}

	b.WriteString("\n  " + titleStyle.Render("Groups") + "\n")
	for _, g := range sc.Groups {
		fmt.Fprintf(&b, "  %s %s runs=%d findings=%s consistency=%s cost/finding=%s\n",
			fileStyle.Render(padRight(g.Repo+"/"+g.Focus, 24)),
			dimStyle.Render(padRight(g.Model, 24)),
			g.RunCount,
			fmtFloat(g.AvgFindings, "%.1f"),
			fmtPct(g.Consistency),
			fmtFloat(g.CostPerFindingUSD, "$%.4f"))
	}
	return b.String()
}

// RenderCosts formats cost ledger totals.
func RenderCosts(rows []domain.CostSummary) string {
	if len(rows) == 0 {
		return "  " + dimStyle.Render("No recorded costs.") + "\n"
	}
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Costs") + "\n  " + separatorLine + "\n")
	total := 0.0
	for _, r := range rows {
		total += r.CostUSD
		fmt.Fprintf(&b, "  %s %s %4d audits  %9d in  %8d out  %s\n",
			dimStyle.Render(padRight(r.Provider, 10)),
			titleStyle.Render(padRight(r.Model, 26)),
			r.Audits, r.InputTokens, r.OutputTokens,
			fmt.Sprintf("$%.4f", r.CostUSD))
	}
	fmt.Fprintf(&b, "  %s\n  %s $%.4f\n", separatorLine, titleStyle.Render(padRight("total", 37)), total)
	return b.String()
}

// RenderCostEntries lists individual cost ledger entries, newest first.
func RenderCostEntries(entries []domain.CostEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Recent audits") + "\n  " + separatorLine + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s %s %s %9d in  %8d out  %s\n",
			dimStyle.Render(e.Timestamp.UTC().Format("2006-01-02 15:04")),
			titleStyle.Render(padRight(e.Repo+"/"+e.Focus, 28)),
			dimStyle.Render(padRight(e.Model, 26)),
			e.Usage.InputTokens, e.Usage.OutputTokens,
			fmt.Sprintf("$%.4f", e.CostUSD))
	}
	return b.String()
}

// RenderFocusAreas lists the registered focus areas.
func RenderFocusAreas(areas []domain.FocusArea) string {
	var b strings.Builder
	for _, a := range areas {
		fmt.Fprintf(&b, "  %s %s\n", titleStyle.Render(padRight(a.Name(), 14)), dimStyle.Render(a.Description()))
	}
	return b.String()
}

func consistencyStyled(v *float64) string {
	s := padLeft(fmtPct(v), 8)
	switch {
	case v == nil:
		return dimStyle.Render(s)
	case *v >= 0.7:
		return passStyle.Render(s)
	case *v >= 0.4:
		return warnStyle.Render(s)
	default:
		return failStyle.Render(s)
	}
}

func fmtFloat(v *float64, format string) string {
	if v == nil {
		return missing
	}
	return fmt.Sprintf(format, *v)
}

func fmtPct(v *float64) string {
	if v == nil {
		return missing
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

func shortenPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) > 3 {
		return strings.Join(parts[len(parts)-3:], "/")
	}
	return path
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}
