package scorecard

import (
	"fmt"
	"io"
	"strings"

	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/domain/metrics"
)

const missing = "—"

// Markdown renders the human scorecard.
type Markdown struct{}

func (Markdown) Write(w io.Writer, sc metrics.Scorecard) error {
	var b strings.Builder
	b.WriteString("# Noxaudit Provider Quality Scorecard\n\n")
	fmt.Fprintf(&b, "> %d runs across %d groups. Consistency is the Jaccard similarity of finding ids between the first two runs of a group.\n", sc.RunCount, len(sc.Groups))
	fmt.Fprintf(&b, "> Batch costs assume a flat %.0f%% discount.\n\n", (1-domain.BatchDiscount)*100)

	writeFocusTiers(&b, sc)
	writeModelSummary(&b, sc)
	writeUnique(&b, sc)
	writeMethodology(&b)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeFocusTiers(b *strings.Builder, sc metrics.Scorecard) {
	b.WriteString("## Results by Focus Tier\n\n")
	repos := sc.Repos()
	for _, focus := range sc.Focuses() {
		fmt.Fprintf(b, "### %s\n\n", focus)
		b.WriteString("| Model | " + strings.Join(repos, " | ") + " | Avg Findings | Avg Cost | Consistency |\n")
		b.WriteString("|-------|" + strings.Repeat("--------|", len(repos)) + "-------------|----------|-------------|\n")

		for _, m := range modelOrder(sc) {
			var findings, costs, consistency []float64
			row := []string{fmt.Sprintf("**%s** (%s)", m.Model, m.Provider)}
			present := false
			for _, repo := range repos {
				g, ok := sc.Group(metrics.Key{Provider: m.Provider, Model: m.Model, Repo: repo, Focus: focus})
				if !ok {
					row = append(row, missing)
					continue
				}
				present = true
				row = append(row, fmtFloat(g.AvgFindings, "%.0f"))
				findings = appendDefined(findings, g.AvgFindings)
				costs = appendDefined(costs, g.AvgCostUSD)
				consistency = appendDefined(consistency, g.Consistency)
			}
			if !present {
				continue
			}
			row = append(row,
				fmtFloat(metrics.Mean(findings), "%.1f"),
				fmtFloat(metrics.Mean(costs), "$%.3f"),
				fmtPct(metrics.Mean(consistency)))
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		b.WriteString("\n")
	}
}

func writeModelSummary(b *strings.Builder, sc metrics.Scorecard) {
	b.WriteString("## Per-Model Summary\n\n")
	b.WriteString("Aggregate across all repos and focus tiers.\n\n")
	b.WriteString("| Model | Avg Findings | High Sev Rate | Consistency | Avg Cost/Run | Avg Cost/Finding | Avg Time |\n")
	b.WriteString("|-------|--------------|---------------|-------------|--------------|------------------|----------|\n")
	for _, m := range modelOrder(sc) {
		fmt.Fprintf(b, "| **%s** | %s | %s | %s | %s | %s | %s |\n",
			m.Model,
			fmtFloat(m.AvgFindings, "%.1f"),
			fmtPct(m.HighSeverityRate),
			fmtPct(m.Consistency),
			fmtFloat(m.AvgCostUSD, "$%.3f"),
			fmtFloat(m.CostPerFindingUSD, "$%.4f"),
			fmtDuration(m.AvgDuration))
	}
	b.WriteString("\n")
}

func writeUnique(b *strings.Builder, sc metrics.Scorecard) {
	b.WriteString("## Cross-Model Unique Findings\n\n")
	b.WriteString("Finding ids reported by exactly one model.\n\n")
	b.WriteString("| Model | Unique Findings | % of Total |\n")
	b.WriteString("|-------|-----------------|------------|\n")

	counts := sc.UniqueCounts()
	total := 0
	for _, n := range counts {
		total += n
	}
	for _, m := range modelOrder(sc) {
		n := counts[m.Model]
		pct := missing
		if total > 0 {
			pct = fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
		}
		fmt.Fprintf(b, "| %s | %d | %s |\n", m.Model, n, pct)
	}
	b.WriteString("\n")
}

func writeMethodology(b *strings.Builder) {
	b.WriteString(`## Methodology Notes

| Metric | Definition |
|--------|-----------|
| Findings/run | Raw count of findings returned by the model |
| High severity rate | Share of a run's findings rated high, 0 for an empty run |
| Consistency (Jaccard) | \|run1 ∩ run2\| / \|run1 ∪ run2\| across finding ids |
| Cost/run | Estimated spend recorded with the run |
| Cost/finding | Average cost ÷ average findings, undefined without findings |
| Unique findings | Finding ids not reported by any other model |

Finding ids are the first 12 hex characters of SHA-256 over ` + "`{focus}:{file}:{title}:{line}`" + `.
Two runs share an id only when the model reports the same file, title and line,
which makes Jaccard a conservative measure. A dash marks a value with no data.
`)
}

func appendDefined(vals []float64, v *float64) []float64 {
	if v == nil {
		return vals
	}
	return append(vals, *v)
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

func fmtDuration(secs *float64) string {
	if secs == nil {
		return missing
	}
	if *secs < 60 {
		return fmt.Sprintf("%.0fs", *secs)
	}
	return fmt.Sprintf("%.1fm", *secs/60)
}
