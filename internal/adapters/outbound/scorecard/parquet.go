package scorecard

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/noxaudit/noxaudit/internal/domain/metrics"
)

// GroupRow is one scorecard group as a Parquet row. Undefined metrics are
// null.
type GroupRow struct {
	Provider            string   `parquet:"provider,dict"`
	Model               string   `parquet:"model,dict"`
	Repo                string   `parquet:"repo,dict"`
	Focus               string   `parquet:"focus,dict"`
	RunCount            int64    `parquet:"run_count"`
	AvgFindings         *float64 `parquet:"avg_findings,optional"`
	AvgHighSeverityRate *float64 `parquet:"avg_high_severity_rate,optional"`
	Consistency         *float64 `parquet:"consistency_jaccard,optional"`
	AvgCostUSD          *float64 `parquet:"avg_cost_usd,optional"`
	AvgBatchCostUSD     *float64 `parquet:"avg_batch_cost_usd,optional"`
	CostPerFindingUSD   *float64 `parquet:"cost_per_finding_usd,optional"`
	AvgDurationSeconds  *float64 `parquet:"avg_duration_seconds,optional"`
	AvgInputTokens      *float64 `parquet:"avg_input_tokens,optional"`
	AvgOutputTokens     *float64 `parquet:"avg_output_tokens,optional"`
	UniqueFindings      int64    `parquet:"model_unique_findings"`
}

// Parquet writes one zstd-compressed row per group.
type Parquet struct{}

func (Parquet) Write(w io.Writer, sc metrics.Scorecard) error {
	rows := Rows(sc)
	writer := parquet.NewGenericWriter[GroupRow](w, parquet.Compression(&parquet.Zstd))
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("writing parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

// Rows flattens the scorecard groups.
func Rows(sc metrics.Scorecard) []GroupRow {
	unique := sc.UniqueCounts()
	rows := make([]GroupRow, 0, len(sc.Groups))
	for _, g := range sc.Groups {
		rows = append(rows, GroupRow{
			Provider:            g.Provider,
			Model:               g.Model,
			Repo:                g.Repo,
			Focus:               g.Focus,
			RunCount:            int64(g.RunCount),
			AvgFindings:         g.AvgFindings,
			AvgHighSeverityRate: g.AvgHighSeverityRate,
			Consistency:         g.Consistency,
			AvgCostUSD:          g.AvgCostUSD,
			AvgBatchCostUSD:     g.AvgBatchCostUSD,
			CostPerFindingUSD:   g.CostPerFindingUSD,
			AvgDurationSeconds:  g.AvgDurationSeconds,
			AvgInputTokens:      g.AvgInputTokens,
			AvgOutputTokens:     g.AvgOutputTokens,
			UniqueFindings:      int64(unique[g.Model]),
		})
	}
	return rows
}
