package scorecard

import (
	"encoding/json"
	"io"

	"github.com/noxaudit/noxaudit/internal/domain/metrics"
)

// JSON renders groups keyed "provider/model/repo/focus" with unique counts.
type JSON struct{}

type jsonScorecard struct {
	Metrics             map[string]metrics.GroupMetrics `json:"metrics"`
	Models              []metrics.ModelSummary          `json:"models"`
	UniqueFindingsCount map[string]int                  `json:"unique_findings_count"`
}

func (JSON) Write(w io.Writer, sc metrics.Scorecard) error {
	out := jsonScorecard{
		Metrics:             make(map[string]metrics.GroupMetrics, len(sc.Groups)),
		Models:              modelOrder(sc),
		UniqueFindingsCount: sc.UniqueCounts(),
	}
	for _, g := range sc.Groups {
		out.Metrics[g.Key.String()] = g
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
