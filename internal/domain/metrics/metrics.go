// Package metrics aggregates historical run records into comparative
// statistics per (provider, model, repo, focus) group.
//
// Every mean is a *float64: nil means "no data" and is kept distinct from a
// real zero all the way to rendered output.
package metrics

import (
	"fmt"
	"sort"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// Key identifies one group of comparable runs.
type Key struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Repo     string `json:"repo"`
	Focus    string `json:"focus"`
}

// String renders the key as "provider/model/repo/focus".
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Provider, k.Model, k.Repo, k.Focus)
}

// KeyOf returns the group key of a run record.
func KeyOf(r domain.RunRecord) Key {
	return Key{Provider: r.Provider, Model: r.Model, Repo: r.Repo, Focus: r.Focus}
}

// GroupMetrics are the statistics of one group.
type GroupMetrics struct {
	Key
	RunCount            int      `json:"run_count"`
	AvgFindings         *float64 `json:"avg_findings"`
	AvgHighSeverityRate *float64 `json:"avg_high_severity_rate"`
	Consistency         *float64 `json:"consistency_jaccard"`
	AvgCostUSD          *float64 `json:"avg_cost_usd"`
	AvgBatchCostUSD     *float64 `json:"avg_batch_cost_usd"`
	CostPerFindingUSD   *float64 `json:"cost_per_finding_usd"`
	AvgDurationSeconds  *float64 `json:"avg_duration_seconds"`
	AvgInputTokens      *float64 `json:"avg_input_tokens"`
	AvgOutputTokens     *float64 `json:"avg_output_tokens"`
}

// Jaccard is |a ∩ b| / |a ∪ b|. Two empty sets are perfectly consistent.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	inter := 0
	for id := range a {
		if _, ok := b[id]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Mean returns the arithmetic mean, or nil for an empty input.
func Mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}

// Compute groups records and returns one GroupMetrics per group, sorted by key.
func Compute(records []domain.RunRecord) []GroupMetrics {
	groups := make(map[Key][]domain.RunRecord)
	for _, r := range records {
		k := KeyOf(r)
		groups[k] = append(groups[k], r)
	}

	out := make([]GroupMetrics, 0, len(groups))
	for k, runs := range groups {
		out = append(out, computeGroup(k, runs))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

func computeGroup(k Key, runs []domain.RunRecord) GroupMetrics {
	sorted := append([]domain.RunRecord(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RunNumber < sorted[j].RunNumber })

	var findings, highRates, costs, durations, inputs, outputs []float64
	for _, r := range sorted {
		findings = append(findings, float64(r.FindingsCount))
		rate := 0.0
		if r.FindingsCount > 0 {
			rate = float64(r.HighSeverityCount) / float64(r.FindingsCount)
		}
		highRates = append(highRates, rate)
		costs = append(costs, r.CostUSD)
		if r.DurationSeconds != nil && *r.DurationSeconds > 0 {
			durations = append(durations, *r.DurationSeconds)
		}
		inputs = append(inputs, float64(r.InputTokens))
		outputs = append(outputs, float64(r.OutputTokens))
	}

	m := GroupMetrics{
		Key:                 k,
		RunCount:            len(sorted),
		AvgFindings:         Mean(findings),
		AvgHighSeverityRate: Mean(highRates),
		AvgCostUSD:          Mean(costs),
		AvgDurationSeconds:  Mean(durations),
		AvgInputTokens:      Mean(inputs),
		AvgOutputTokens:     Mean(outputs),
	}

	if len(sorted) >= 2 {
		c := Jaccard(runIDs(sorted[0]), runIDs(sorted[1]))
		m.Consistency = &c
	}
	if m.AvgCostUSD != nil && m.AvgFindings != nil && *m.AvgFindings > 0 {
		v := *m.AvgCostUSD / *m.AvgFindings
		m.CostPerFindingUSD = &v
	}
	if m.AvgCostUSD != nil {
		v := *m.AvgCostUSD * domain.BatchDiscount
		m.AvgBatchCostUSD = &v
	}
	return m
}

func runIDs(r domain.RunRecord) map[string]struct{} {
	ids := make(map[string]struct{}, len(r.Findings))
	for _, f := range r.Findings {
		ids[f.ID] = struct{}{}
	}
	return ids
}

// CrossModelUnique returns, per model, the finding ids no other model ever
// reported anywhere in the corpus.
func CrossModelUnique(records []domain.RunRecord) map[string]map[string]struct{} {
	perModel := make(map[string]map[string]struct{})
	for _, r := range records {
		ids, ok := perModel[r.Model]
		if !ok {
			ids = make(map[string]struct{})
			perModel[r.Model] = ids
		}
		for _, f := range r.Findings {
			ids[f.ID] = struct{}{}
		}
	}

	unique := make(map[string]map[string]struct{}, len(perModel))
	for model, ids := range perModel {
		others := make(map[string]struct{})
		for other, otherIDs := range perModel {
			if other == model {
				continue
			}
			for id := range otherIDs {
				others[id] = struct{}{}
			}
		}
		own := make(map[string]struct{})
		for id := range ids {
			if _, seen := others[id]; !seen {
				own[id] = struct{}{}
			}
		}
		unique[model] = own
	}
	return unique
}

// ModelSummary rolls every group of one (provider, model) pair together.
type ModelSummary struct {
	Provider          string   `json:"provider"`
	Model             string   `json:"model"`
	Groups            int      `json:"groups"`
	AvgFindings       *float64 `json:"avg_findings"`
	HighSeverityRate  *float64 `json:"high_severity_rate"`
	Consistency       *float64 `json:"consistency"`
	AvgCostUSD        *float64 `json:"avg_cost_usd"`
	CostPerFindingUSD *float64 `json:"cost_per_finding_usd"`
	AvgDuration       *float64 `json:"avg_duration_seconds"`
}

// SummarizeModels averages the defined group metrics of each model. Groups
// with an undefined value do not contribute to that value's mean.
func SummarizeModels(groups []GroupMetrics) []ModelSummary {
	type pm struct{ provider, model string }
	byModel := make(map[pm][]GroupMetrics)
	var keys []pm
	for _, g := range groups {
		k := pm{g.Provider, g.Model}
		if _, ok := byModel[k]; !ok {
			keys = append(keys, k)
		}
		byModel[k] = append(byModel[k], g)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].provider != keys[j].provider {
			return keys[i].provider < keys[j].provider
		}
		return keys[i].model < keys[j].model
	})

	out := make([]ModelSummary, 0, len(keys))
	for _, k := range keys {
		gs := byModel[k]
		out = append(out, ModelSummary{
			Provider:          k.provider,
			Model:             k.model,
			Groups:            len(gs),
			AvgFindings:       meanOf(gs, func(g GroupMetrics) *float64 { return g.AvgFindings }),
			HighSeverityRate:  meanOf(gs, func(g GroupMetrics) *float64 { return g.AvgHighSeverityRate }),
			Consistency:       meanOf(gs, func(g GroupMetrics) *float64 { return g.Consistency }),
			AvgCostUSD:        meanOf(gs, func(g GroupMetrics) *float64 { return g.AvgCostUSD }),
			CostPerFindingUSD: meanOf(gs, func(g GroupMetrics) *float64 { return g.CostPerFindingUSD }),
			AvgDuration:       meanOf(gs, func(g GroupMetrics) *float64 { return g.AvgDurationSeconds }),
		})
	}
	return out
}

func meanOf(groups []GroupMetrics, field func(GroupMetrics) *float64) *float64 {
	var vals []float64
	for _, g := range groups {
		if v := field(g); v != nil {
			vals = append(vals, *v)
		}
	}
	return Mean(vals)
}

// ExcludeDryRuns drops placeholder records produced without a provider call.
func ExcludeDryRuns(records []domain.RunRecord) []domain.RunRecord {
	out := make([]domain.RunRecord, 0, len(records))
	for _, r := range records {
		if !r.DryRun {
			out = append(out, r)
		}
	}
	return out
}

// Scorecard is the full comparative report over a run corpus.
type Scorecard struct {
	RunCount int
	Groups   []GroupMetrics
	Models   []ModelSummary
	// Unique maps each model to the finding ids only it reported.
	Unique map[string]map[string]struct{}
}

// Build computes every scorecard section from records. Dry runs are dropped.
func Build(records []domain.RunRecord) Scorecard {
	kept := ExcludeDryRuns(records)
	groups := Compute(kept)
	return Scorecard{
		RunCount: len(kept),
		Groups:   groups,
		Models:   SummarizeModels(groups),
		Unique:   CrossModelUnique(kept),
	}
}

// UniqueCounts returns the number of unique findings per model.
func (s Scorecard) UniqueCounts() map[string]int {
	out := make(map[string]int, len(s.Unique))
	for model, ids := range s.Unique {
		out[model] = len(ids)
	}
	return out
}

// Focuses lists the distinct focus values of the groups, sorted.
func (s Scorecard) Focuses() []string {
	return distinct(s.Groups, func(g GroupMetrics) string { return g.Focus })
}

// Repos lists the distinct repos of the groups, sorted.
func (s Scorecard) Repos() []string {
	return distinct(s.Groups, func(g GroupMetrics) string { return g.Repo })
}

// Group returns the metrics for k, if present.
func (s Scorecard) Group(k Key) (GroupMetrics, bool) {
	for _, g := range s.Groups {
		if g.Key == k {
			return g, true
		}
	}
	return GroupMetrics{}, false
}

func distinct(groups []GroupMetrics, field func(GroupMetrics) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range groups {
		v := field(g)
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
