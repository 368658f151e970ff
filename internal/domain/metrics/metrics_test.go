package metrics_test

import (
	"testing"

	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/domain/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func run(model string, n int, cost float64, ids ...string) domain.RunRecord {
	r := domain.RunRecord{
		Provider:      "gemini",
		Model:         model,
		Repo:          "requests",
		Focus:         "security",
		RunNumber:     n,
		FindingsCount: len(ids),
		CostUSD:       cost,
	}
	for _, id := range ids {
		r.Findings = append(r.Findings, domain.RunFinding{ID: id, Severity: domain.SeverityLow})
	}
	return r
}

func only(t *testing.T, ms []metrics.GroupMetrics) metrics.GroupMetrics {
	t.Helper()
	require.Len(t, ms, 1)
	return ms[0]
}

func TestJaccard(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		assert.Equal(t, 1.0, metrics.Jaccard(set("a", "b"), set("a", "b")))
	})
	t.Run("disjoint", func(t *testing.T) {
		assert.Equal(t, 0.0, metrics.Jaccard(set("x"), set("y")))
	})
	t.Run("partial overlap", func(t *testing.T) {
		assert.InDelta(t, 0.5, metrics.Jaccard(set("a", "b", "c"), set("b", "c", "d")), 1e-9)
	})
	t.Run("both empty", func(t *testing.T) {
		assert.Equal(t, 1.0, metrics.Jaccard(set(), set()))
	})
	t.Run("one empty", func(t *testing.T) {
		assert.Equal(t, 0.0, metrics.Jaccard(set("a"), set()))
		assert.Equal(t, 0.0, metrics.Jaccard(set(), set("a")))
	})
	t.Run("symmetric and bounded", func(t *testing.T) {
		pairs := [][2]map[string]struct{}{
			{set("a"), set("a", "b", "c")},
			{set("a", "b"), set("c")},
			{set("q", "r", "s"), set("s")},
		}
		for _, p := range pairs {
			ab, ba := metrics.Jaccard(p[0], p[1]), metrics.Jaccard(p[1], p[0])
			assert.Equal(t, ab, ba)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
		}
	})
}

func TestMean(t *testing.T) {
	assert.Nil(t, metrics.Mean(nil))
	m := metrics.Mean([]float64{1, 2, 3})
	require.NotNil(t, m)
	assert.InDelta(t, 2.0, *m, 1e-9)
}

func TestCompute_SingleRunHasNoConsistency(t *testing.T) {
	r := run("gemini-2.0-flash", 1, 0.01, "aaa")
	r.HighSeverityCount = 1
	m := only(t, metrics.Compute([]domain.RunRecord{r}))

	assert.Equal(t, 1, m.RunCount)
	require.NotNil(t, m.AvgFindings)
	assert.Equal(t, 1.0, *m.AvgFindings)
	require.NotNil(t, m.AvgHighSeverityRate)
	assert.Equal(t, 1.0, *m.AvgHighSeverityRate)
	assert.Nil(t, m.Consistency)
	require.NotNil(t, m.AvgCostUSD)
	assert.InDelta(t, 0.01, *m.AvgCostUSD, 1e-12)
}

func TestCompute_ConsistencyUsesFirstTwoRunsByRunNumber(t *testing.T) {
	records := []domain.RunRecord{
		run("m", 3, 0, "zzz"),
		run("m", 2, 0, "bbb", "ccc"),
		run("m", 1, 0, "aaa", "bbb"),
	}
	m := only(t, metrics.Compute(records))
	require.NotNil(t, m.Consistency)
	assert.InDelta(t, 0.5, *m.Consistency, 1e-9)
}

func TestCompute_TwoEmptyRunsAreConsistent(t *testing.T) {
	m := only(t, metrics.Compute([]domain.RunRecord{run("m", 1, 0), run("m", 2, 0)}))
	require.NotNil(t, m.Consistency)
	assert.Equal(t, 1.0, *m.Consistency)
	require.NotNil(t, m.AvgHighSeverityRate)
	assert.Equal(t, 0.0, *m.AvgHighSeverityRate)
}

func TestCompute_HighSeverityRate(t *testing.T) {
	a := run("m", 1, 0, "a", "b", "c")
	a.HighSeverityCount = 2
	b := run("m", 2, 0, "a", "b", "c")
	b.HighSeverityCount = 2
	m := only(t, metrics.Compute([]domain.RunRecord{a, b}))
	assert.InDelta(t, 2.0/3.0, *m.AvgHighSeverityRate, 1e-9)
}

func TestCompute_CostPerFindingAndBatchProjection(t *testing.T) {
	m := only(t, metrics.Compute([]domain.RunRecord{
		run("m", 1, 0.10, "a", "b"),
		run("m", 2, 0.10, "a", "b"),
	}))
	require.NotNil(t, m.CostPerFindingUSD)
	assert.InDelta(t, 0.05, *m.CostPerFindingUSD, 1e-12)
	require.NotNil(t, m.AvgBatchCostUSD)
	assert.InDelta(t, 0.05, *m.AvgBatchCostUSD, 1e-12)
}

func TestCompute_CostPerFindingUndefinedWithoutFindings(t *testing.T) {
	m := only(t, metrics.Compute([]domain.RunRecord{run("m", 1, 0.10)}))
	assert.Nil(t, m.CostPerFindingUSD)
	require.NotNil(t, m.AvgFindings)
	assert.Equal(t, 0.0, *m.AvgFindings)
}

func TestCompute_ZeroCostIsDefined(t *testing.T) {
	m := only(t, metrics.Compute([]domain.RunRecord{run("m", 1, 0, "a")}))
	require.NotNil(t, m.AvgCostUSD)
	assert.Equal(t, 0.0, *m.AvgCostUSD)
	require.NotNil(t, m.AvgBatchCostUSD)
	assert.Equal(t, 0.0, *m.AvgBatchCostUSD)
}

func TestCompute_DurationExcludesPlaceholders(t *testing.T) {
	zero, neg, thirty := 0.0, -1.0, 30.0
	a, b, c, d := run("m", 1, 0), run("m", 2, 0), run("m", 3, 0), run("m", 4, 0)
	a.DurationSeconds = &zero
	b.DurationSeconds = &neg
	c.DurationSeconds = &thirty
	m := only(t, metrics.Compute([]domain.RunRecord{a, b, c, d}))
	require.NotNil(t, m.AvgDurationSeconds)
	assert.Equal(t, 30.0, *m.AvgDurationSeconds)

	m = only(t, metrics.Compute([]domain.RunRecord{d}))
	assert.Nil(t, m.AvgDurationSeconds)
}

func TestCompute_GroupsByFullKey(t *testing.T) {
	a := run("m1", 1, 0)
	b := run("m2", 1, 0)
	c := run("m1", 1, 0)
	c.Repo = "flask"
	d := run("m1", 2, 0)

	ms := metrics.Compute([]domain.RunRecord{a, b, c, d})
	require.Len(t, ms, 3)
	assert.Equal(t, "gemini/m1/flask/security", ms[0].Key.String())
	assert.Equal(t, 2, ms[1].RunCount)
}

func TestCrossModelUnique(t *testing.T) {
	t.Run("no overlap", func(t *testing.T) {
		u := metrics.CrossModelUnique([]domain.RunRecord{
			run("claude-haiku-4-5", 1, 0, "aaa"),
			run("gemini-2.0-flash", 1, 0, "bbb"),
		})
		assert.Contains(t, u["claude-haiku-4-5"], "aaa")
		assert.Contains(t, u["gemini-2.0-flash"], "bbb")
	})
	t.Run("shared finding is not unique", func(t *testing.T) {
		u := metrics.CrossModelUnique([]domain.RunRecord{
			run("claude-haiku-4-5", 1, 0, "shared", "only-a"),
			run("gemini-2.0-flash", 1, 0, "shared"),
		})
		assert.NotContains(t, u["claude-haiku-4-5"], "shared")
		assert.Contains(t, u["claude-haiku-4-5"], "only-a")
		assert.Empty(t, u["gemini-2.0-flash"])
	})
	t.Run("empty corpus", func(t *testing.T) {
		assert.Empty(t, metrics.CrossModelUnique(nil))
	})
}

func TestSummarizeModels_SkipsUndefinedValues(t *testing.T) {
	groups := metrics.Compute([]domain.RunRecord{
		run("m", 1, 0.2, "a", "b"),
		run("m", 2, 0.2, "a", "b"),
		func() domain.RunRecord { r := run("m", 1, 0.2); r.Repo = "flask"; return r }(),
	})
	sums := metrics.SummarizeModels(groups)
	require.Len(t, sums, 1)
	s := sums[0]
	assert.Equal(t, 2, s.Groups)
	require.NotNil(t, s.Consistency)
	assert.Equal(t, 1.0, *s.Consistency)
	require.NotNil(t, s.CostPerFindingUSD)
	assert.InDelta(t, 0.1, *s.CostPerFindingUSD, 1e-12)
	require.NotNil(t, s.AvgFindings)
	assert.InDelta(t, 1.0, *s.AvgFindings, 1e-12)
}

func TestExcludeDryRuns(t *testing.T) {
	dry := run("m", 1, 0)
	dry.DryRun = true
	kept := metrics.ExcludeDryRuns([]domain.RunRecord{dry, run("m", 2, 0)})
	require.Len(t, kept, 1)
	assert.Equal(t, 2, kept[0].RunNumber)
}

func TestBuild_DropsDryRunsAndCountsUnique(t *testing.T) {
	dry := run("m2", 1, 0, "zzz")
	dry.DryRun = true
	sc := metrics.Build([]domain.RunRecord{
		run("m1", 1, 0.1, "aaa", "bbb"),
		run("m1", 2, 0.1, "aaa"),
		dry,
	})

	assert.Equal(t, 2, sc.RunCount)
	require.Len(t, sc.Groups, 1)
	require.Len(t, sc.Models, 1)
	assert.Equal(t, map[string]int{"m1": 2}, sc.UniqueCounts())
	assert.Equal(t, []string{"security"}, sc.Focuses())
	assert.Equal(t, []string{"requests"}, sc.Repos())

	g, ok := sc.Group(metrics.Key{Provider: "gemini", Model: "m1", Repo: "requests", Focus: "security"})
	require.True(t, ok)
	assert.Equal(t, 2, g.RunCount)
}
