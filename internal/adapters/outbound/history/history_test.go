package history_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/history"
	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(model, focus string) domain.RunRecord {
	return domain.RunRecord{
		Provider:      "gemini",
		Model:         model,
		Repo:          "requests",
		Focus:         focus,
		FindingsCount: 1,
		Findings:      []domain.RunFinding{{ID: "aaa", Severity: domain.SeverityLow, File: "a.py"}},
	}
}

func TestHistory_RecordAssignsRunNumbersPerGroup(t *testing.T) {
	dir := t.TempDir()
	h := history.New()

	first, err := h.Record(dir, record("gemini-2.5-flash", "security"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.RunNumber)
	assert.FileExists(t, filepath.Join(dir, "requests", "gemini-gemini-2.5-flash-security-run1.json"))

	second, err := h.Record(dir, record("gemini-2.5-flash", "security"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.RunNumber)

	other, err := h.Record(dir, record("gemini-2.5-flash", "docs"))
	require.NoError(t, err)
	assert.Equal(t, 1, other.RunNumber)
}

func TestHistory_RecordRejectsIncompleteRecord(t *testing.T) {
	_, err := history.New().Record(t.TempDir(), domain.RunRecord{Repo: "requests"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestHistory_LoadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := history.New()
	saved, err := h.Record(dir, record("m", "security"))
	require.NoError(t, err)

	records, skipped, err := h.LoadAll(dir)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, saved, records[0])
}

func TestHistory_LoadAllSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	h := history.New()
	_, err := h.Record(dir, record("m", "security"))
	require.NoError(t, err)

	nested := filepath.Join(dir, "flask", "old")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "broken.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "partial.json"), []byte(`{"provider":"gemini"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "notes.txt"), []byte("ignored"), 0644))

	records, skipped, err := h.LoadAll(dir)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	require.Len(t, skipped, 2)
	for _, e := range skipped {
		assert.ErrorIs(t, e, domain.ErrMalformedInput)
	}
}

func TestHistory_LoadAllMissingDir(t *testing.T) {
	records, skipped, err := history.New().LoadAll(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, records)
	assert.Nil(t, skipped)
}

func TestHistory_LoadAllOrdersByGroupThenRunNumber(t *testing.T) {
	dir := t.TempDir()
	h := history.New()
	for i := 0; i < 3; i++ {
		_, err := h.Record(dir, record("m", "security"))
		require.NoError(t, err)
	}

	records, _, err := h.LoadAll(dir)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, i+1, r.RunNumber)
	}
}
