package ledger_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/ledger"
	"github.com/noxaudit/noxaudit/internal/domain"
)

func sampleSet() domain.PendingSet {
	return domain.PendingSet{
		SubmissionID: "3f1c",
		SubmittedAt:  time.Date(2026, 3, 9, 2, 0, 0, 0, time.UTC),
		Focus:        "security",
		Batches: []domain.PendingBatch{
			{Repo: "api", BatchID: "msgbatch_01", Provider: "anthropic", Model: "claude-sonnet-4-5"},
			{Repo: "web", BatchID: "batches/xyz", Provider: "gemini"},
		},
	}
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	store := ledger.New()
	path := filepath.Join(t.TempDir(), ".noxaudit", "pending-batch.json")

	original := sampleSet()
	require.NoError(t, store.Save(path, original))

	loaded, err := store.Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, original, *loaded)
}

func TestStore_SaveOverwritesAndLeavesNoTempFiles(t *testing.T) {
	store := ledger.New()
	dir := t.TempDir()
	path := filepath.Join(dir, "pending.json")

	require.NoError(t, store.Save(path, sampleSet()))
	next := sampleSet().Without(map[string]bool{"msgbatch_01": true})
	require.NoError(t, store.Save(path, next))

	loaded, err := store.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Batches, 1)
	assert.Equal(t, "web", loaded.Batches[0].Repo)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_LoadNonExistent(t *testing.T) {
	store := ledger.New()

	loaded, err := store.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_LoadCorruptIsMalformedInput(t *testing.T) {
	store := ledger.New()
	path := filepath.Join(t.TempDir(), "pending.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := store.Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	store := ledger.New()
	path := filepath.Join(t.TempDir(), "pending.json")
	require.NoError(t, store.Save(path, sampleSet()))

	require.NoError(t, store.Clear(path))
	require.NoError(t, store.Clear(path))

	loaded, err := store.Load(path)
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}
