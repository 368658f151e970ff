package domain_test

import (
	"testing"

	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingSet_IsEmpty(t *testing.T) {
	var nilSet *domain.PendingSet
	assert.True(t, nilSet.IsEmpty())
	assert.True(t, (&domain.PendingSet{}).IsEmpty())
	assert.False(t, (&domain.PendingSet{Batches: []domain.PendingBatch{{BatchID: "b"}}}).IsEmpty())
}

func TestPendingSet_AddDoesNotAlias(t *testing.T) {
	base := domain.PendingSet{Focus: "security"}
	one := base.Add(domain.PendingBatch{Repo: "a", BatchID: "1"})
	two := one.Add(domain.PendingBatch{Repo: "b", BatchID: "2"})

	assert.Empty(t, base.Batches)
	require.Len(t, one.Batches, 1)
	require.Len(t, two.Batches, 2)
	assert.Equal(t, "security", two.Focus)
}

func TestPendingSet_Without(t *testing.T) {
	set := domain.PendingSet{Batches: []domain.PendingBatch{
		{Repo: "a", BatchID: "1"}, {Repo: "b", BatchID: "2"}, {Repo: "c", BatchID: "3"},
	}}
	rest := set.Without(map[string]bool{"2": true})

	require.Len(t, rest.Batches, 2)
	assert.Equal(t, "1", rest.Batches[0].BatchID)
	assert.Equal(t, "3", rest.Batches[1].BatchID)
	assert.Len(t, set.Batches, 3)
}
