package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashirjaved/biokg/pkg/kg"
)

var (
	apoe4 = kg.EntityKey{Name: "apoe4", Type: kg.EntityTypeGene}
	abeta = kg.EntityKey{Name: "amyloid-beta", Type: kg.EntityTypeProtein}
)

func relKey(predicate string) kg.RelationKey {
	return kg.RelationKey{Subject: apoe4, Predicate: predicate, Object: abeta}
}

func TestMemoryStoreMergeNode(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.MergeNode(ctx, kg.Entity{Key: apoe4}))
	require.NoError(t, s.MergeNode(ctx, kg.Entity{Key: apoe4, Aliases: []string{"apoe4 allele"}}))
	require.NoError(t, s.MergeNode(ctx, kg.Entity{Key: apoe4, Aliases: []string{"apoe4 allele", "apolipoprotein e4"}}))

	node, err := s.LookupNode(ctx, apoe4)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, []string{"apoe4 allele", "apolipoprotein e4"}, node.Aliases)

	nodes, _ := s.Counts()
	assert.Equal(t, 1, nodes)
}

func TestMemoryStoreMergeEdge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.MergeEdge(ctx, relKey("binds"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.MergeEdge(ctx, relKey("binds"))
	require.NoError(t, err)
	assert.False(t, created)

	// A different predicate is a different edge.
	created, err = s.MergeEdge(ctx, relKey("upregulates"))
	require.NoError(t, err)
	assert.True(t, created)

	_, edges := s.Counts()
	assert.Equal(t, 2, edges)
}

func TestMemoryStoreAppendProvenance(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	key := relKey("binds")

	_, err := s.MergeEdge(ctx, key)
	require.NoError(t, err)

	require.NoError(t, s.AppendProvenance(ctx, key, kg.Provenance{DocumentID: "PMID1", Snippet: "a"}))
	require.NoError(t, s.AppendProvenance(ctx, key, kg.Provenance{DocumentID: "PMID1", Snippet: "b"}))
	require.NoError(t, s.AppendProvenance(ctx, key, kg.Provenance{DocumentID: "PMID2", Snippet: "c"}))

	edge, err := s.LookupEdge(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, edge)
	require.Len(t, edge.Provenance, 2, "same document id must not append twice")
	assert.Equal(t, "PMID1", edge.Provenance[0].DocumentID)
	assert.Equal(t, "a", edge.Provenance[0].Snippet, "first observation wins")
	assert.Equal(t, "PMID2", edge.Provenance[1].DocumentID)
}

func TestMemoryStoreAppendProvenanceCreatesMissingEdge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	key := relKey("causes")

	require.NoError(t, s.AppendProvenance(ctx, key, kg.Provenance{DocumentID: "PMID1"}))

	edge, err := s.LookupEdge(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Len(t, edge.Provenance, 1)
}

func TestMemoryStoreLookupMissing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	node, err := s.LookupNode(ctx, apoe4)
	require.NoError(t, err)
	assert.Nil(t, node)

	edge, err := s.LookupEdge(ctx, relKey("binds"))
	require.NoError(t, err)
	assert.Nil(t, edge)
}

func TestMemoryStoreSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.MergeNode(ctx, kg.Entity{Key: apoe4}))
	require.NoError(t, s.MergeNode(ctx, kg.Entity{Key: abeta}))
	_, err := s.MergeEdge(ctx, relKey("binds"))
	require.NoError(t, err)
	require.NoError(t, s.AppendProvenance(ctx, relKey("binds"), kg.Provenance{DocumentID: "PMID1"}))

	snap := s.Snapshot()
	require.Len(t, snap.Entities, 2)
	require.Len(t, snap.Relations, 1)
	assert.Equal(t, apoe4, snap.Entities[0].Key, "snapshot preserves insertion order")
	assert.False(t, snap.GeneratedAt.IsZero())

	// Mutating the snapshot must not leak back into the store.
	snap.Relations[0].Provenance[0].DocumentID = "mutated"
	edge, err := s.LookupEdge(ctx, relKey("binds"))
	require.NoError(t, err)
	assert.Equal(t, "PMID1", edge.Provenance[0].DocumentID)
}
