package kg_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashirjaved/biokg/pkg/kg"
	"github.com/aashirjaved/biokg/pkg/kg/storage"
)

func newIngestor(store kg.Store) *kg.Ingestor {
	normalizer := kg.NewNormalizer(kg.NewAliasTable(), kg.DefaultVocabulary())
	return kg.NewIngestor(normalizer, store, kg.WithRetries(1, time.Millisecond))
}

func rawTriple(subject, predicate, object, doc string) kg.RawTriple {
	return kg.RawTriple{
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Provenance: kg.Provenance{DocumentID: doc, Snippet: subject + " " + predicate + " " + object},
	}
}

func TestIngestIdempotence(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newIngestor(store)
	ctx := context.Background()

	triple := rawTriple("APOE4", "increases production of", "amyloid-beta", "PMID123")
	for i := 0; i < 3; i++ {
		outcomes, err := ing.Run(ctx, []kg.RawTriple{triple})
		require.NoError(t, err)
		require.Equal(t, kg.StatusSuccess, outcomes[0].Status)
	}

	nodes, edges := store.Counts()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)

	edge, err := store.LookupEdge(ctx, kg.RelationKey{
		Subject:   kg.EntityKey{Name: "apoe4", Type: kg.EntityTypeGene},
		Predicate: "upregulates",
		Object:    kg.EntityKey{Name: "amyloid-beta", Type: kg.EntityTypeProtein},
	})
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Len(t, edge.Provenance, 1, "repeated ingestion must not duplicate provenance")
}

func TestIngestProvenanceAccumulation(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newIngestor(store)
	ctx := context.Background()

	_, err := ing.Run(ctx, []kg.RawTriple{
		rawTriple("APOE4", "impairs", "clearance of amyloid-beta", "PMID1"),
		rawTriple("APOE4", "impairs", "clearance of amyloid-beta", "PMID2"),
	})
	require.NoError(t, err)

	edge, err := store.LookupEdge(ctx, kg.RelationKey{
		Subject:   kg.EntityKey{Name: "apoe4", Type: kg.EntityTypeGene},
		Predicate: "impairs",
		Object:    kg.EntityKey{Name: "clearance of amyloid-beta", Type: kg.EntityTypePathology},
	})
	require.NoError(t, err)
	require.NotNil(t, edge)
	require.Len(t, edge.Provenance, 2)
	// Order matches ingestion order.
	assert.Equal(t, "PMID1", edge.Provenance[0].DocumentID)
	assert.Equal(t, "PMID2", edge.Provenance[1].DocumentID)
}

func TestIngestBatchIsolation(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newIngestor(store)

	batch := []kg.RawTriple{
		rawTriple("APOE4", "causes", "dementia", "PMID1"),
		rawTriple("amyloid-beta", "is associated with", "alzheimer's disease", "PMID2"),
		rawTriple("", "causes", "dementia", "PMID3"), // empty subject
		rawTriple("tau", "correlates with", "cognitive decline", "PMID4"),
		rawTriple("APOE4", "binds to", "amyloid-beta", "PMID5"),
	}

	outcomes, err := ing.Run(context.Background(), batch)
	require.NoError(t, err, "one malformed triple must not abort the batch")
	require.Len(t, outcomes, 5)

	assert.Equal(t, 4, kg.Successes(outcomes))
	assert.Equal(t, kg.StatusSkipped, outcomes[2].Status)
	assert.True(t, kg.IsInvalidTriple(outcomes[2].Err))
}

func TestIngestUnknownPredicateIsSuccess(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newIngestor(store)

	outcomes, err := ing.Run(context.Background(), []kg.RawTriple{
		rawTriple("APOE4", "dances with", "amyloid-beta", "PMID1"),
	})
	require.NoError(t, err)
	require.Equal(t, kg.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, kg.PredicateUnknown, outcomes[0].Normalized.Predicate)
}

func TestIngestCancellation(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newIngestor(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := ing.Run(ctx, []kg.RawTriple{
		rawTriple("APOE4", "causes", "dementia", "PMID1"),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outcomes)
}

// unavailableStore fails every write with a transient store error.
type unavailableStore struct{}

func (unavailableStore) MergeNode(ctx context.Context, e kg.Entity) error {
	return errors.Wrap(kg.ErrStoreUnavailable, "connection refused")
}

func (unavailableStore) MergeEdge(ctx context.Context, key kg.RelationKey) (bool, error) {
	return false, errors.Wrap(kg.ErrStoreUnavailable, "connection refused")
}

func (unavailableStore) AppendProvenance(ctx context.Context, key kg.RelationKey, p kg.Provenance) error {
	return errors.Wrap(kg.ErrStoreUnavailable, "connection refused")
}

func (unavailableStore) LookupNode(ctx context.Context, key kg.EntityKey) (*kg.Entity, error) {
	return nil, errors.Wrap(kg.ErrStoreUnavailable, "connection refused")
}

func TestIngestStoreUnavailableAbortsBatch(t *testing.T) {
	ing := newIngestor(unavailableStore{})

	outcomes, err := ing.Run(context.Background(), []kg.RawTriple{
		rawTriple("APOE4", "causes", "dementia", "PMID1"),
		rawTriple("tau", "causes", "dementia", "PMID2"),
	})
	require.Error(t, err)
	assert.True(t, kg.IsStoreUnavailable(err))
	// First triple failed after retries, second was never attempted.
	require.Len(t, outcomes, 1)
	assert.Equal(t, kg.StatusFailed, outcomes[0].Status)
}

func TestIngestStream(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newIngestor(store)

	in := make(chan kg.RawTriple, 2)
	in <- rawTriple("APOE4", "causes", "dementia", "PMID1")
	in <- rawTriple("", "causes", "dementia", "PMID2")
	close(in)

	var outcomes []kg.Outcome
	for o := range ing.Stream(context.Background(), in) {
		outcomes = append(outcomes, o)
	}

	require.Len(t, outcomes, 2)
	assert.Equal(t, kg.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, kg.StatusSkipped, outcomes[1].Status)
}

func TestUpserterRecordsSurfaceAliases(t *testing.T) {
	store := storage.NewMemoryStore()
	upserter := kg.NewUpserter(store, nil)
	ctx := context.Background()

	err := upserter.Upsert(ctx, kg.NormalizedTriple{
		Subject:        kg.EntityKey{Name: "apoe4", Type: kg.EntityTypeGene},
		Object:         kg.EntityKey{Name: "amyloid-beta", Type: kg.EntityTypeProtein},
		Predicate:      "binds",
		SubjectSurface: "APOE4 Allele",
		ObjectSurface:  "amyloid-beta",
		Provenance:     kg.Provenance{DocumentID: "PMID9"},
	})
	require.NoError(t, err)

	// The alias is the surface form as seen, not its canonical fold.
	node, err := store.LookupNode(ctx, kg.EntityKey{Name: "apoe4", Type: kg.EntityTypeGene})
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, []string{"APOE4 Allele"}, node.Aliases)

	// The object surface equals the canonical name, so no alias is recorded.
	node, err = store.LookupNode(ctx, kg.EntityKey{Name: "amyloid-beta", Type: kg.EntityTypeProtein})
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Empty(t, node.Aliases)

	// A case variant of the canonical name is itself a distinct surface form.
	err = upserter.Upsert(ctx, kg.NormalizedTriple{
		Subject:        kg.EntityKey{Name: "apoe4", Type: kg.EntityTypeGene},
		Object:         kg.EntityKey{Name: "dementia", Type: kg.EntityTypeDisease},
		Predicate:      "causes",
		SubjectSurface: " APOE4 ",
		ObjectSurface:  "dementia",
		Provenance:     kg.Provenance{DocumentID: "PMID10"},
	})
	require.NoError(t, err)

	node, err = store.LookupNode(ctx, kg.EntityKey{Name: "apoe4", Type: kg.EntityTypeGene})
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, []string{"APOE4 Allele", "APOE4"}, node.Aliases)
}

func TestUpserterRejectsEmptyKeys(t *testing.T) {
	upserter := kg.NewUpserter(storage.NewMemoryStore(), nil)

	err := upserter.Upsert(context.Background(), kg.NormalizedTriple{
		Subject:   kg.EntityKey{},
		Object:    kg.EntityKey{Name: "dementia", Type: kg.EntityTypeDisease},
		Predicate: "causes",
	})
	require.Error(t, err)
	assert.True(t, kg.IsInvalidTriple(err))
}
