package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashirjaved/biokg/pkg/kg"
)

func TestSnapshotEntityCarriesAliases(t *testing.T) {
	e := snapshotEntity([]interface{}{
		"apoe4", "Gene", []interface{}{"APOE4", "apolipoprotein e4"},
	})
	assert.Equal(t, apoe4, e.Key)
	assert.Equal(t, []string{"APOE4", "apolipoprotein e4"}, e.Aliases)

	// A node that never collected aliases yields an empty list, not a crash.
	bare := snapshotEntity([]interface{}{"amyloid-beta", "Protein", []interface{}{}})
	assert.Equal(t, abeta, bare.Key)
	assert.Empty(t, bare.Aliases)
}

func TestSnapshotRelationCarriesConfidences(t *testing.T) {
	rel := snapshotRelation([]interface{}{
		"apoe4", "Gene", "impairs", "amyloid-beta", "Protein",
		[]interface{}{"PMID1", "PMID2"},
		[]interface{}{"first snippet", "second snippet"},
		[]interface{}{0.9, 0.4},
	})

	assert.Equal(t, relKey("impairs"), rel.Key)
	require.Len(t, rel.Provenance, 2)
	assert.Equal(t, kg.Provenance{DocumentID: "PMID1", Snippet: "first snippet", Confidence: 0.9}, rel.Provenance[0])
	assert.Equal(t, kg.Provenance{DocumentID: "PMID2", Snippet: "second snippet", Confidence: 0.4}, rel.Provenance[1])
}

func TestSnapshotRelationToleratesShortLists(t *testing.T) {
	// Records written before confidence tracking carry shorter parallel lists.
	rel := snapshotRelation([]interface{}{
		"apoe4", "Gene", "binds", "amyloid-beta", "Protein",
		[]interface{}{"PMID1"},
		[]interface{}{},
		[]interface{}{},
	})

	require.Len(t, rel.Provenance, 1)
	assert.Equal(t, kg.Provenance{DocumentID: "PMID1"}, rel.Provenance[0])
}
