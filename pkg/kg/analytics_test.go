package kg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() GraphSnapshot {
	apoe := EntityKey{Name: "apoe4", Type: EntityTypeGene}
	abeta := EntityKey{Name: "amyloid-beta", Type: EntityTypeProtein}
	ad := EntityKey{Name: "alzheimer's disease", Type: EntityTypeDisease}

	return GraphSnapshot{
		Entities: []Entity{{Key: apoe}, {Key: abeta}, {Key: ad}},
		Relations: []Relation{
			{Key: RelationKey{Subject: apoe, Predicate: "upregulates", Object: abeta}},
			{Key: RelationKey{Subject: apoe, Predicate: "increases_risk_of", Object: ad}},
		},
	}
}

func TestDegreeCentrality(t *testing.T) {
	snap := testSnapshot()
	scores := DegreeCentrality(snap)

	apoe := EntityKey{Name: "apoe4", Type: EntityTypeGene}
	assert.InDelta(t, 1.0, scores[apoe], 1e-9, "apoe4 touches both other nodes")
	assert.InDelta(t, 0.5, scores[EntityKey{Name: "amyloid-beta", Type: EntityTypeProtein}], 1e-9)
}

func TestTopByDegree(t *testing.T) {
	ranked := TopByDegree(testSnapshot(), 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "apoe4", ranked[0].Key.Name)
	assert.True(t, ranked[0].Score >= ranked[1].Score)
}

func TestNeighbors(t *testing.T) {
	snap := testSnapshot()
	abeta := EntityKey{Name: "amyloid-beta", Type: EntityTypeProtein}

	neighbors := Neighbors(snap, abeta)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "upregulates", neighbors[0].Key.Predicate)
}

func TestDegreeCentralitySingleNode(t *testing.T) {
	snap := GraphSnapshot{Entities: []Entity{{Key: EntityKey{Name: "apoe4", Type: EntityTypeGene}}}}
	scores := DegreeCentrality(snap)
	assert.Equal(t, 0.0, scores[EntityKey{Name: "apoe4", Type: EntityTypeGene}])
}
