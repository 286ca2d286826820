package kg

import (
	"sort"
)

// DegreeCentrality computes normalized degree centrality over a snapshot,
// treating edges as undirected. The score for a node is its degree divided by
// (n-1), so a node connected to every other node scores 1.
func DegreeCentrality(snap GraphSnapshot) map[EntityKey]float64 {
	degrees := make(map[EntityKey]int)
	for _, e := range snap.Entities {
		degrees[e.Key] = 0
	}
	for _, r := range snap.Relations {
		degrees[r.Key.Subject]++
		degrees[r.Key.Object]++
	}

	n := len(degrees)
	scores := make(map[EntityKey]float64, n)
	if n <= 1 {
		for key := range degrees {
			scores[key] = 0
		}
		return scores
	}
	for key, d := range degrees {
		scores[key] = float64(d) / float64(n-1)
	}
	return scores
}

// RankedEntity pairs an entity key with an analytics score.
type RankedEntity struct {
	Key   EntityKey
	Score float64
}

// TopByDegree returns the limit highest-degree entities, ties broken by key
// name for stable output.
func TopByDegree(snap GraphSnapshot, limit int) []RankedEntity {
	scores := DegreeCentrality(snap)
	ranked := make([]RankedEntity, 0, len(scores))
	for key, score := range scores {
		ranked = append(ranked, RankedEntity{Key: key, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Key.Name < ranked[j].Key.Name
	})
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

// Neighbors lists the relations touching an entity, outgoing and incoming.
func Neighbors(snap GraphSnapshot, key EntityKey) []Relation {
	var out []Relation
	for _, r := range snap.Relations {
		if r.Key.Subject == key || r.Key.Object == key {
			out = append(out, r)
		}
	}
	return out
}
