package storage

import (
	"context"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/aashirjaved/biokg/pkg/kg"
	"github.com/aashirjaved/biokg/pkg/kg/metrics"
)

// MemoryStore implements kg.Store with mutex-guarded maps. It backs tests,
// dry runs, and the JSON snapshot export. All four operations are atomic
// under a single lock, which gives it the same conditional-create guarantees
// the Neo4j backend gets from MERGE.
type MemoryStore struct {
	mutex sync.RWMutex

	nodes      map[kg.EntityKey]*kg.Entity
	edges      map[kg.RelationKey]*kg.Relation
	edgeOrder  []kg.RelationKey
	nodeOrder  []kg.EntityKey
	docsSeen   map[kg.RelationKey]mapset.Set[string]
	aliasIndex map[kg.EntityKey]mapset.Set[string]

	logger *logrus.Logger
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &MemoryStore{
		nodes:      make(map[kg.EntityKey]*kg.Entity),
		edges:      make(map[kg.RelationKey]*kg.Relation),
		docsSeen:   make(map[kg.RelationKey]mapset.Set[string]),
		aliasIndex: make(map[kg.EntityKey]mapset.Set[string]),
		logger:     logger,
	}
}

// MergeNode implements kg.Store.
func (s *MemoryStore) MergeNode(ctx context.Context, e kg.Entity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	node, exists := s.nodes[e.Key]
	if !exists {
		node = &kg.Entity{Key: e.Key}
		s.nodes[e.Key] = node
		s.nodeOrder = append(s.nodeOrder, e.Key)
		s.aliasIndex[e.Key] = mapset.NewSet[string]()
		metrics.GraphNodes.WithLabelValues(string(e.Key.Type)).Inc()
	}

	seen := s.aliasIndex[e.Key]
	for _, alias := range e.Aliases {
		if alias == node.Key.Name || seen.Contains(alias) {
			continue
		}
		seen.Add(alias)
		node.Aliases = append(node.Aliases, alias)
	}
	return nil
}

// MergeEdge implements kg.Store.
func (s *MemoryStore) MergeEdge(ctx context.Context, key kg.RelationKey) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.edges[key]; exists {
		return false, nil
	}
	s.edges[key] = &kg.Relation{Key: key}
	s.edgeOrder = append(s.edgeOrder, key)
	s.docsSeen[key] = mapset.NewSet[string]()
	metrics.GraphEdges.WithLabelValues(key.Predicate).Inc()
	return true, nil
}

// AppendProvenance implements kg.Store. Entries are deduplicated by document
// id within the edge; the edge key already fixes the predicate.
func (s *MemoryStore) AppendProvenance(ctx context.Context, key kg.RelationKey, p kg.Provenance) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	edge, exists := s.edges[key]
	if !exists {
		// MergeEdge was skipped; treat as conditional create so the append
		// stays a self-contained retryable unit.
		edge = &kg.Relation{Key: key}
		s.edges[key] = edge
		s.edgeOrder = append(s.edgeOrder, key)
		s.docsSeen[key] = mapset.NewSet[string]()
		metrics.GraphEdges.WithLabelValues(key.Predicate).Inc()
	}

	seen := s.docsSeen[key]
	if seen.Contains(p.DocumentID) {
		return nil
	}
	seen.Add(p.DocumentID)
	edge.Provenance = append(edge.Provenance, p)
	return nil
}

// LookupNode implements kg.Store.
func (s *MemoryStore) LookupNode(ctx context.Context, key kg.EntityKey) (*kg.Entity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	node, exists := s.nodes[key]
	if !exists {
		return nil, nil
	}
	cp := *node
	cp.Aliases = append([]string(nil), node.Aliases...)
	return &cp, nil
}

// LookupEdge returns the relation stored under key, or nil when absent.
func (s *MemoryStore) LookupEdge(ctx context.Context, key kg.RelationKey) (*kg.Relation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	edge, exists := s.edges[key]
	if !exists {
		return nil, nil
	}
	cp := *edge
	cp.Provenance = append([]kg.Provenance(nil), edge.Provenance...)
	return &cp, nil
}

// Snapshot returns the whole graph in insertion order, for export and for
// the analytics report.
func (s *MemoryStore) Snapshot() kg.GraphSnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snap := kg.GraphSnapshot{
		Entities:    make([]kg.Entity, 0, len(s.nodeOrder)),
		Relations:   make([]kg.Relation, 0, len(s.edgeOrder)),
		GeneratedAt: time.Now(),
	}
	for _, key := range s.nodeOrder {
		node := s.nodes[key]
		cp := *node
		cp.Aliases = append([]string(nil), node.Aliases...)
		snap.Entities = append(snap.Entities, cp)
	}
	for _, key := range s.edgeOrder {
		edge := s.edges[key]
		cp := *edge
		cp.Provenance = append([]kg.Provenance(nil), edge.Provenance...)
		snap.Relations = append(snap.Relations, cp)
	}
	return snap
}

// Counts returns node and edge totals.
func (s *MemoryStore) Counts() (nodes, edges int) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.nodes), len(s.edges)
}
