package storage

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aashirjaved/biokg/pkg/kg"
	"github.com/aashirjaved/biokg/pkg/kg/metrics"
)

// Neo4jStore implements kg.Store against a Neo4j server. All writes go
// through MERGE inside a single write transaction per call, so every
// operation is conditional-create at the store level and safe to retry.
// Provenance lives on the relationship as three parallel list properties
// (document ids, evidence snippets, confidences) grown append-only, with the
// document-id list doubling as the dedup guard.
type Neo4jStore struct {
	driver  neo4j.Driver
	timeout time.Duration
	logger  *logrus.Logger
}

// Neo4jOption configures a Neo4jStore.
type Neo4jOption func(*Neo4jStore)

// WithTimeout sets the per-operation transaction timeout.
func WithTimeout(d time.Duration) Neo4jOption {
	return func(s *Neo4jStore) { s.timeout = d }
}

// WithLogger replaces the default JSON logger.
func WithLogger(l *logrus.Logger) Neo4jOption {
	return func(s *Neo4jStore) { s.logger = l }
}

// NewNeo4jStore connects a store to the given bolt URI.
func NewNeo4jStore(uri, username, password string, opts ...Neo4jOption) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Neo4j driver")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	s := &Neo4jStore{
		driver:  driver,
		timeout: 15 * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping verifies server connectivity, reporting kg.ErrStoreUnavailable when
// the server cannot be reached.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(); err != nil {
		return errors.Wrap(kg.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close() error {
	return s.driver.Close()
}

// MergeNode implements kg.Store. Existing nodes keep their attributes; only
// unseen aliases are appended.
func (s *Neo4jStore) MergeNode(ctx context.Context, e kg.Entity) error {
	cypher := `
		MERGE (e:Entity {name: $name, type: $type})
		ON CREATE SET e.aliases = $aliases, e.created_at = datetime()
		SET e.aliases = coalesce(e.aliases, []) +
		    [a IN $aliases WHERE NOT a IN coalesce(e.aliases, [])]
	`
	params := map[string]interface{}{
		"name":    e.Key.Name,
		"type":    string(e.Key.Type),
		"aliases": toInterfaceSlice(e.Aliases),
	}

	_, err := s.write(ctx, "merge_node", func(tx neo4j.Transaction) (interface{}, error) {
		return tx.Run(cypher, params)
	})
	return err
}

// MergeEdge implements kg.Store.
func (s *Neo4jStore) MergeEdge(ctx context.Context, key kg.RelationKey) (bool, error) {
	cypher := `
		MATCH (a:Entity {name: $sname, type: $stype})
		MATCH (b:Entity {name: $oname, type: $otype})
		MERGE (a)-[r:RELATION {predicate: $predicate}]->(b)
		ON CREATE SET r.created_at = datetime(),
		              r.provenance_docs = [],
		              r.evidence = [],
		              r.confidences = [],
		              r.fresh = true
		WITH r, coalesce(r.fresh, false) AS created
		REMOVE r.fresh
		RETURN created
	`
	params := relationParams(key)

	result, err := s.write(ctx, "merge_edge", func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(cypher, params)
		if err != nil {
			return nil, err
		}
		record, err := res.Single()
		if err != nil {
			return nil, err
		}
		created, _ := record.Values[0].(bool)
		return created, nil
	})
	if err != nil {
		return false, err
	}
	created, _ := result.(bool)
	return created, nil
}

// AppendProvenance implements kg.Store. The MERGE keeps the call a
// self-contained retryable unit even if the edge create was lost; the WHERE
// guard dedups by document id within the edge.
func (s *Neo4jStore) AppendProvenance(ctx context.Context, key kg.RelationKey, p kg.Provenance) error {
	cypher := `
		MERGE (a:Entity {name: $sname, type: $stype})
		MERGE (b:Entity {name: $oname, type: $otype})
		MERGE (a)-[r:RELATION {predicate: $predicate}]->(b)
		WITH r
		WHERE NOT $doc IN coalesce(r.provenance_docs, [])
		SET r.provenance_docs = coalesce(r.provenance_docs, []) + $doc,
		    r.evidence = coalesce(r.evidence, []) + $snippet,
		    r.confidences = coalesce(r.confidences, []) + $confidence
	`
	params := relationParams(key)
	params["doc"] = p.DocumentID
	params["snippet"] = p.Snippet
	params["confidence"] = p.Confidence

	_, err := s.write(ctx, "append_provenance", func(tx neo4j.Transaction) (interface{}, error) {
		return tx.Run(cypher, params)
	})
	return err
}

// LookupNode implements kg.Store. A missing node returns (nil, nil).
func (s *Neo4jStore) LookupNode(ctx context.Context, key kg.EntityKey) (*kg.Entity, error) {
	cypher := `
		MATCH (e:Entity {name: $name, type: $type})
		RETURN e.aliases
	`
	params := map[string]interface{}{
		"name": key.Name,
		"type": string(key.Type),
	}

	result, err := s.read(ctx, "lookup_node", func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(cypher, params)
		if err != nil {
			return nil, err
		}
		if !res.Next() {
			return nil, res.Err()
		}
		entity := &kg.Entity{Key: key}
		if aliases, ok := res.Record().Values[0].([]interface{}); ok {
			for _, a := range aliases {
				if str, ok := a.(string); ok {
					entity.Aliases = append(entity.Aliases, str)
				}
			}
		}
		return entity, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*kg.Entity), nil
}

// Snapshot reads the whole graph for export and analytics. Entities are read
// in their own pass so nodes without relations (possible after a cancelled or
// transiently failed triple) still appear, with their aliases.
func (s *Neo4jStore) Snapshot(ctx context.Context) (kg.GraphSnapshot, error) {
	nodesCypher := `
		MATCH (e:Entity)
		RETURN e.name, e.type, coalesce(e.aliases, [])
	`
	relsCypher := `
		MATCH (a:Entity)-[r:RELATION]->(b:Entity)
		RETURN a.name, a.type, r.predicate, b.name, b.type,
		       coalesce(r.provenance_docs, []), coalesce(r.evidence, []),
		       coalesce(r.confidences, [])
	`

	result, err := s.read(ctx, "snapshot", func(tx neo4j.Transaction) (interface{}, error) {
		snap := kg.GraphSnapshot{GeneratedAt: time.Now()}

		res, err := tx.Run(nodesCypher, nil)
		if err != nil {
			return nil, err
		}
		for res.Next() {
			snap.Entities = append(snap.Entities, snapshotEntity(res.Record().Values))
		}
		if err := res.Err(); err != nil {
			return nil, err
		}

		res, err = tx.Run(relsCypher, nil)
		if err != nil {
			return nil, err
		}
		for res.Next() {
			snap.Relations = append(snap.Relations, snapshotRelation(res.Record().Values))
		}
		return snap, res.Err()
	})
	if err != nil {
		return kg.GraphSnapshot{}, err
	}
	return result.(kg.GraphSnapshot), nil
}

// snapshotEntity maps one node record (name, type, aliases) onto the model.
func snapshotEntity(v []interface{}) kg.Entity {
	e := kg.Entity{Key: kg.EntityKey{Name: stringValue(v[0]), Type: kg.EntityType(stringValue(v[1]))}}
	if aliases, ok := v[2].([]interface{}); ok {
		for _, a := range aliases {
			if str, ok := a.(string); ok {
				e.Aliases = append(e.Aliases, str)
			}
		}
	}
	return e
}

// snapshotRelation maps one relationship record (subject, predicate, object,
// then the three parallel provenance lists) onto the model.
func snapshotRelation(v []interface{}) kg.Relation {
	rel := kg.Relation{Key: kg.RelationKey{
		Subject:   kg.EntityKey{Name: stringValue(v[0]), Type: kg.EntityType(stringValue(v[1]))},
		Predicate: stringValue(v[2]),
		Object:    kg.EntityKey{Name: stringValue(v[3]), Type: kg.EntityType(stringValue(v[4]))},
	}}
	docs, _ := v[5].([]interface{})
	evidence, _ := v[6].([]interface{})
	confidences, _ := v[7].([]interface{})
	for i, doc := range docs {
		p := kg.Provenance{DocumentID: stringValue(doc)}
		if i < len(evidence) {
			p.Snippet = stringValue(evidence[i])
		}
		if i < len(confidences) {
			p.Confidence = floatValue(confidences[i])
		}
		rel.Provenance = append(rel.Provenance, p)
	}
	return rel
}

func (s *Neo4jStore) write(ctx context.Context, op string, work neo4j.TransactionWork) (interface{}, error) {
	return s.run(ctx, op, neo4j.AccessModeWrite, work)
}

func (s *Neo4jStore) read(ctx context.Context, op string, work neo4j.TransactionWork) (interface{}, error) {
	return s.run(ctx, op, neo4j.AccessModeRead, work)
}

func (s *Neo4jStore) run(ctx context.Context, op string, mode neo4j.AccessMode, work neo4j.TransactionWork) (interface{}, error) {
	start := time.Now()
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: mode})
	defer session.Close()

	var result interface{}
	var err error
	if mode == neo4j.AccessModeWrite {
		result, err = session.WriteTransaction(work, neo4j.WithTxTimeout(s.timeout))
	} else {
		result, err = session.ReadTransaction(work, neo4j.WithTxTimeout(s.timeout))
	}

	metrics.StoreOperationDuration.WithLabelValues("neo4j", op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreErrors.WithLabelValues("neo4j", op).Inc()
		return nil, s.classify(op, err)
	}
	return result, nil
}

// classify maps driver errors onto the ingestion error taxonomy: connectivity
// problems are transient and retryable, everything else passes through.
func (s *Neo4jStore) classify(op string, err error) error {
	if neo4j.IsConnectivityError(err) || neo4j.IsTransactionExecutionLimit(err) {
		s.logger.WithError(err).WithField("operation", op).Warn("Neo4j unreachable")
		return errors.Wrap(kg.ErrStoreUnavailable, err.Error())
	}
	return errors.Wrapf(err, "neo4j %s failed", op)
}

func relationParams(key kg.RelationKey) map[string]interface{} {
	return map[string]interface{}{
		"sname":     key.Subject.Name,
		"stype":     string(key.Subject.Type),
		"oname":     key.Object.Name,
		"otype":     string(key.Object.Type),
		"predicate": key.Predicate,
	}
}

func toInterfaceSlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func floatValue(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
