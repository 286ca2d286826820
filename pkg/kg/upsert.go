package kg

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Store is the narrow graph-store contract the upserter depends on. Backends
// only need four operations: conditional node create-by-key, conditional edge
// create-by-key, append-to-list-property for provenance, and point lookup.
// Each operation must be atomic at the granularity of a single node or edge;
// the upserter relies on that rather than coordinating writers itself.
type Store interface {
	// MergeNode creates the entity if its identity key is absent. An existing
	// node keeps its attributes; the only permitted change is recording a new
	// alias from e.Aliases.
	MergeNode(ctx context.Context, e Entity) error

	// MergeEdge creates the edge if the relation key is absent and reports
	// whether it was created.
	MergeEdge(ctx context.Context, key RelationKey) (created bool, err error)

	// AppendProvenance appends p to the edge's provenance list unless a
	// record with the same document id is already present. Records are never
	// mutated or removed.
	AppendProvenance(ctx context.Context, key RelationKey, p Provenance) error

	// LookupNode returns the entity stored under key, or nil when absent.
	LookupNode(ctx context.Context, key EntityKey) (*Entity, error)
}

// Upserter persists normalized triples with idempotent, at-least-once-safe
// semantics. Calling Upsert twice with the same triple and provenance leaves
// the graph unchanged after the first call.
type Upserter struct {
	store  Store
	logger *logrus.Logger
}

// NewUpserter wraps a store.
func NewUpserter(store Store, logger *logrus.Logger) *Upserter {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Upserter{store: store, logger: logger}
}

// Upsert writes one normalized triple: both entities (conditionally, adding
// the surface form as an alias when it differs from the canonical name), the
// edge, and the provenance record. Returns *InvalidTripleError for empty
// identity keys and passes store errors through, so callers can classify
// transient failures with IsStoreUnavailable.
func (u *Upserter) Upsert(ctx context.Context, t NormalizedTriple) error {
	if t.Subject.IsZero() || t.Object.IsZero() {
		return &InvalidTripleError{
			Reason: "empty identity key",
			Triple: RawTriple{Subject: t.SubjectSurface, Predicate: t.Predicate, Object: t.ObjectSurface},
		}
	}

	if err := u.mergeEntity(ctx, t.Subject, t.SubjectSurface); err != nil {
		return err
	}
	if err := u.mergeEntity(ctx, t.Object, t.ObjectSurface); err != nil {
		return err
	}

	key := t.RelationKey()
	created, err := u.store.MergeEdge(ctx, key)
	if err != nil {
		return err
	}
	if created {
		u.logger.WithField("relation", key.String()).Debug("Created relation")
	}

	return u.store.AppendProvenance(ctx, key, t.Provenance.Truncated())
}

// mergeEntity conditionally creates the node, recording the surface form as
// seen (trimmed but otherwise verbatim) when it differs from the canonical
// name.
func (u *Upserter) mergeEntity(ctx context.Context, key EntityKey, surface string) error {
	e := Entity{Key: key}
	if alias := strings.TrimSpace(surface); alias != "" && alias != key.Name {
		e.Aliases = []string{alias}
	}
	return u.store.MergeNode(ctx, e)
}
