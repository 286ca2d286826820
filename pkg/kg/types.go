package kg

import (
	"fmt"
	"strings"
	"time"
)

// EntityType classifies a biomedical concept node.
type EntityType string

const (
	EntityTypeGene      EntityType = "Gene"
	EntityTypeProtein   EntityType = "Protein"
	EntityTypeDisease   EntityType = "Disease"
	EntityTypePathology EntityType = "Pathology"
	EntityTypeSymptom   EntityType = "Symptom"
	EntityTypeOther     EntityType = "Other"
)

// PredicateUnknown is the fallback label for predicates the controlled
// vocabulary does not cover. Relations are never dropped for an unmapped
// predicate; they are stored under this label instead.
const PredicateUnknown = "unknown"

// EntityKey is the identity key of an entity: canonical name plus type.
// Two surface forms that canonicalize to the same key refer to the same node.
type EntityKey struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// IsZero reports whether the key is unusable (empty canonical name).
func (k EntityKey) IsZero() bool {
	return k.Name == ""
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%s|%s", k.Name, k.Type)
}

// Entity is a node in the knowledge graph. Aliases collects the distinct
// surface forms that resolved to this entity, in first-seen order.
type Entity struct {
	Key     EntityKey `json:"key"`
	Aliases []string  `json:"aliases,omitempty"`
}

// RelationKey identifies a directed, typed edge between two entities.
type RelationKey struct {
	Subject   EntityKey `json:"subject"`
	Predicate string    `json:"predicate"`
	Object    EntityKey `json:"object"`
}

func (k RelationKey) String() string {
	return fmt.Sprintf("%s-[%s]->%s", k.Subject, k.Predicate, k.Object)
}

// Provenance records where a relation was observed. Records are append-only:
// once attached to a relation they are never mutated or removed.
type Provenance struct {
	DocumentID string  `json:"document_id"`
	Snippet    string  `json:"snippet,omitempty"`
	Confidence float64 `json:"confidence,omitempty"` // 0 when the extractor reported none
}

// snippetLimit bounds stored evidence text, in runes.
const snippetLimit = 180

// Truncated returns a copy with the snippet clipped to the storage limit.
func (p Provenance) Truncated() Provenance {
	if r := []rune(p.Snippet); len(r) > snippetLimit {
		p.Snippet = string(r[:snippetLimit])
	}
	return p
}

// Relation is an edge plus its accumulated provenance.
type Relation struct {
	Key        RelationKey  `json:"key"`
	Provenance []Provenance `json:"provenance,omitempty"`
}

// RawTriple is an unnormalized (subject, predicate, object) statement as
// produced by an extractor. All three text fields are untrusted free form.
type RawTriple struct {
	Subject    string     `json:"subject"`
	Predicate  string     `json:"predicate"`
	Object     string     `json:"object"`
	Provenance Provenance `json:"provenance"`
}

// NormalizedTriple is a triple after entity resolution and predicate
// canonicalization, ready for upserting. The surface fields keep the original
// spans so the upserter can record them as aliases.
type NormalizedTriple struct {
	Subject        EntityKey
	Object         EntityKey
	Predicate      string
	SubjectSurface string
	ObjectSurface  string
	Provenance     Provenance
}

// RelationKey returns the edge identity of the normalized triple.
func (t NormalizedTriple) RelationKey() RelationKey {
	return RelationKey{Subject: t.Subject, Predicate: t.Predicate, Object: t.Object}
}

// GraphSnapshot is a serializable view of the whole graph, consumed by the
// visualization layer and the JSON store.
type GraphSnapshot struct {
	Entities    []Entity   `json:"entities"`
	Relations   []Relation `json:"relations"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// CanonicalName applies the fixed canonicalization rule: trim, collapse
// internal whitespace, lower-case fold.
func CanonicalName(surface string) string {
	return strings.ToLower(strings.Join(strings.Fields(surface), " "))
}
