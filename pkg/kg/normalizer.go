package kg

import (
	"github.com/sirupsen/logrus"
)

// Normalizer converts raw extracted triples into canonical form: both entity
// spans resolved to stable identity keys, the predicate mapped into the
// controlled vocabulary. It maintains the injected alias table (new surface
// forms are registered as they are first seen) but never touches the store.
type Normalizer struct {
	aliases    *AliasTable
	vocab      *Vocabulary
	classifier Classifier
	matchers   []Matcher
	logger     *logrus.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClassifier replaces the default heuristic entity-type classifier.
func WithClassifier(c Classifier) NormalizerOption {
	return func(n *Normalizer) { n.classifier = c }
}

// WithMatchers replaces the default resolution chain.
func WithMatchers(matchers ...Matcher) NormalizerOption {
	return func(n *Normalizer) { n.matchers = matchers }
}

// WithNormalizerLogger replaces the default JSON logger.
func WithNormalizerLogger(l *logrus.Logger) NormalizerOption {
	return func(n *Normalizer) { n.logger = l }
}

// NewNormalizer creates a normalizer over the given alias table and
// vocabulary. Nil arguments get empty/default instances.
func NewNormalizer(aliases *AliasTable, vocab *Vocabulary, opts ...NormalizerOption) *Normalizer {
	if aliases == nil {
		aliases = NewAliasTable()
	}
	if vocab == nil {
		vocab = DefaultVocabulary()
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	n := &Normalizer{
		aliases:    aliases,
		vocab:      vocab,
		classifier: NewHeuristicClassifier(),
		matchers:   DefaultMatchers(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize canonicalizes a raw triple. It returns an *InvalidTripleError
// when subject or object canonicalizes to an empty name; an unmapped
// predicate is not an error and maps to PredicateUnknown.
func (n *Normalizer) Normalize(t RawTriple) (NormalizedTriple, error) {
	subject, err := n.resolveEntity(t.Subject)
	if err != nil {
		return NormalizedTriple{}, &InvalidTripleError{Reason: "empty subject", Triple: t}
	}
	object, err := n.resolveEntity(t.Object)
	if err != nil {
		return NormalizedTriple{}, &InvalidTripleError{Reason: "empty object", Triple: t}
	}

	predicate, mapped := n.vocab.Resolve(t.Predicate)
	if !mapped {
		n.logger.WithFields(logrus.Fields{
			"predicate": t.Predicate,
			"doc_id":    t.Provenance.DocumentID,
		}).Debug("Predicate not in vocabulary, storing as unknown")
	}

	return NormalizedTriple{
		Subject:        subject,
		Object:         object,
		Predicate:      predicate,
		SubjectSurface: t.Subject,
		ObjectSurface:  t.Object,
		Provenance:     t.Provenance.Truncated(),
	}, nil
}

// ResolveEntity resolves a single surface form the same way Normalize does,
// without creating a triple. Exposed for alias-table maintenance passes.
func (n *Normalizer) ResolveEntity(surface string) (EntityKey, error) {
	return n.resolveEntity(surface)
}

var errEmptySurface = &InvalidTripleError{Reason: "empty surface form"}

func (n *Normalizer) resolveEntity(surface string) (EntityKey, error) {
	for _, m := range n.matchers {
		if key, ok := m.Match(surface, n.aliases); ok {
			return key, nil
		}
	}

	name := CanonicalName(surface)
	if name == "" {
		return EntityKey{}, errEmptySurface
	}

	// First sighting: mint an identity and remember the surface so later
	// variants of it resolve to the same key.
	key := EntityKey{Name: name, Type: n.classifier.Classify(name)}
	n.aliases.Add(surface, key)
	return key, nil
}
