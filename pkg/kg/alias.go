package kg

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// AliasTable maps surface forms to entity identity keys. It is explicit,
// injected state: the normalizer consults it but never mutates the store, so
// tests can run against fixture tables. Keys are stored under the canonical
// fold of each surface form.
type AliasTable struct {
	bySurface map[string]EntityKey
	byFold    map[string]EntityKey
	byFuzzy   map[string]EntityKey
	known     mapset.Set[EntityKey]
}

// NewAliasTable creates an empty table.
func NewAliasTable() *AliasTable {
	return &AliasTable{
		bySurface: make(map[string]EntityKey),
		byFold:    make(map[string]EntityKey),
		byFuzzy:   make(map[string]EntityKey),
		known:     mapset.NewSet[EntityKey](),
	}
}

// Add registers a surface form as an alias of key.
func (t *AliasTable) Add(surface string, key EntityKey) {
	fold := CanonicalName(surface)
	if fold == "" || key.IsZero() {
		return
	}
	t.bySurface[strings.TrimSpace(surface)] = key
	t.byFold[fold] = key
	t.byFuzzy[fuzzyFold(fold)] = key
	t.known.Add(key)
}

// AddEntity registers an entity's canonical name and all of its aliases.
func (t *AliasTable) AddEntity(e Entity) {
	t.Add(e.Key.Name, e.Key)
	for _, a := range e.Aliases {
		t.Add(a, e.Key)
	}
}

// LookupSurface resolves a verbatim surface form.
func (t *AliasTable) LookupSurface(surface string) (EntityKey, bool) {
	key, ok := t.bySurface[strings.TrimSpace(surface)]
	return key, ok
}

// Lookup resolves a canonically folded surface form.
func (t *AliasTable) Lookup(fold string) (EntityKey, bool) {
	key, ok := t.byFold[fold]
	return key, ok
}

// LookupFuzzy resolves a surface form with punctuation and trailing plural
// markers stripped.
func (t *AliasTable) LookupFuzzy(fold string) (EntityKey, bool) {
	key, ok := t.byFuzzy[fuzzyFold(fold)]
	return key, ok
}

// Entities returns the distinct identity keys the table knows about.
func (t *AliasTable) Entities() []EntityKey {
	return t.known.ToSlice()
}

// Len returns the number of registered surface forms.
func (t *AliasTable) Len() int {
	return len(t.bySurface)
}

// fuzzyFold folds hyphens and punctuation to spaces and strips a trailing
// plural "s" so that "amyloid-beta plaques" and "amyloid beta plaque" land on
// the same slot.
func fuzzyFold(fold string) string {
	var b strings.Builder
	for _, r := range fold {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			// strings.Fields below collapses the repeats.
			b.WriteRune(' ')
		}
	}
	words := strings.Fields(b.String())
	for i, w := range words {
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			words[i] = w[:len(w)-1]
		}
	}
	return strings.Join(words, " ")
}

// Matcher is one strategy for resolving a surface form against an alias
// table. Matchers are tried in order; the first hit wins.
type Matcher interface {
	Match(surface string, table *AliasTable) (EntityKey, bool)
}

// ExactMatcher resolves only byte-identical surface forms.
type ExactMatcher struct{}

func (ExactMatcher) Match(surface string, table *AliasTable) (EntityKey, bool) {
	return table.LookupSurface(surface)
}

// FoldMatcher resolves case- and whitespace-insensitively.
type FoldMatcher struct{}

func (FoldMatcher) Match(surface string, table *AliasTable) (EntityKey, bool) {
	return table.Lookup(CanonicalName(surface))
}

// FuzzyMatcher resolves after stripping punctuation and plural markers.
type FuzzyMatcher struct{}

func (FuzzyMatcher) Match(surface string, table *AliasTable) (EntityKey, bool) {
	return table.LookupFuzzy(CanonicalName(surface))
}

// DefaultMatchers is the standard resolution chain: exact, then fold, then
// fuzzy.
func DefaultMatchers() []Matcher {
	return []Matcher{ExactMatcher{}, FoldMatcher{}, FuzzyMatcher{}}
}
