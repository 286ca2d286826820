package kg

import "strings"

// Vocabulary maps free-form predicate phrasings to a controlled set of
// canonical relation labels. LLM extractors phrase the same relation many
// ways ("increases production of", "boosts", "elevates"); the vocabulary
// collapses them so edges keyed by predicate dedupe correctly. Lookups that
// miss fall back to PredicateUnknown rather than failing.
type Vocabulary struct {
	phrasings map[string]string
	labels    map[string]bool
}

// NewVocabulary builds an empty vocabulary. Most callers want
// DefaultVocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{
		phrasings: make(map[string]string),
		labels:    map[string]bool{PredicateUnknown: true},
	}
}

// Register adds phrasings for a canonical label. The label itself is always
// registered as a phrasing of itself.
func (v *Vocabulary) Register(label string, phrasings ...string) {
	v.labels[label] = true
	v.phrasings[normalizePhrase(label)] = label
	for _, p := range phrasings {
		v.phrasings[normalizePhrase(p)] = label
	}
}

// Resolve maps a raw predicate phrase to its canonical label. The boolean is
// false when the phrase is not in the vocabulary, in which case the label is
// PredicateUnknown.
func (v *Vocabulary) Resolve(predicate string) (string, bool) {
	if label, ok := v.phrasings[normalizePhrase(predicate)]; ok {
		return label, true
	}
	return PredicateUnknown, false
}

// Labels returns the canonical labels, including the unknown fallback.
func (v *Vocabulary) Labels() []string {
	out := make([]string, 0, len(v.labels))
	for l := range v.labels {
		out = append(out, l)
	}
	return out
}

// normalizePhrase folds a verb phrase the same way for registration and
// lookup: case-folded, whitespace-collapsed, underscores treated as spaces.
func normalizePhrase(phrase string) string {
	phrase = strings.ReplaceAll(phrase, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(phrase), " "))
}

// DefaultVocabulary covers the predicate phrasings observed in APOE4/amyloid
// literature extractions.
func DefaultVocabulary() *Vocabulary {
	v := NewVocabulary()
	v.Register("upregulates",
		"increases production of", "increases levels of", "increases expression of",
		"elevates", "boosts", "enhances production of", "promotes accumulation of",
		"increases")
	v.Register("downregulates",
		"decreases production of", "decreases levels of", "reduces expression of",
		"reduces", "lowers", "suppresses", "decreases")
	v.Register("associated_with",
		"is associated with", "associates with", "correlates with",
		"is linked to", "is related to", "linked to")
	v.Register("increases_risk_of",
		"is a risk factor for", "is strongest genetic risk factor for",
		"increases risk of", "increases the risk of", "predisposes to",
		"raises risk of")
	v.Register("impairs",
		"impairs", "disrupts", "interferes with", "compromises", "worsens")
	v.Register("causes",
		"causes", "leads to", "results in", "induces", "triggers", "drives")
	v.Register("protects_against",
		"protects against", "is protective against", "prevents", "mitigates")
	v.Register("inhibits",
		"inhibits", "blocks", "suppresses activity of", "antagonizes")
	v.Register("binds",
		"binds", "binds to", "interacts with", "forms complex with")
	v.Register("clears",
		"clears", "promotes clearance of", "removes", "degrades")
	return v
}
