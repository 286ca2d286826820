package kg

import "strings"

// Classifier infers an entity type for a canonical name. Implementations are
// pluggable; the default is a substring heuristic good enough for the
// APOE4/amyloid corpus.
type Classifier interface {
	Classify(name string) EntityType
}

// HeuristicClassifier types entities by keyword. Matching is first-hit in
// declaration order, so more specific cues must precede generic ones.
type HeuristicClassifier struct {
	rules []classifierRule
}

type classifierRule struct {
	keywords   []string
	entityType EntityType
}

// NewHeuristicClassifier builds the default keyword classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{
		rules: []classifierRule{
			{[]string{"apoe", "psen", "app gene", "trem2", "allele", "gene", "variant"}, EntityTypeGene},
			{[]string{"plaque", "tangle", "atrophy", "clearance", "neurodegeneration", "inflammation", "pathology"}, EntityTypePathology},
			{[]string{"amyloid", "tau", "abeta", "a-beta", "protein", "peptide", "apolipoprotein"}, EntityTypeProtein},
			{[]string{"alzheimer", "dementia", "disease", "disorder", "syndrome"}, EntityTypeDisease},
			{[]string{"memory", "cognitive", "decline", "impairment", "deficit"}, EntityTypeSymptom},
		},
	}
}

// Classify returns the first rule whose keyword occurs in the name, falling
// back to Other.
func (c *HeuristicClassifier) Classify(name string) EntityType {
	lower := strings.ToLower(name)
	for _, rule := range c.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.entityType
			}
		}
	}
	return EntityTypeOther
}
