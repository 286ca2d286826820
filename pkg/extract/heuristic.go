package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/sirupsen/logrus"

	"github.com/aashirjaved/biokg/pkg/kg"
)

// Biomedical surface patterns for the APOE4/amyloid corpus. First match per
// position wins.
var entityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bAPOE[ -]?(?:4|e4|ε4)(?:\s+allele)?\b`),
	regexp.MustCompile(`(?i)\bamyloid[- ]?beta(?:\s+(?:plaques?|clearance|accumulation))?\b`),
	regexp.MustCompile(`(?i)\bA[βb]\d{0,2}\b`),
	regexp.MustCompile(`(?i)\btau(?:\s+(?:protein|tangles?|pathology))?\b`),
	regexp.MustCompile(`(?i)\bAlzheimer'?s?\s+disease\b`),
	regexp.MustCompile(`(?i)\bdementia\b`),
	regexp.MustCompile(`(?i)\bcognitive\s+(?:decline|impairment)\b`),
	regexp.MustCompile(`(?i)\bneuroinflammation\b`),
	regexp.MustCompile(`(?i)\bPSEN[12]\b`),
	regexp.MustCompile(`(?i)\bTREM2\b`),
}

// HeuristicExtractor is the offline fallback when no LLM endpoint is
// configured. It segments text with prose, finds known biomedical surface
// forms per sentence, and takes the span between the first two mentions as
// the predicate phrase. Much noisier than the LLM path, but the normalizer's
// vocabulary and the unknown-predicate fallback absorb that.
type HeuristicExtractor struct {
	logger *logrus.Logger
}

// NewHeuristicExtractor creates the fallback extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &HeuristicExtractor{logger: logger}
}

// Extract implements Extractor.
func (e *HeuristicExtractor) Extract(ctx context.Context, docID, text string) ([]kg.RawTriple, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, err
	}

	var triples []kg.RawTriple
	for _, sent := range doc.Sentences() {
		select {
		case <-ctx.Done():
			return triples, ctx.Err()
		default:
		}

		mentions := findMentions(sent.Text)
		if len(mentions) < 2 {
			continue
		}

		subject, object := mentions[0], mentions[1]
		predicate := strings.TrimSpace(sent.Text[subject.end:object.start])
		predicate = strings.Trim(predicate, ",;:")
		if predicate == "" || len(strings.Fields(predicate)) > 8 {
			continue
		}

		triples = append(triples, kg.RawTriple{
			Subject:   subject.text,
			Predicate: predicate,
			Object:    object.text,
			Provenance: kg.Provenance{
				DocumentID: docID,
				Snippet:    sent.Text,
				Confidence: 0.5,
			},
		})
	}

	e.logger.WithFields(logrus.Fields{
		"doc_id":  docID,
		"triples": len(triples),
	}).Debug("Heuristic extraction completed")
	return triples, nil
}

type mention struct {
	text  string
	start int
	end   int
}

// findMentions locates known entity surface forms in sentence order,
// dropping overlapping matches.
func findMentions(sentence string) []mention {
	var mentions []mention
	for _, re := range entityPatterns {
		for _, loc := range re.FindAllStringIndex(sentence, -1) {
			mentions = append(mentions, mention{
				text:  sentence[loc[0]:loc[1]],
				start: loc[0],
				end:   loc[1],
			})
		}
	}

	// Sort by position, then drop overlaps keeping the earliest.
	for i := 0; i < len(mentions); i++ {
		for j := i + 1; j < len(mentions); j++ {
			if mentions[j].start < mentions[i].start {
				mentions[i], mentions[j] = mentions[j], mentions[i]
			}
		}
	}
	out := mentions[:0]
	lastEnd := -1
	for _, m := range mentions {
		if m.start >= lastEnd {
			out = append(out, m)
			lastEnd = m.end
		}
	}
	return out
}
