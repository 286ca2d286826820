package pubmed

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanText strips the inline markup PubMed leaves in abstract fields
// (<i>, <sup>, section tags and the like) and collapses whitespace. Returns
// an empty string for markup-only input.
func CleanText(text string) string {
	if strings.ContainsAny(text, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
