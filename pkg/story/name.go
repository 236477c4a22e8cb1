package story

import "strings"

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"with": {}, "by": {}, "from": {}, "as": {}, "it": {}, "its": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "their": {},
	"his": {}, "her": {}, "he": {}, "she": {}, "they": {}, "we": {},
	"about": {}, "into": {}, "over": {}, "after": {}, "where": {},
	"who": {}, "which": {}, "while": {}, "when": {},
}

// Name derives a short story title: the first three words of the summary
// that are not stopwords. Empty input yields an empty title.
func Name(summary string) string {
	var picked []string
	for _, word := range strings.Fields(summary) {
		key := strings.ToLower(strings.Trim(word, ".,!?;:\"'"))
		if _, skip := stopwords[key]; skip || key == "" {
			continue
		}
		picked = append(picked, word)
		if len(picked) == 3 {
			break
		}
	}
	return strings.Join(picked, " ")
}
