package catalog

import "strings"

// ExclusionSet lists capitalized common words that must never be flagged as
// proper-noun candidates. Sentence-initial pronouns, imperatives, and
// adverbs are the classic false positives; the set ships with the catalog
// so it can be tuned and tested in isolation.
type ExclusionSet struct {
	Pronouns     []string `yaml:"pronouns"`
	Imperatives  []string `yaml:"imperatives"`
	Adverbs      []string `yaml:"adverbs"`
	Determiners  []string `yaml:"determiners"`
	Conjunctions []string `yaml:"conjunctions"`
	Contractions []string `yaml:"contractions"`

	index map[string]bool
}

// build folds every list into one case-insensitive lookup index.
func (e *ExclusionSet) build() {
	e.index = make(map[string]bool)
	for _, list := range [][]string{
		e.Pronouns, e.Imperatives, e.Adverbs,
		e.Determiners, e.Conjunctions, e.Contractions,
	} {
		for _, word := range list {
			e.index[normalizeWord(word)] = true
		}
	}
}

// Excluded reports whether a word belongs to the exclusion set. Matching is
// case-insensitive and tolerates curly apostrophes.
func (e *ExclusionSet) Excluded(word string) bool {
	if e.index == nil {
		e.build()
	}
	return e.index[normalizeWord(word)]
}

// Len returns the number of distinct excluded words.
func (e *ExclusionSet) Len() int {
	if e.index == nil {
		e.build()
	}
	return len(e.index)
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.ReplaceAll(word, "’", "'"))
}
