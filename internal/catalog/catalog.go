// Package catalog loads the declarative pattern catalog: the ordered rule
// list, the proper-noun exclusion set, and the confidence threshold. A
// catalog is an immutable value injected into the detector and the gate;
// malformed catalogs fail at load time, before any detection runs.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// ErrCatalogInvalid wraps every rule validation failure raised at load time.
var ErrCatalogInvalid = errors.New("pattern catalog invalid")

// Trigger kinds a rule may declare.
const (
	TriggerPhrase     = "phrase"
	TriggerTemplate   = "template"
	TriggerStructural = "structural"
)

// Structural check names.
const (
	CheckSentenceLength      = "sentence-length"
	CheckRepeatedWord        = "repeated-word"
	CheckProperNounCandidate = "proper-noun-candidate"
	CheckStraightQuotes      = "straight-quotes"
	CheckDoubleSpace         = "double-space"
)

// AppliesTo values for sentence-length checks.
const (
	AppliesDialogue  = "dialogue"
	AppliesNarration = "narration"
)

// verbSlot is the single capture slot a template phrase must contain.
const verbSlot = "{verb}"

// Rule is one declarative catalog entry. Confidence is static per rule and
// reflects the rule's precision, not per-instance certainty.
type Rule struct {
	// ID uniquely identifies the rule within the catalog
	ID string `yaml:"id"`

	// Kind groups issues for reporting (e.g. "style/filler")
	Kind string `yaml:"kind"`

	// Trigger is one of phrase, template, or structural
	Trigger string `yaml:"trigger"`

	// Phrase is the literal or templated text to match
	Phrase string `yaml:"phrase,omitempty"`

	// Replace is the suggested correction; empty when no safe fix exists.
	// Template rules may reference {verb} or {verb:past}.
	Replace string `yaml:"replace,omitempty"`

	// Check names a structural check for structural rules
	Check string `yaml:"check,omitempty"`

	// AppliesTo scopes sentence-length checks to dialogue or narration
	AppliesTo string `yaml:"applies_to,omitempty"`

	// Limit is the hard cap in words for sentence-length checks
	Limit int `yaml:"limit,omitempty"`

	// Severity is one of low, medium, high, critical
	Severity string `yaml:"severity"`

	// Confidence is the rule's static confidence in [0,1]
	Confidence float64 `yaml:"confidence"`

	// Note documents the rule for report output
	Note string `yaml:"note,omitempty"`

	severity lint.Severity
	re       *regexp.Regexp
}

// Level returns the parsed severity.
func (r *Rule) Level() lint.Severity { return r.severity }

// Pattern returns the compiled trigger regexp for phrase and template
// rules, nil for structural rules.
func (r *Rule) Pattern() *regexp.Regexp { return r.re }

// compile validates the rule and builds its matcher.
func (r *Rule) compile() error {
	if r.ID == "" {
		return fmt.Errorf("rule missing id")
	}
	if r.Kind == "" {
		return fmt.Errorf("rule %s: missing kind", r.ID)
	}
	sev, ok := lint.ParseSeverity(r.Severity)
	if !ok {
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
	}
	r.severity = sev
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("rule %s: confidence %v outside [0,1]", r.ID, r.Confidence)
	}

	switch r.Trigger {
	case TriggerPhrase:
		if r.Phrase == "" {
			return fmt.Errorf("rule %s: phrase trigger without phrase", r.ID)
		}
		re, err := compilePhrase(r.Phrase)
		if err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		r.re = re
		if r.Replace != "" && r.re.MatchString(r.Replace) {
			return fmt.Errorf("rule %s: replacement re-triggers the rule", r.ID)
		}
	case TriggerTemplate:
		if strings.Count(r.Phrase, verbSlot) != 1 {
			return fmt.Errorf("rule %s: template phrase needs exactly one %s slot", r.ID, verbSlot)
		}
		if err := checkReplaceTokens(r.Replace); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		re, err := compileTemplate(r.Phrase)
		if err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		r.re = re
		if r.Replace != "" {
			for _, verb := range []string{"feel", "walk", "smile"} {
				if r.re.MatchString(expandReplace(r.Replace, verb)) {
					return fmt.Errorf("rule %s: replacement re-triggers the rule", r.ID)
				}
			}
		}
	case TriggerStructural:
		switch r.Check {
		case CheckSentenceLength:
			if r.Limit <= 0 {
				return fmt.Errorf("rule %s: sentence-length check needs a positive limit", r.ID)
			}
			if r.AppliesTo != AppliesDialogue && r.AppliesTo != AppliesNarration {
				return fmt.Errorf("rule %s: sentence-length applies_to must be dialogue or narration", r.ID)
			}
		case CheckRepeatedWord, CheckProperNounCandidate, CheckStraightQuotes, CheckDoubleSpace:
		case "":
			return fmt.Errorf("rule %s: structural trigger without check", r.ID)
		default:
			return fmt.Errorf("rule %s: unknown structural check %q", r.ID, r.Check)
		}
	case "":
		return fmt.Errorf("rule %s: missing trigger", r.ID)
	default:
		return fmt.Errorf("rule %s: unknown trigger %q", r.ID, r.Trigger)
	}
	return nil
}

// compilePhrase builds a case-insensitive word-boundary matcher for a
// literal phrase. Apostrophes match both straight and curly forms, and
// interior whitespace tolerates soft wraps.
func compilePhrase(phrase string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)` + boundaryPrefix(phrase) + quotePhrase(phrase) + boundarySuffix(phrase))
}

// compileTemplate builds the matcher for a template phrase, capturing the
// {verb} slot as group 1.
func compileTemplate(phrase string) (*regexp.Regexp, error) {
	head, tail, _ := strings.Cut(phrase, verbSlot)
	expr := `(?i)`
	if head == "" {
		expr += `\b`
	} else {
		expr += boundaryPrefix(head) + quotePhrase(head)
	}
	expr += `(\p{L}+)`
	if tail != "" {
		expr += quotePhrase(tail) + boundarySuffix(tail)
	} else {
		expr += `\b`
	}
	return regexp.Compile(expr)
}

var apostrophes = regexp.MustCompile("['’]")

// quotePhrase escapes a phrase fragment for regexp use. Both apostrophe
// forms rewrite in a single pass; sequential ReplaceAll calls would
// corrupt each other's output.
func quotePhrase(s string) string {
	quoted := regexp.QuoteMeta(s)
	quoted = apostrophes.ReplaceAllString(quoted, "['’]")
	quoted = strings.ReplaceAll(quoted, " ", `\s+`)
	return quoted
}

// boundaryPrefix opens the match with \b only when the phrase starts on a
// word character; a punctuation-led phrase like "..." must match at line
// start too.
func boundaryPrefix(phrase string) string {
	if phrase == "" || !isWordRune(rune(phrase[0])) {
		return ""
	}
	return `\b`
}

// boundarySuffix closes the match with \b when the phrase ends on a word
// character, so a trailing word never matches inside a longer one.
func boundarySuffix(phrase string) string {
	if phrase == "" || !isWordRune(rune(phrase[len(phrase)-1])) {
		return ""
	}
	return `\b`
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// Expand renders the rule's suggested replacement for a concrete match.
// Template rules substitute the captured verb; the result takes on the
// leading capitalization of the matched text. Returns "" when the rule has
// no safe correction.
func (r *Rule) Expand(matched, verb string) string {
	if r.Replace == "" {
		return ""
	}
	out := r.Replace
	if r.Trigger == TriggerTemplate {
		out = expandReplace(out, strings.ToLower(verb))
	}
	return matchLeadingCase(matched, out)
}

// expandReplace substitutes the verb slots of a replacement template.
func expandReplace(replace, verb string) string {
	out := strings.ReplaceAll(replace, "{verb}", verb)
	return strings.ReplaceAll(out, "{verb:past}", PastTense(verb))
}

// matchLeadingCase capitalizes s when sample begins with an upper-case rune.
func matchLeadingCase(sample, s string) string {
	if sample == "" || s == "" {
		return s
	}
	first := []rune(sample)[0]
	if !unicode.IsUpper(first) {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// checkReplaceTokens rejects template replacements that reference unknown
// slot forms.
func checkReplaceTokens(replace string) error {
	rest := replace
	for {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			return nil
		}
		j := strings.IndexByte(rest[i:], '}')
		if j < 0 {
			return fmt.Errorf("unterminated slot in replacement %q", replace)
		}
		token := rest[i : i+j+1]
		if token != "{verb}" && token != "{verb:past}" {
			return fmt.Errorf("unknown replacement slot %s", token)
		}
		rest = rest[i+j+1:]
	}
}

// Catalog is the loaded, validated rule set plus the confidence threshold
// the gate defaults to.
type Catalog struct {
	// Version identifies the catalog document revision
	Version int `yaml:"version"`

	// Threshold is the default auto-fix confidence threshold
	Threshold float64 `yaml:"threshold"`

	// Rules is the ordered rule list
	Rules []Rule `yaml:"rules"`

	// Exclusions filters proper-noun candidates
	Exclusions ExclusionSet `yaml:"exclusions"`
}

// validate compiles every rule and checks catalog-level invariants.
func (c *Catalog) validate() error {
	if c.Version < 1 {
		return fmt.Errorf("%w: missing or invalid version", ErrCatalogInvalid)
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside (0,1]", ErrCatalogInvalid, c.Threshold)
	}
	seen := make(map[string]bool, len(c.Rules))
	for i := range c.Rules {
		r := &c.Rules[i]
		if err := r.compile(); err != nil {
			return fmt.Errorf("%w: %v", ErrCatalogInvalid, err)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate rule id %s", ErrCatalogInvalid, r.ID)
		}
		seen[r.ID] = true
	}
	c.Exclusions.build()
	return nil
}

// Rule returns the rule with the given id, or nil.
func (c *Catalog) Rule(id string) *Rule {
	for i := range c.Rules {
		if c.Rules[i].ID == id {
			return &c.Rules[i]
		}
	}
	return nil
}

// SentenceCap returns the word hard cap configured for a segment type, if
// the catalog declares one.
func (c *Catalog) SentenceCap(applies string) (int, bool) {
	for i := range c.Rules {
		r := &c.Rules[i]
		if r.Trigger == TriggerStructural && r.Check == CheckSentenceLength && r.AppliesTo == applies {
			return r.Limit, true
		}
	}
	return 0, false
}
