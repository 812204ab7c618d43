// Package triage implements the topic-gated pet health triage assistant:
// classification, escalation, context assembly and tip extraction.
package triage

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Topic is the classifier's verdict for one message.
type Topic int

const (
	OffTopic Topic = iota
	OnTopic
)

func (t Topic) String() string {
	if t == OnTopic {
		return "on_topic"
	}
	return "off_topic"
}

// interrogativePattern catches care questions that avoid every vocabulary term,
// e.g. "how often should I give it".
var interrogativePattern = regexp.MustCompile(`(?s)\b(what|how|why|when|should|can|does)\b.*\b(do|give|treat|help|care)\b`)

// Classifier decides whether a message belongs to the pet health domain.
// It is a keyword heuristic and holds no mutable state.
type Classifier struct {
	terms     []term
	emergency []term
}

// term is one vocabulary entry compiled to a word-anchored pattern.
type term struct {
	text string
	re   *regexp.Regexp
}

// NewClassifier builds a classifier over the given vocabulary.
func NewClassifier(v Vocabulary) *Classifier {
	return &Classifier{
		terms:     compileTerms(v.Topical()),
		emergency: compileTerms(v.Emergency),
	}
}

// DefaultClassifier builds a classifier over the embedded vocabulary.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultVocabulary())
}

// Classify returns OnTopic when text contains a vocabulary term or reads as a
// care question. Callers must not pass blank text.
func (c *Classifier) Classify(text string) Topic {
	if _, ok := c.MatchedTerm(text); ok {
		return OnTopic
	}
	if interrogativePattern.MatchString(fold(text)) {
		return OnTopic
	}
	return OffTopic
}

// MatchedTerm returns the first vocabulary term found in text.
func (c *Classifier) MatchedTerm(text string) (string, bool) {
	return firstMatch(fold(text), c.terms)
}

// IsEmergency reports whether text matches the emergency vocabulary.
func (c *Classifier) IsEmergency(text string) bool {
	_, ok := firstMatch(fold(text), c.emergency)
	return ok
}

func firstMatch(folded string, terms []term) (string, bool) {
	for _, t := range terms {
		if t.re.MatchString(folded) {
			return t.text, true
		}
	}
	return "", false
}

// fold normalizes case and curly apostrophes. A Caser is stateful, so each
// call gets its own.
func fold(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	return cases.Fold().String(s)
}

// compileTerms anchors every entry at a word start. Plain entries must end
// the word, allowing a plural suffix; entries ending in "*" are stems.
func compileTerms(entries []string) []term {
	out := make([]term, 0, len(entries))
	for _, e := range entries {
		e = fold(strings.TrimSpace(e))
		stem := strings.HasSuffix(e, "*")
		e = strings.TrimSuffix(e, "*")
		if e == "" {
			continue
		}
		pattern := `\b` + regexp.QuoteMeta(e)
		if !stem {
			pattern += `(?:s|es)?\b`
		}
		out = append(out, term{text: e, re: regexp.MustCompile(pattern)})
	}
	return out
}
