package triage

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// Vocabulary is the fixed term list behind the topic classifier.
type Vocabulary struct {
	Species    []string `yaml:"species"`
	Symptoms   []string `yaml:"symptoms"`
	Care       []string `yaml:"care"`
	Anatomy    []string `yaml:"anatomy"`
	Procedures []string `yaml:"procedures"`
	Emergency  []string `yaml:"emergency"`
}

// ParseVocabulary decodes a YAML vocabulary document.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(v.Topical()) == 0 {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: no topical terms")
	}
	return v, nil
}

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() Vocabulary {
	v, err := ParseVocabulary(defaultVocabularyYAML)
	if err != nil {
		panic("triage: embedded vocabulary is invalid: " + err.Error())
	}
	return v
}

// Topical returns every term that marks a message as on-topic.
func (v Vocabulary) Topical() []string {
	terms := make([]string, 0, len(v.Species)+len(v.Symptoms)+len(v.Care)+len(v.Anatomy)+len(v.Procedures))
	terms = append(terms, v.Species...)
	terms = append(terms, v.Symptoms...)
	terms = append(terms, v.Care...)
	terms = append(terms, v.Anatomy...)
	terms = append(terms, v.Procedures...)
	return terms
}
