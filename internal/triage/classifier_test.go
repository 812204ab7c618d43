package triage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyOnTopic(t *testing.T) {
	t.Parallel()

	c := DefaultClassifier()
	cases := []string{
		"My dog has a fever",
		"MY CAT IS VOMITING",
		"my kitten won't stop sneezing",
		"Is chocolate toxic?",
		"Which vaccines does a puppy need",
		"How often should I give it?",
		"what can I do to help",
		"She’s limping on her back legs",
	}
	for _, text := range cases {
		assert.Equal(t, OnTopic, c.Classify(text), text)
	}
}

func TestClassifyOffTopic(t *testing.T) {
	t.Parallel()

	c := DefaultClassifier()
	cases := []string{
		"What's the weather today?",
		"Tell me a joke",
		"Who won the football game yesterday?",
		"Who won the competition",
		"Recommend a vacation location in Spain",
		"What changed during the last years",
		"My laptop will not switch on",
		"I lost my concert ticket",
		"Any advice on relationships?",
		"Send me the details",
		"I bought a velvet jacket",
		"What are you testing?",
	}
	for _, text := range cases {
		assert.Equal(t, OffTopic, c.Classify(text), text)
	}
}

func TestClassifyMatchesWordsNotFragments(t *testing.T) {
	t.Parallel()

	c := DefaultClassifier()
	tests := []struct {
		text string
		term string
		ok   bool
	}{
		{text: "two cats at home", term: "cat", ok: true},
		{text: "my puppies", term: "puppies", ok: true},
		{text: "he keeps vomiting", term: "vomit", ok: true},
		{text: "she seems lethargic", term: "letharg", ok: true},
		{text: "sore ears", term: "ear", ok: true},
		{text: "a category of tools", ok: false},
		{text: "the petrol station", ok: false},
		{text: "a painting of Spain", ok: false},
	}
	for _, tt := range tests {
		term, ok := c.MatchedTerm(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.term, term, tt.text)
	}
}

func TestEscalationFiresOnOrdinaryEnglish(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "unused"}
	s := newTestSession(gen, nil)
	for i := 0; i < MaxWarnings; i++ {
		_, err := s.Send(context.Background(), "Recommend a vacation location in Spain")
		require.NoError(t, err)
	}
	assert.True(t, s.State().Blocked)
	assert.Equal(t, 0, gen.callCount())
}

func TestClassifyKnownFalseNegative(t *testing.T) {
	t.Parallel()

	// Pet-health phrasing that avoids every term is still off-topic.
	assert.Equal(t, OffTopic, DefaultClassifier().Classify("she won't stop pacing"))
}

func TestIsEmergency(t *testing.T) {
	t.Parallel()

	c := DefaultClassifier()
	assert.True(t, c.IsEmergency("my dog is not breathing"))
	assert.True(t, c.IsEmergency("He ATE CHOCOLATE an hour ago"))
	assert.True(t, c.IsEmergency("she collapsed in the yard"))
	assert.False(t, c.IsEmergency("my dog has a fever"))
	assert.False(t, c.IsEmergency("What's the weather today?"))
}

func TestMatchedTerm(t *testing.T) {
	t.Parallel()

	term, ok := DefaultClassifier().MatchedTerm("My Dog has a fever")
	require.True(t, ok)
	assert.Equal(t, "dog", term)

	_, ok = DefaultClassifier().MatchedTerm("Tell me a joke")
	assert.False(t, ok)
}

func TestParseVocabulary(t *testing.T) {
	t.Parallel()

	v, err := ParseVocabulary([]byte("species: [axolotl]\nemergency: [gill]\n"))
	require.NoError(t, err)
	c := NewClassifier(v)
	assert.Equal(t, OnTopic, c.Classify("my AXOLOTL looks pale"))
	assert.Equal(t, OffTopic, c.Classify("my dog looks pale"))
	assert.True(t, c.IsEmergency("its gills are grey"))

	_, err = ParseVocabulary([]byte("emergency: [only]\n"))
	assert.Error(t, err)

	_, err = ParseVocabulary([]byte("species: {"))
	assert.Error(t, err)
}
