package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKnowledgeAlwaysFirst(t *testing.T) {
	classifier := NewClassifier()

	for _, query := range []string{
		"",
		"tell me about paris",
		"search the web for go generics",
		"summarize my notes and find a video tutorial",
	} {
		intents := classifier.Classify(query)
		require.NotEmpty(t, intents, "query %q", query)
		assert.Equal(t, IntentKnowledge, intents[0], "query %q", query)
	}
}

func TestClassifyCueFamilies(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		query string
		want  []Intent
	}{
		{"tell me about paris", []Intent{IntentKnowledge}},
		{"search for the latest go release", []Intent{IntentKnowledge, IntentSearch}},
		{"find a video about neural networks", []Intent{IntentKnowledge, IntentVideo}},
		{"give me a summary of this topic", []Intent{IntentKnowledge, IntentSummarize}},
		{"look up a youtube tutorial and sum up the key points", []Intent{IntentKnowledge, IntentSearch, IntentVideo, IntentSummarize}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifier.Classify(tt.query), "query %q", tt.query)
	}
}

func TestClassifyMatchesAreAdditiveAndDeduplicated(t *testing.T) {
	classifier := NewClassifier()

	// "video" and "watch" both belong to the video family; it must be
	// reported once.
	intents := classifier.Classify("watch a video clip tutorial")
	assert.Equal(t, []Intent{IntentKnowledge, IntentVideo}, intents)
}

func TestClassifyQuestionMarkSafetyNet(t *testing.T) {
	classifier := NewClassifier()

	// A bare question with no cue match falls back to search.
	assert.Equal(t, []Intent{IntentKnowledge, IntentSearch}, classifier.Classify("who invented the telephone?"))

	// No question mark, no fallback.
	assert.Equal(t, []Intent{IntentKnowledge}, classifier.Classify("who invented the telephone"))

	// Possessive phrasing keeps the question local to the corpus.
	assert.Equal(t, []Intent{IntentKnowledge}, classifier.Classify("what is in my notes about telephones?"))

	// The fallback never fires when another expert already matched.
	assert.Equal(t, []Intent{IntentKnowledge, IntentVideo}, classifier.Classify("is there a video about telephones?"))
}

func TestClassifyCaseInsensitive(t *testing.T) {
	classifier := NewClassifier()

	assert.Equal(t,
		classifier.Classify("SEARCH FOR A VIDEO"),
		classifier.Classify("search for a video"))
}

func TestClassifyDeterministic(t *testing.T) {
	classifier := NewClassifier()

	first := classifier.Classify("summarize the latest news?")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, classifier.Classify("summarize the latest news?"))
	}
}

func TestClassifyInjectedRules(t *testing.T) {
	classifier := NewClassifierWithRules(
		[]CueRule{{Intent: IntentVideo, Cues: []string{"metrics"}}},
		nil,
	)

	assert.Equal(t, []Intent{IntentKnowledge, IntentVideo}, classifier.Classify("show me metrics"))
	assert.Equal(t, []Intent{IntentKnowledge, IntentSearch}, classifier.Classify("anything else?"))
}
