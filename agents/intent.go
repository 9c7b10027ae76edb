package agents

import "strings"

// CueRule maps one intent to the substrings that trigger it.
type CueRule struct {
	Intent Intent
	Cues   []string
}

// DefaultRules returns the built-in cue table. Rules are evaluated in order
// and matches are additive; a query can activate every expert at once.
func DefaultRules() []CueRule {
	return []CueRule{
		{Intent: IntentSearch, Cues: []string{
			"search", "look up", "google", "online", "web",
			"latest", "news", "current", "recent", "today",
		}},
		{Intent: IntentVideo, Cues: []string{
			"video", "watch", "youtube", "clip", "tutorial", "lecture",
		}},
		{Intent: IntentSummarize, Cues: []string{
			"summarize", "summary", "sum up", "tl;dr", "tldr",
			"overview", "key points", "main points",
		}},
	}
}

// DefaultPossessiveCues returns the phrases that mark a query as aimed at the
// user's own corpus, which suppresses the question-mark search fallback.
func DefaultPossessiveCues() []string {
	return []string{
		"my knowledge", "my notes", "my documents", "my files",
		"my corpus", "i uploaded", "i added", "in my",
	}
}

// Classifier turns an utterance into the ordered set of experts to run. It is
// pure and deterministic; the rule tables are injectable for tests.
type Classifier struct {
	rules          []CueRule
	possessiveCues []string
}

// NewClassifier builds a classifier with the default cue tables.
func NewClassifier() *Classifier {
	return NewClassifierWithRules(DefaultRules(), DefaultPossessiveCues())
}

// NewClassifierWithRules builds a classifier with explicit cue tables.
func NewClassifierWithRules(rules []CueRule, possessiveCues []string) *Classifier {
	return &Classifier{rules: rules, possessiveCues: possessiveCues}
}

// Classify returns the deduplicated intents for the query, knowledge always
// first. When nothing beyond knowledge matches, the query looks like a
// question, and no possessive cue fired, search is added as a safety net.
func (c *Classifier) Classify(query string) []Intent {
	lowered := strings.ToLower(query)

	intents := []Intent{IntentKnowledge}
	seen := map[Intent]struct{}{IntentKnowledge: {}}

	for _, rule := range c.rules {
		if _, dup := seen[rule.Intent]; dup {
			continue
		}
		for _, cue := range rule.Cues {
			if strings.Contains(lowered, cue) {
				intents = append(intents, rule.Intent)
				seen[rule.Intent] = struct{}{}
				break
			}
		}
	}

	if len(intents) == 1 && strings.Contains(lowered, "?") && !c.possessive(lowered) {
		intents = append(intents, IntentSearch)
	}

	return intents
}

func (c *Classifier) possessive(lowered string) bool {
	for _, cue := range c.possessiveCues {
		if strings.Contains(lowered, cue) {
			return true
		}
	}
	return false
}
