// Package agents answers natural-language queries against a user's corpus by
// classifying query intent, fanning out to retrieval experts, and assembling
// the results into a single context handed to the language model.
package agents

import (
	"github.com/Kirthidass/Neural-Cortex/search"
)

// Intent names one retrieval expert the classifier can select.
type Intent string

const (
	IntentKnowledge Intent = "knowledge"
	IntentSearch    Intent = "search"
	IntentVideo     Intent = "video"
	IntentSummarize Intent = "summarize"
)

// Source identifies where a piece of supporting context came from.
type Source struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Document is the corpus view the knowledge expert scores against.
type Document struct {
	ID          uint64
	Title       string
	Summary     string
	Content     string
	Fingerprint []float64
}

// AgentContext is the per-query result of orchestration. It is ephemeral:
// built for one request, consumed by the prompt builder, then discarded.
type AgentContext struct {
	QueryID          string               `json:"query_id"`
	Query            string               `json:"query"`
	KnowledgeContext string               `json:"knowledge_context"`
	SearchContext    string               `json:"search_context"`
	VideoContext     string               `json:"video_context"`
	SearchResults    []search.Result      `json:"search_results"`
	VideoResults     []search.VideoResult `json:"video_results"`
	Sources          []Source             `json:"sources"`
	ExpertsUsed      []Intent             `json:"experts_used"`
}

// UsedExpert reports whether the given expert contributed to this context.
func (a *AgentContext) UsedExpert(intent Intent) bool {
	if a == nil {
		return false
	}
	for _, used := range a.ExpertsUsed {
		if used == intent {
			return true
		}
	}
	return false
}
