package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kirthidass/Neural-Cortex/search"
)

func TestRunOrchestrationAssemblesContext(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Paris guide", URL: "https://example.com/paris", Snippet: "A travel guide."},
	}}
	videos := &fakeVideoSearcher{results: []search.VideoResult{
		{Title: "Paris walk", URL: "https://youtube.com/watch?v=paris123", VideoID: "paris123", Snippet: "Walking tour."},
	}}
	orchestrator := NewOrchestrator(NewClassifier(), NewExpertPool(searcher, videos))

	agentCtx := orchestrator.RunOrchestration(context.Background(),
		"search for the latest paris video", corpus())

	require.NotNil(t, agentCtx)
	assert.NotEmpty(t, agentCtx.QueryID)
	assert.Equal(t, "search for the latest paris video", agentCtx.Query)
	assert.Equal(t, []Intent{IntentKnowledge, IntentSearch, IntentVideo}, agentCtx.ExpertsUsed)

	assert.Contains(t, agentCtx.KnowledgeContext, "### Paris travel log")
	assert.Contains(t, agentCtx.SearchContext, "## Web Search Results:")
	assert.Contains(t, agentCtx.VideoContext, "## Video Results:")

	// Fixed ordering: documents, then web, then video.
	require.NotEmpty(t, agentCtx.Sources)
	types := make([]string, 0, len(agentCtx.Sources))
	for _, source := range agentCtx.Sources {
		types = append(types, source.Type)
	}
	assert.Equal(t, "document", types[0])
	assert.Equal(t, "web", types[len(types)-2])
	assert.Equal(t, "video", types[len(types)-1])
}

func TestRunOrchestrationSkipsUnselectedExperts(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Should not appear", URL: "https://example.com", Snippet: "irrelevant"},
	}}
	orchestrator := NewOrchestrator(NewClassifier(), NewExpertPool(searcher, nil))

	agentCtx := orchestrator.RunOrchestration(context.Background(), "tell me about paris", corpus())

	assert.Equal(t, []Intent{IntentKnowledge}, agentCtx.ExpertsUsed)
	assert.Empty(t, agentCtx.SearchContext)
	assert.Empty(t, searcher.queries, "search expert must not run without the search intent")
}

func TestRunOrchestrationDegradesFailedExpert(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("upstream down")}
	videos := &fakeVideoSearcher{results: []search.VideoResult{
		{Title: "Still here", URL: "https://youtube.com/watch?v=still1234", VideoID: "still1234", Snippet: "survives"},
	}}
	orchestrator := NewOrchestrator(NewClassifier(), NewExpertPool(searcher, videos))

	agentCtx := orchestrator.RunOrchestration(context.Background(),
		"search for a video about paris", corpus())

	// The failed search expert contributes nothing; the video expert still
	// settles with its results.
	assert.Empty(t, agentCtx.SearchContext)
	assert.Empty(t, agentCtx.SearchResults)
	assert.Contains(t, agentCtx.VideoContext, "Still here")
	require.Len(t, agentCtx.VideoResults, 1)
}

func TestRunOrchestrationEmptyCorpus(t *testing.T) {
	orchestrator := NewOrchestrator(NewClassifier(), NewExpertPool(nil, nil))

	agentCtx := orchestrator.RunOrchestration(context.Background(), "tell me about paris", nil)

	assert.Empty(t, agentCtx.KnowledgeContext)
	assert.Empty(t, agentCtx.Sources)
	assert.Equal(t, []Intent{IntentKnowledge}, agentCtx.ExpertsUsed)
}

func TestUsedExpert(t *testing.T) {
	agentCtx := &AgentContext{ExpertsUsed: []Intent{IntentKnowledge, IntentVideo}}

	assert.True(t, agentCtx.UsedExpert(IntentKnowledge))
	assert.True(t, agentCtx.UsedExpert(IntentVideo))
	assert.False(t, agentCtx.UsedExpert(IntentSearch))

	var nilCtx *AgentContext
	assert.False(t, nilCtx.UsedExpert(IntentKnowledge))
}
