package agents

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Orchestrator runs the per-query pipeline: classify, fan out to experts,
// assemble the agent context.
type Orchestrator struct {
	classifier *Classifier
	pool       *ExpertPool
}

// NewOrchestrator wires a classifier and an expert pool.
func NewOrchestrator(classifier *Classifier, pool *ExpertPool) *Orchestrator {
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &Orchestrator{classifier: classifier, pool: pool}
}

// RunOrchestration answers one query. The knowledge expert runs inline; the
// async experts selected by the classifier run concurrently and are joined at
// a settle-all barrier. A failed expert contributes empty output and never
// aborts its siblings or the query. Cancelling ctx stops in-flight experts.
func (o *Orchestrator) RunOrchestration(ctx context.Context, query string, documents []Document) *AgentContext {
	intents := o.classifier.Classify(query)

	agentCtx := &AgentContext{
		QueryID:     uuid.NewString(),
		Query:       query,
		ExpertsUsed: intents,
	}

	knowledge := o.pool.RunKnowledge(query, documents)
	agentCtx.KnowledgeContext = knowledge.Context

	var (
		wg          sync.WaitGroup
		searchOut   ExpertOutput
		videoOut    ExpertOutput
		wantsSearch = hasIntent(intents, IntentSearch)
		wantsVideo  = hasIntent(intents, IntentVideo)
	)

	if wantsSearch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := o.pool.RunSearch(ctx, query)
			if err != nil {
				log.Printf("agents: search expert degraded to empty result: %v", err)
				return
			}
			searchOut = out
		}()
	}

	if wantsVideo {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := o.pool.RunVideo(ctx, query)
			if err != nil {
				log.Printf("agents: video expert degraded to empty result: %v", err)
				return
			}
			videoOut = out
		}()
	}

	wg.Wait()

	agentCtx.SearchContext = searchOut.Context
	agentCtx.SearchResults = searchOut.SearchResults
	agentCtx.VideoContext = videoOut.Context
	agentCtx.VideoResults = videoOut.VideoResults

	// Fixed source ordering: knowledge, then web, then video. Sources are not
	// deduplicated across experts; the same URL may appear more than once.
	agentCtx.Sources = append(agentCtx.Sources, knowledge.Sources...)
	agentCtx.Sources = append(agentCtx.Sources, searchOut.Sources...)
	agentCtx.Sources = append(agentCtx.Sources, videoOut.Sources...)

	return agentCtx
}

func hasIntent(intents []Intent, target Intent) bool {
	for _, intent := range intents {
		if intent == target {
			return true
		}
	}
	return false
}
