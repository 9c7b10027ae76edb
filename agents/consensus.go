package agents

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/Kirthidass/Neural-Cortex/llm"
)

const (
	summaryMaxTokens   = 300
	summaryTemperature = 0.3

	summarizeInstruction = "Summarize the following text in at most 3 sentences. Keep only concrete facts."
	mergeInstruction     = "You are given two independent summaries of the same text. Produce one summary of at most 3 sentences that keeps only the facts both summaries agree on. Where they conflict, state the uncertainty explicitly."
)

// Completer is the language-model collaborator used by the summarizer and the
// validator.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (llm.Result, error)
}

// Summarizer produces consensus summaries by cross-checking two models.
type Summarizer struct {
	client         Completer
	primaryModel   string
	secondaryModel string
}

// NewSummarizer wires the summarizer to a model client and its model chain.
func NewSummarizer(client Completer, primaryModel, secondaryModel string) *Summarizer {
	return &Summarizer{
		client:         client,
		primaryModel:   primaryModel,
		secondaryModel: secondaryModel,
	}
}

// ConsensusSummarize summarizes text with the primary and the secondary model
// concurrently, settling both before deciding:
//
//	both fail      -> ""
//	one succeeds   -> that summary verbatim
//	both succeed   -> a merge call keeping only mutually agreed facts;
//	                  the primary summary if the merge itself fails
func (s *Summarizer) ConsensusSummarize(ctx context.Context, text string) string {
	if s == nil || s.client == nil {
		return ""
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	var (
		wg                 sync.WaitGroup
		primary, secondary string
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		primary = s.summarizeWith(ctx, s.primaryModel, trimmed)
	}()
	go func() {
		defer wg.Done()
		secondary = s.summarizeWith(ctx, s.secondaryModel, trimmed)
	}()
	wg.Wait()

	switch {
	case primary == "" && secondary == "":
		return ""
	case secondary == "":
		return primary
	case primary == "":
		return secondary
	}

	merged := s.merge(ctx, primary, secondary)
	if merged == "" {
		return primary
	}
	return merged
}

func (s *Summarizer) summarizeWith(ctx context.Context, model, text string) string {
	result, err := s.client.Complete(ctx, llm.Request{
		Model:       model,
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
		Messages: []llm.Message{
			{Role: "system", Content: summarizeInstruction},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		log.Printf("agents: summarization with %s failed: %v", model, err)
		return ""
	}
	return strings.TrimSpace(result.Content)
}

func (s *Summarizer) merge(ctx context.Context, primary, secondary string) string {
	result, err := s.client.Complete(ctx, llm.Request{
		Model:       s.primaryModel,
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
		Messages: []llm.Message{
			{Role: "system", Content: mergeInstruction},
			{Role: "user", Content: "Summary A:\n" + primary + "\n\nSummary B:\n" + secondary},
		},
	})
	if err != nil {
		log.Printf("agents: consensus merge failed, keeping primary summary: %v", err)
		return ""
	}
	return strings.TrimSpace(result.Content)
}
