package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Kirthidass/Neural-Cortex/graph"
	"github.com/Kirthidass/Neural-Cortex/llm"
)

const (
	extractionInstruction = "You analyze documents and return structured JSON. " +
		"Given a document, respond with a single JSON object of the form " +
		`{"entities":[{"name":"...","type":"concept|entity|idea|person|technology|topic|organization"}],"summary":"...","key_points":["..."]}. ` +
		"Name at most 10 entities, keep the summary under 3 sentences, and respond with JSON only, no prose around it."

	extractionMaxInputChars = 6000
	extractionMaxTokens     = 500
	maxExtractedEntities    = 10
)

// completer is the slice of the llm client the extractor needs.
type completer interface {
	Complete(ctx context.Context, req llm.Request) (llm.Result, error)
}

// LLMExtractor turns raw document text into entities, a summary and key
// points by asking the language model for structured JSON.
type LLMExtractor struct {
	client completer
}

func NewLLMExtractor(client *llm.Client) (*LLMExtractor, error) {
	if client == nil {
		return nil, errors.New("knowledge: llm client is required")
	}
	return &LLMExtractor{client: client}, nil
}

// Extract implements graph.Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (graph.Extraction, error) {
	var empty graph.Extraction
	if e == nil || e.client == nil {
		return empty, errors.New("knowledge: extractor is not configured")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return empty, errors.New("knowledge: document text is empty")
	}
	if runes := []rune(trimmed); len(runes) > extractionMaxInputChars {
		trimmed = string(runes[:extractionMaxInputChars])
	}

	result, err := e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: extractionInstruction},
			{Role: "user", Content: trimmed},
		},
		MaxTokens:   extractionMaxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		return empty, fmt.Errorf("knowledge: extraction call: %w", err)
	}

	extraction, err := parseExtraction(result.Content)
	if err != nil {
		return empty, err
	}
	return extraction, nil
}

// parseExtraction decodes the model's answer, tolerating prose or code fences
// around the JSON object.
func parseExtraction(content string) (graph.Extraction, error) {
	var extraction graph.Extraction

	raw := strings.TrimSpace(content)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	if raw == "" {
		return extraction, errors.New("knowledge: extraction response is empty")
	}

	if err := json.Unmarshal([]byte(raw), &extraction); err != nil {
		return extraction, fmt.Errorf("knowledge: parse extraction response: %w", err)
	}

	seen := make(map[string]struct{}, len(extraction.Entities))
	entities := make([]graph.Entity, 0, len(extraction.Entities))
	for _, entity := range extraction.Entities {
		name := strings.TrimSpace(entity.Name)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if _, exists := seen[lower]; exists {
			continue
		}
		seen[lower] = struct{}{}
		entities = append(entities, graph.Entity{Name: name, Type: strings.TrimSpace(entity.Type)})
		if len(entities) == maxExtractedEntities {
			break
		}
	}
	extraction.Entities = entities
	extraction.Summary = strings.TrimSpace(extraction.Summary)

	points := make([]string, 0, len(extraction.KeyPoints))
	for _, point := range extraction.KeyPoints {
		if trimmed := strings.TrimSpace(point); trimmed != "" {
			points = append(points, trimmed)
		}
	}
	extraction.KeyPoints = points

	return extraction, nil
}
