package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Kirthidass/Neural-Cortex/fingerprint"
	"github.com/Kirthidass/Neural-Cortex/search"
)

const (
	knowledgeTopK     = 3
	knowledgeExcerpt  = 1500
	expertMaxResults  = 5
	fingerprintWeight = 5.0

	defaultExpertTimeout = 15 * time.Second
)

// Searcher is the external web search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

// VideoSearcher is the external video search collaborator.
type VideoSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.VideoResult, error)
}

// ExpertOutput is what any single expert contributes to the agent context. A
// failed expert yields the zero value.
type ExpertOutput struct {
	Context       string
	Sources       []Source
	SearchResults []search.Result
	VideoResults  []search.VideoResult
}

// ExpertPool holds the retrieval experts the orchestrator can dispatch.
type ExpertPool struct {
	searcher Searcher
	videos   VideoSearcher
	timeout  time.Duration
}

// NewExpertPool constructs a pool. Either collaborator may be nil; the
// corresponding expert then degrades to empty output.
func NewExpertPool(searcher Searcher, videos VideoSearcher) *ExpertPool {
	return &ExpertPool{
		searcher: searcher,
		videos:   videos,
		timeout:  defaultExpertTimeout,
	}
}

// RunKnowledge scores the user's documents against the query and formats the
// best matches. It is synchronous: the corpus is local and cheap to scan.
func (p *ExpertPool) RunKnowledge(query string, documents []Document) ExpertOutput {
	queryPrint := fingerprint.Generate(query)
	tokens := queryTokens(query)

	type scored struct {
		doc   Document
		score float64
	}

	candidates := make([]scored, 0, len(documents))
	for _, doc := range documents {
		haystack := strings.ToLower(doc.Title + " " + doc.Summary + " " + doc.Content)
		score := 0.0
		for _, token := range tokens {
			if strings.Contains(haystack, token) {
				score++
			}
		}
		docPrint := doc.Fingerprint
		if docPrint == nil {
			docPrint = fingerprint.Generate(doc.Content)
		}
		score += fingerprintWeight * fingerprint.Cosine(queryPrint, docPrint)
		if score > 0 {
			candidates = append(candidates, scored{doc: doc, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > knowledgeTopK {
		candidates = candidates[:knowledgeTopK]
	}

	var output ExpertOutput
	var builder strings.Builder
	for _, candidate := range candidates {
		builder.WriteString("### ")
		builder.WriteString(candidate.doc.Title)
		builder.WriteString("\n")
		builder.WriteString(excerpt(candidate.doc))
		builder.WriteString("\n\n")
		output.Sources = append(output.Sources, Source{Type: "document", Title: candidate.doc.Title})
	}
	output.Context = strings.TrimSpace(builder.String())
	return output
}

// RunSearch queries the web search collaborator under a bounded timeout.
func (p *ExpertPool) RunSearch(ctx context.Context, query string) (ExpertOutput, error) {
	if p.searcher == nil {
		return ExpertOutput{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results, err := p.searcher.Search(ctx, query, expertMaxResults)
	if err != nil {
		return ExpertOutput{}, fmt.Errorf("agents: search expert: %w", err)
	}

	output := ExpertOutput{SearchResults: results}
	var builder strings.Builder
	for i, result := range results {
		if i == 0 {
			builder.WriteString("## Web Search Results:\n\n")
		}
		fmt.Fprintf(&builder, "%d. **[%s](%s)**\n   %s\n", i+1, result.Title, result.URL, result.Snippet)
		output.Sources = append(output.Sources, Source{Type: "web", Title: result.Title, URL: result.URL})
	}
	output.Context = strings.TrimSpace(builder.String())
	return output, nil
}

// RunVideo queries the video search collaborator under a bounded timeout.
func (p *ExpertPool) RunVideo(ctx context.Context, query string) (ExpertOutput, error) {
	if p.videos == nil {
		return ExpertOutput{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results, err := p.videos.Search(ctx, query, expertMaxResults)
	if err != nil {
		return ExpertOutput{}, fmt.Errorf("agents: video expert: %w", err)
	}

	output := ExpertOutput{VideoResults: results}
	var builder strings.Builder
	for i, result := range results {
		if i == 0 {
			builder.WriteString("## Video Results:\n\n")
		}
		fmt.Fprintf(&builder, "%d. **[%s](%s)**\n   %s\n", i+1, result.Title, result.URL, result.Snippet)
		output.Sources = append(output.Sources, Source{Type: "video", Title: result.Title, URL: result.URL})
	}
	output.Context = strings.TrimSpace(builder.String())
	return output, nil
}

func queryTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.Trim(field, ".,;:!?\"'()[]")
		if len(trimmed) > 2 {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}

func excerpt(doc Document) string {
	if summary := strings.TrimSpace(doc.Summary); summary != "" {
		return summary
	}
	content := strings.TrimSpace(doc.Content)
	runes := []rune(content)
	if len(runes) <= knowledgeExcerpt {
		return content
	}
	return string(runes[:knowledgeExcerpt]) + "…"
}
