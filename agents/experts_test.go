package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kirthidass/Neural-Cortex/search"
)

type fakeSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeVideoSearcher struct {
	results []search.VideoResult
	err     error
}

func (f *fakeVideoSearcher) Search(ctx context.Context, query string, maxResults int) ([]search.VideoResult, error) {
	return f.results, f.err
}

func corpus() []Document {
	return []Document{
		{ID: 1, Title: "Paris travel log", Content: "Paris is the capital of France. The Louvre is in Paris."},
		{ID: 2, Title: "Gardening basics", Content: "Tomatoes need sun and regular watering."},
		{ID: 3, Title: "France overview", Summary: "Geography and history of France.", Content: "France borders Spain and Germany."},
	}
}

func TestRunKnowledgeScoresAndFormats(t *testing.T) {
	pool := NewExpertPool(nil, nil)

	out := pool.RunKnowledge("tell me about paris and france", corpus())

	require.NotEmpty(t, out.Sources)
	for _, source := range out.Sources {
		assert.Equal(t, "document", source.Type)
	}

	assert.Contains(t, out.Context, "### Paris travel log")
	assert.Contains(t, out.Context, "### France overview")
	// Summary wins over raw content as the excerpt.
	assert.Contains(t, out.Context, "Geography and history of France.")
	assert.NotContains(t, out.Context, "France borders Spain")
}

func TestRunKnowledgeExcludesZeroScores(t *testing.T) {
	pool := NewExpertPool(nil, nil)

	out := pool.RunKnowledge("quantum chromodynamics lattice", []Document{
		{ID: 1, Title: "Errands", Content: "go to db at 9 am"},
	})

	assert.Empty(t, out.Context)
	assert.Empty(t, out.Sources)
}

func TestRunKnowledgeTopThree(t *testing.T) {
	pool := NewExpertPool(nil, nil)

	docs := make([]Document, 0, 6)
	for _, title := range []string{"paris one", "paris two", "paris three", "paris four", "paris five", "paris six"} {
		docs = append(docs, Document{Title: title, Content: "notes about paris"})
	}

	out := pool.RunKnowledge("paris", docs)
	assert.Len(t, out.Sources, 3)
}

func TestRunKnowledgeLongContentExcerpt(t *testing.T) {
	pool := NewExpertPool(nil, nil)

	long := strings.Repeat("paris ", 600) // well past the excerpt budget
	out := pool.RunKnowledge("paris", []Document{{Title: "Long doc", Content: long}})

	require.Contains(t, out.Context, "### Long doc")
	assert.True(t, strings.Contains(out.Context, "…"), "long excerpt should be truncated")
	assert.Less(t, len([]rune(out.Context)), len([]rune(long)))
}

func TestRunSearchFormatsResults(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Go blog", URL: "https://go.dev/blog", Snippet: "News from the Go team."},
		{Title: "Go spec", URL: "https://go.dev/ref/spec", Snippet: "The language specification."},
	}}
	pool := NewExpertPool(searcher, nil)

	out, err := pool.RunSearch(context.Background(), "golang news")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.Context, "## Web Search Results:"))
	assert.Contains(t, out.Context, "1. **[Go blog](https://go.dev/blog)**\n   News from the Go team.")
	assert.Contains(t, out.Context, "2. **[Go spec](https://go.dev/ref/spec)**")

	require.Len(t, out.Sources, 2)
	assert.Equal(t, Source{Type: "web", Title: "Go blog", URL: "https://go.dev/blog"}, out.Sources[0])
	assert.Equal(t, searcher.results, out.SearchResults)
}

func TestRunSearchWithoutCollaborator(t *testing.T) {
	pool := NewExpertPool(nil, nil)

	out, err := pool.RunSearch(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, out.Context)
	assert.Empty(t, out.Sources)
}

func TestRunSearchPropagatesError(t *testing.T) {
	pool := NewExpertPool(&fakeSearcher{err: errors.New("boom")}, nil)

	_, err := pool.RunSearch(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search expert")
}

func TestRunVideoFormatsResults(t *testing.T) {
	videos := &fakeVideoSearcher{results: []search.VideoResult{
		{Title: "Neural nets explained", URL: "https://youtube.com/watch?v=abc12345", VideoID: "abc12345", Snippet: "A visual introduction."},
	}}
	pool := NewExpertPool(nil, videos)

	out, err := pool.RunVideo(context.Background(), "neural networks")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.Context, "## Video Results:"))
	assert.Contains(t, out.Context, "**[Neural nets explained](https://youtube.com/watch?v=abc12345)**")
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "video", out.Sources[0].Type)
	assert.Equal(t, videos.results, out.VideoResults)
}

func TestQueryTokensDropShortWords(t *testing.T) {
	tokens := queryTokens("What is the Go GC doing, exactly?")
	assert.Equal(t, []string{"what", "the", "doing", "exactly"}, tokens)
}
