package agents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptAllSections(t *testing.T) {
	agentCtx := &AgentContext{
		Query:            "what is paris?",
		KnowledgeContext: "### Paris travel log\nParis is the capital of France.",
		SearchContext:    "## Web Search Results:\n\n1. **[Paris guide](https://example.com)**\n   A guide.",
		VideoContext:     "## Video Results:\n\n1. **[Paris walk](https://youtube.com/watch?v=x1y2z3a4)**\n   A tour.",
	}

	prompt := BuildPrompt(agentCtx, "User previously asked about France.")

	assert.True(t, strings.HasPrefix(prompt, promptPreamble))
	assert.Contains(t, prompt, "## Your Knowledge Base:\n### Paris travel log")
	assert.Contains(t, prompt, "## Web Search Results:")
	assert.Contains(t, prompt, "## Video Results:")
	assert.Contains(t, prompt, "## Additional Context:\nUser previously asked about France.")
	assert.True(t, strings.HasSuffix(prompt, "## Question:\nwhat is paris?"))

	// Sections keep their fixed order.
	knowledgeAt := strings.Index(prompt, "## Your Knowledge Base:")
	searchAt := strings.Index(prompt, "## Web Search Results:")
	videoAt := strings.Index(prompt, "## Video Results:")
	questionAt := strings.Index(prompt, "## Question:")
	require.True(t, knowledgeAt < searchAt)
	require.True(t, searchAt < videoAt)
	require.True(t, videoAt < questionAt)
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	agentCtx := &AgentContext{Query: "anything"}

	prompt := BuildPrompt(agentCtx, "")

	assert.NotContains(t, prompt, "## Your Knowledge Base:")
	assert.NotContains(t, prompt, "## Additional Context:")
	assert.True(t, strings.HasSuffix(prompt, "## Question:\nanything"))
}

func TestBuildPromptNilContext(t *testing.T) {
	prompt := BuildPrompt(nil, "")
	assert.True(t, strings.HasSuffix(prompt, "## Question:"))
}
