package agents

import "strings"

const promptPreamble = "You are a research assistant answering from the provided context. Prefer facts from the user's own documents, cite web and video sources by title when you rely on them, and say so plainly when the context does not contain the answer."

// BuildPrompt renders the agent context into the user-turn prompt handed to
// the language model. extraContext, when non-empty, is appended as its own
// section (conversation memory, caller-supplied hints).
func BuildPrompt(agentCtx *AgentContext, extraContext string) string {
	var builder strings.Builder
	builder.WriteString(promptPreamble)
	builder.WriteString("\n\n")

	writeSection := func(heading, content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		if heading != "" {
			builder.WriteString(heading)
			builder.WriteString("\n")
		}
		builder.WriteString(content)
		builder.WriteString("\n\n")
	}

	if agentCtx != nil {
		writeSection("## Your Knowledge Base:", agentCtx.KnowledgeContext)
		writeSection("", agentCtx.SearchContext)
		writeSection("", agentCtx.VideoContext)
	}
	writeSection("## Additional Context:", extraContext)

	builder.WriteString("## Question:\n")
	if agentCtx != nil {
		builder.WriteString(strings.TrimSpace(agentCtx.Query))
	}
	return strings.TrimSpace(builder.String())
}
