package agents

import (
	"context"
	"log"
	"strings"

	"github.com/Kirthidass/Neural-Cortex/llm"
)

const (
	validationMaxTokens   = 300
	validationTemperature = 0.0

	validatorInstruction = "You are a strict fact checker. Given a question, an answer, and the supporting context, reply with exactly \"VALIDATED\" if every claim in the answer is fully supported by the context. Otherwise reply with \"ISSUES: \" followed by the unsupported claims, one per line."

	// cautionNotice is appended verbatim when the validator flags issues. The
	// answer text itself is never altered.
	cautionNotice = "\n\n---\n*Note: parts of this answer could not be verified against the retrieved sources.*"
)

// Validator cross-checks a drafted answer against its supporting context with
// a secondary model. It is strictly best-effort: every failure mode returns
// the answer unchanged.
type Validator struct {
	client Completer
	model  string
}

// NewValidator wires the validator to a model client. A nil client disables
// validation entirely.
func NewValidator(client Completer, model string) *Validator {
	return &Validator{client: client, model: model}
}

// ValidateAnswer returns the answer, with the caution notice appended when
// the model enumerates unsupported claims. Unavailable validator, affirming
// response, inconclusive response, and outright errors all pass the answer
// through untouched.
func (v *Validator) ValidateAnswer(ctx context.Context, question, answer, supportingContext string) string {
	if v == nil || v.client == nil {
		return answer
	}
	if strings.TrimSpace(answer) == "" {
		return answer
	}

	result, err := v.client.Complete(ctx, llm.Request{
		Model:       v.model,
		MaxTokens:   validationMaxTokens,
		Temperature: validationTemperature,
		Messages: []llm.Message{
			{Role: "system", Content: validatorInstruction},
			{Role: "user", Content: "Question:\n" + question + "\n\nAnswer:\n" + answer + "\n\nContext:\n" + supportingContext},
		},
	})
	if err != nil {
		log.Printf("agents: validation skipped: %v", err)
		return answer
	}

	verdict := strings.ToUpper(strings.TrimSpace(result.Content))
	if strings.HasPrefix(verdict, "ISSUES") {
		return answer + cautionNotice
	}
	return answer
}
