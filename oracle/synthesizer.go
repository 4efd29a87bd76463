package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/gogentic/pkg/llms"
	"github.com/effective-security/gogentic/pkg/llmutils"
)

const synthesizerSystemPrompt = `You are an AI assistant that communicates final results to the user.

Your job: formulate the final answer.
- If the execution succeeded, summarize the final result for the user.
- If there was an error (look for a key ending in "_error" in the results), gently explain what went wrong, using the explanation provided.
- Always be concise and friendly, and NEVER invent information.
- Your answer must be a single plain-text string. DO NOT produce JSON.`

// Synthesizer formulates the final user-facing answer from the accumulated
// step results. It implements runner.Synthesizer.
type Synthesizer struct {
	model llms.Model
}

// NewSynthesizer creates the answer synthesizer over the model.
func NewSynthesizer(model llms.Model) *Synthesizer {
	return &Synthesizer{model: model}
}

// Synthesize renders results into a plain-language answer to the query.
func (s *Synthesizer) Synthesize(ctx context.Context, userQuery string, results map[string]any) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The user's original request was: %q\n", userQuery)
	fmt.Fprintf(&sb, "\nThe full context of results (and errors) obtained:\n%s\n", llmutils.ToJSONIndent(results))

	out, err := generate(ctx, s.model, "synthesizer",
		llms.MessageFromTextParts(llms.RoleSystem, synthesizerSystemPrompt),
		llms.MessageFromTextParts(llms.RoleHuman, sb.String()),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(llmutils.TrimBackticks(string(out))), nil
}
