package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/bububa/ljson"
	"github.com/effective-security/apibridge/projector"
	"github.com/effective-security/gogentic/pkg/llms"
	"github.com/effective-security/gogentic/pkg/llmutils"
)

// sampleLimit bounds the response sample embedded in the suggester prompt.
const sampleLimit = 1500

const fieldsSystemPrompt = `You identify which fields of an API response are needed for the current task in the context of the overall plan.
Respond with a JSON array of field paths. Paths use dots for nesting, "items[]." for every array element and "items[0]." for one element.

Examples:
- For "how much does X weigh?": ["weight", "name"]
- For "what is the most expensive product?": ["price", "name", "id"]
- For "find the user's email": ["email", "name"]

Be MINIMALIST: extract only the fields strictly needed for this step.`

// FieldSuggester asks a model which response fields a task needs. It
// implements projector.PathOracle; the caller falls back to the full response
// when the suggestion fails.
type FieldSuggester struct {
	model llms.Model
}

// NewFieldSuggester creates the path suggester over the model.
func NewFieldSuggester(model llms.Model) *FieldSuggester {
	return &FieldSuggester{model: model}
}

// SuggestPaths samples the response and returns the suggested field paths.
func (s *FieldSuggester) SuggestPaths(ctx context.Context, req *projector.SuggestRequest) ([]string, error) {
	sample := llmutils.ToJSONIndent(req.Data)
	if len(sample) > sampleLimit {
		sample = sample[:sampleLimit] + "\n... (truncated)"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Original user query: %q\n", req.UserQuery)
	fmt.Fprintf(&sb, "Current task: %q\n", req.Task)
	fmt.Fprintf(&sb, "Full plan: %s\n", llmutils.ToJSON(req.Plan))
	fmt.Fprintf(&sb, "\nAPI response received:\n%s\n", sample)

	out, err := generate(ctx, s.model, "fields",
		llms.MessageFromTextParts(llms.RoleSystem, fieldsSystemPrompt),
		llms.MessageFromTextParts(llms.RoleHuman, sb.String()),
	)
	if err != nil {
		return nil, err
	}

	var paths []string
	if err := ljson.Unmarshal(llmutils.CleanJSON(out), &paths); err != nil {
		parseFailure(ctx, "fields", err)
		return nil, err
	}
	return paths, nil
}
