package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/apibridge/recovery"
	"github.com/effective-security/gogentic/pkg/llms"
	"github.com/effective-security/gogentic/pkg/llmutils"
)

const advisorSystemPrompt = `You are a Systems Doctor, an expert in diagnosing and recovering from API errors.

Available recovery strategies:
1. "retry_with_fix": the error is an obviously wrong payload and you know exactly how to correct it. Requires "new_payload", which replaces the payload entirely.
2. "wait_and_retry": the error looks transient (server errors, timeouts).
3. "explain_to_user": the error is final and unrecoverable (missing resources, denied access) and must be explained. Requires "explanation", a friendly plain-language message for the user.
4. "give_up": the last resort, when the error is incomprehensible or there is no alternative.

Analyze the problem and respond ONLY with a JSON object describing your decision, following this schema:

%s

Examples:
- Missing payload parameter: {"strategy": "retry_with_fix", "reasoning": "order_id is missing from the payload", "new_payload": {"order_id": "ord-002"}}
- Nonexistent field in a GraphQL query: {"strategy": "retry_with_fix", "reasoning": "The field 'description' does not exist; removing it from the query string.", "new_payload": {"query": "query GetProductById($productId: ID!) { getProduct(productId: $productId) { id name price inStock } }", "variables": {"productId": "101"}}}
- Not found: {"strategy": "explain_to_user", "reasoning": "The requested ID does not exist, retrying is pointless.", "explanation": "I could not find the item you asked about. Could the ID contain a typo?"}
- Overloaded backend: {"strategy": "wait_and_retry", "reasoning": "The remote server is temporarily overloaded."}`

// Advisor asks a model to pick the recovery strategy for a failed call.
// It implements recovery.Advisor.
type Advisor struct {
	model llms.Model
}

// NewAdvisor creates the recovery advisor over the model.
func NewAdvisor(model llms.Model) *Advisor {
	return &Advisor{model: model}
}

// Advise builds the failure report into a prompt and parses the model's
// decision. Unparsable output is a give_up decision, not an error; only a
// failed model call is returned as an error.
func (a *Advisor) Advise(ctx context.Context, report *recovery.Report) (*recovery.Decision, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mission context:\n")
	fmt.Fprintf(&sb, "- Original user request: %q\n", report.UserQuery)
	fmt.Fprintf(&sb, "- Full plan: %s\n", llmutils.ToJSON(report.Plan))
	fmt.Fprintf(&sb, "- Current failed task: %q\n", report.Task)
	fmt.Fprintf(&sb, "- Data already collected:\n%s\n", llmutils.ToJSONIndent(report.Prior))
	fmt.Fprintf(&sb, "\nCurrent problem:\n")
	fmt.Fprintf(&sb, "- Tool called:\n%s\n", llmutils.ToJSONIndent(report.Metadata))
	fmt.Fprintf(&sb, "- Payload sent:\n%s\n", llmutils.ToJSONIndent(report.Payload))
	fmt.Fprintf(&sb, "- Attempt number: %d\n", report.Attempt+1)
	fmt.Fprintf(&sb, "- Classified error type: %q\n", report.Category)
	fmt.Fprintf(&sb, "- Error details: %s\n", llmutils.ToJSON(report.Envelope))

	out, err := generate(ctx, a.model, "advisor",
		llms.MessageFromTextParts(llms.RoleSystem, fmt.Sprintf(advisorSystemPrompt, schemaJSON(recovery.Decision{}))),
		llms.MessageFromTextParts(llms.RoleHuman, sb.String()),
	)
	if err != nil {
		return nil, err
	}

	decision, err := recovery.ParseDecision(out)
	if err != nil {
		parseFailure(ctx, "advisor", err)
		return recovery.GiveUp("the error analyzer produced an invalid decision"), nil
	}
	return decision, nil
}
