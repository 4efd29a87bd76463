package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/apibridge/runner"
	"github.com/effective-security/gogentic/pkg/llms"
	"github.com/effective-security/gogentic/pkg/llmutils"
)

const plannerSystemPrompt = `You are a hyper-efficient AI Solutions Architect. Your only job is to translate a user request into a logical, direct JSON action plan with no wasted steps.

Critical thinking rules (follow them to the letter):
1. PRINCIPLE OF LEAST ACTION: never create a step to obtain information an earlier step already provides. If GetUser returns the user AND their activity status, the plan stops there; do not add a "verify activity status" step.
2. DATA CHAIN VALIDATION: make every step feasible. Do not plan "find the email from the order" if the order tool does not return emails; plan "find order X" then "use the user id from the order to find user Y" instead.
3. PROACTIVE DISAMBIGUATION: if a term in the request is ambiguous (e.g. "status"), check the tool descriptions and plan to fetch both meanings or to ask for clarification.

Formatting rules:
- Every step is one SHORT, DIRECT sentence describing exactly ONE tool call.
- Every step names the key data it starts from, typically the previous step's result.
- Respond EXCLUSIVELY with a JSON object with a single "plan" key.

Example of a perfect plan, for "What is the email of the author of the latest review, and the status of their latest order?":
{"plan": ["Fetch all reviews", "Fetch the details of the user who wrote the latest review from the previous data", "Use the same user id to fetch that user's orders"]}`

// Planner turns a user request into an ordered plan of single-call tasks.
// It implements runner.Planner.
type Planner struct {
	model llms.Model
}

// NewPlanner creates the strategic planner over the model.
func NewPlanner(model llms.Model) *Planner {
	return &Planner{model: model}
}

// Plan produces the step list for the request. An empty or unparsable plan
// is an error; there is no safe degraded plan.
func (p *Planner) Plan(ctx context.Context, userQuery string, tools []runner.Tool, history []runner.Exchange) ([]string, error) {
	summaries := make([]map[string]string, 0, len(tools))
	for _, tool := range tools {
		summaries = append(summaries, map[string]string{
			"name":        tool.Name,
			"description": tool.Description,
		})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "User request: %q\n", userQuery)
	fmt.Fprintf(&sb, "\nAvailable tools (name and description):\n%s\n", llmutils.ToJSONIndent(summaries))
	if len(history) > 0 {
		fmt.Fprintf(&sb, "\nConversation so far:\n%s\n", llmutils.ToJSONIndent(history))
	}

	out, err := generate(ctx, p.model, "planner",
		llms.MessageFromTextParts(llms.RoleSystem, plannerSystemPrompt),
		llms.MessageFromTextParts(llms.RoleHuman, sb.String()),
	)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Plan []string `json:"plan"`
	}
	if err := ljson.Unmarshal(llmutils.CleanJSON(out), &parsed); err != nil {
		parseFailure(ctx, "planner", err)
		return nil, errors.WithMessage(err, "failed to parse plan")
	}
	if len(parsed.Plan) == 0 {
		return nil, errors.New("planner returned an empty plan")
	}
	return parsed.Plan, nil
}
