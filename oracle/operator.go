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
	"github.com/go-playground/validator/v10"
)

const operatorSystemPrompt = `You are an operational AI. Your only job is to execute one specific task.
You are given: an objective, a list of tools, and the data obtained by previous steps.

FUNDAMENTAL DATA RULE:
Data from previous steps is your only source of truth. If the task says "use the user id obtained in step 1", look in the available data for the "step_1_result" key and the right field inside it (e.g. "userId").
NEVER ask the user for information that may already be present in the available data.

Example of a correct payload:
If the task says "Fetch the details of order 'ord-002'" and the tool's path is "/orders/{order_id}", the payload must be {"order_id": "ord-002"}.
If the task says "Find the user with id 5" and the tool requires an "id" field, the payload must be {"id": 5}.

SANITY CHECK RULE:
If the assigned objective looks illogical or impossible with the given tools and data, do not force a call. Use the "ask_user" action to flag the problem instead.

RESPONSE FORMAT, respond ONLY with a JSON object shaped one of these ways:
{"action": "call_tool", "tool_metadata": {...}, "payload": {...}}
{"action": "call_tool", "tool_metadata": {...}, "payload": {...}, "extract_fields": ["field1", "field2.sub", "array[].field"]}
{"action": "ask_user", "question": "your specific question for the user, or your report of the problem"}
{"action": "provide_answer", "answer": "the direct answer based on the available data"}, when you already have everything needed to answer
{"action": "suggest_additional_step", "reasoning": "the order has no email, I must find the user first", "new_step": "Fetch the details of the user with id ${step_1_result.userId}"}, when an intermediate step is missing`

// Operator picks the action for one task. It implements runner.Operator.
type Operator struct {
	model    llms.Model
	validate *validator.Validate
}

// NewOperator creates the per-step operator over the model.
func NewOperator(model llms.Model) *Operator {
	return &Operator{
		model:    model,
		validate: validator.New(),
	}
}

// NextAction chooses one tool call (or another action) for the task.
func (o *Operator) NextAction(ctx context.Context, task string, prior map[string]any, tools []runner.Tool) (*runner.Action, error) {
	var tb strings.Builder
	for _, tool := range tools {
		fmt.Fprintf(&tb, "--- Tool ---\nMetadata: %s\nContract: %s\n------------\n",
			llmutils.ToJSON(tool.Metadata), strings.TrimSpace(tool.Contract))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Objective to execute:\n%q\n", task)
	fmt.Fprintf(&sb, "\nData available from previous steps (if you need it):\n%s\n", llmutils.ToJSONIndent(prior))
	fmt.Fprintf(&sb, "\nTools relevant to this objective:\n%s\n", tb.String())
	sb.WriteString("\nAnalyze the objective, take the data you need and pick exactly ONE tool to execute it. Prepare the payload.")

	out, err := generate(ctx, o.model, "operator",
		llms.MessageFromTextParts(llms.RoleSystem, operatorSystemPrompt),
		llms.MessageFromTextParts(llms.RoleHuman, sb.String()),
	)
	if err != nil {
		return nil, err
	}

	var action runner.Action
	if err := ljson.Unmarshal(llmutils.CleanJSON(out), &action); err != nil {
		parseFailure(ctx, "operator", err)
		return nil, errors.WithMessage(err, "failed to parse operator action")
	}
	if err := o.validate.Struct(&action); err != nil {
		parseFailure(ctx, "operator", err)
		return nil, errors.WithMessage(err, "invalid operator action")
	}
	return &action, nil
}
