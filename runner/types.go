// Package runner executes a strategic plan step by step: for every step it
// asks the operator for an action, resolves payload references against prior
// step outputs, runs tool calls through the recovery loop, and finally
// synthesizes a user-facing answer from the accumulated results.
package runner

import (
	"context"

	"github.com/effective-security/apibridge/dispatch"
)

// Tool is one catalog entry the planner and operator can reason about.
// Contract is the tool's interface description in whatever form the catalog
// carries it (an OpenAPI fragment, a GraphQL SDL snippet, a proto excerpt).
type Tool struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Metadata    dispatch.ToolMetadata `json:"metadata"`
	Contract    string                `json:"contract,omitempty"`
}

// Catalog supplies the tools relevant to a task. How relevance is computed is
// the catalog's concern; the engine only consumes the ranked slice.
type Catalog interface {
	Relevant(ctx context.Context, task string, topK int) ([]Tool, error)
}

// Exchange is one user/assistant turn of prior conversation.
type Exchange struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ActionKind enumerates what the operator can decide to do with a step.
type ActionKind string

const (
	ActionCallTool      ActionKind = "call_tool"
	ActionAskUser       ActionKind = "ask_user"
	ActionProvideAnswer ActionKind = "provide_answer"
	ActionSuggestStep   ActionKind = "suggest_additional_step"
)

// Action is the operator's decision for one step. Only the fields of the
// named kind are meaningful.
type Action struct {
	Action ActionKind `json:"action" validate:"required,oneof=call_tool ask_user provide_answer suggest_additional_step"`

	// call_tool
	ToolMetadata  dispatch.ToolMetadata `json:"tool_metadata,omitempty"`
	Payload       map[string]any        `json:"payload,omitempty"`
	ExtractFields []string              `json:"extract_fields,omitempty"`

	// ask_user
	Question string `json:"question,omitempty"`

	// provide_answer
	Answer string `json:"answer,omitempty"`

	// suggest_additional_step
	Reasoning string `json:"reasoning,omitempty"`
	NewStep   string `json:"new_step,omitempty"`
}

// Descriptor builds the call descriptor of a call_tool action.
func (a *Action) Descriptor() *dispatch.CallDescriptor {
	return &dispatch.CallDescriptor{
		Metadata:      a.ToolMetadata,
		Payload:       a.Payload,
		ExtractFields: a.ExtractFields,
	}
}

// Planner translates a user request into an ordered plan of short task
// descriptions, one tool call each.
type Planner interface {
	Plan(ctx context.Context, userQuery string, tools []Tool, history []Exchange) ([]string, error)
}

// Operator chooses the action for a single task given the outputs of the
// causally preceding steps.
type Operator interface {
	NextAction(ctx context.Context, task string, prior map[string]any, tools []Tool) (*Action, error)
}

// Synthesizer turns the accumulated step results into the final user-facing
// answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, userQuery string, results map[string]any) (string, error)
}

// UserGateway is the engine's channel back to the human: clarifying
// questions from ask_user actions and credentials for the re-auth flow.
type UserGateway interface {
	Ask(ctx context.Context, question string) (string, error)
	Credentials(ctx context.Context) (username, password string, err error)
}
