package recovery

import (
	"context"

	"github.com/effective-security/apibridge/dispatch"
)

// Report is everything the advisor gets to see about a failed attempt.
type Report struct {
	Task      string
	UserQuery string
	Plan      []string
	Prior     map[string]any

	Metadata dispatch.ToolMetadata
	Payload  map[string]any
	Attempt  int
	Category Category
	Envelope *dispatch.ResultEnvelope
}

// Advisor selects the recovery strategy for a failed attempt. Implementations
// must return a valid Decision or an error; the loop maps errors to give_up.
type Advisor interface {
	Advise(ctx context.Context, report *Report) (*Decision, error)
}
