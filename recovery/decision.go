package recovery

import (
	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/gogentic/pkg/llmutils"
	"github.com/go-playground/validator/v10"
)

// Strategy is an advisor-selected next move for a failed call.
type Strategy string

const (
	StrategyRetryWithFix  Strategy = "retry_with_fix"
	StrategyWaitAndRetry  Strategy = "wait_and_retry"
	StrategyExplainToUser Strategy = "explain_to_user"
	StrategyGiveUp        Strategy = "give_up"
)

// Decision is the advisor's structured response. NewPayload is only
// meaningful for retry_with_fix, Explanation only for explain_to_user.
type Decision struct {
	Strategy    Strategy       `json:"strategy" yaml:"strategy" validate:"required,oneof=retry_with_fix wait_and_retry explain_to_user give_up"`
	Reasoning   string         `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	NewPayload  map[string]any `json:"new_payload,omitempty" yaml:"new_payload,omitempty"`
	Explanation string         `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

var validate = validator.New()

// ParseDecision decodes a model-produced decision. The input may carry
// backticks, fences or trailing prose around the JSON object; parsing is
// lenient but the decoded decision must still validate structurally.
func ParseDecision(raw []byte) (*Decision, error) {
	var d Decision
	if err := ljson.Unmarshal(llmutils.CleanJSON(raw), &d); err != nil {
		return nil, errors.WithMessage(err, "failed to parse decision")
	}
	if err := validate.Struct(&d); err != nil {
		return nil, errors.WithMessage(err, "invalid decision")
	}
	return &d, nil
}

// GiveUp returns the decision used whenever the advisor cannot produce a
// usable one.
func GiveUp(reasoning string) *Decision {
	return &Decision{
		Strategy:  StrategyGiveUp,
		Reasoning: reasoning,
	}
}
