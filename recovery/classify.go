// Package recovery classifies failed call envelopes and drives the bounded
// retry loop around the dispatcher. Strategies come from an external Advisor;
// the loop itself only enforces the state machine and the attempt budget.
package recovery

import (
	"strings"

	"github.com/effective-security/apibridge/dispatch"
)

// Category is the closed set of failure classes the advisor reasons about.
type Category string

const (
	CategoryNotFound   Category = "NotFound"
	CategoryAuth       Category = "AuthError"
	CategoryValidation Category = "ValidationError"
	CategoryServer     Category = "ServerError"
	CategoryGraphQL    Category = "GraphQLError"
	CategoryTimeout    Category = "TimeoutError"
	CategoryConnection Category = "ConnectionError"
	CategoryUnknown    Category = "Unknown"
)

// Classify maps a failed envelope to its Category. The rules are evaluated in
// a fixed order and the first match wins, so overlapping substrings resolve
// deterministically to the earlier rule.
func Classify(env *dispatch.ResultEnvelope) Category {
	msg := strings.ToLower(env.Error)
	switch {
	case containsAny(msg, "404", "not_found"):
		return CategoryNotFound
	case containsAny(msg, "401", "403", "auth", "unauthenticated"):
		return CategoryAuth
	case containsAny(msg, "400", "422", "validation"):
		return CategoryValidation
	case containsAny(msg, "500", "503", "unavailable"):
		return CategoryServer
	}
	if data, ok := env.Data.(map[string]any); ok {
		if _, found := data["errors"]; found {
			return CategoryGraphQL
		}
	}
	switch {
	case strings.Contains(msg, "timeout"):
		return CategoryTimeout
	case strings.Contains(msg, "connection"):
		return CategoryConnection
	}
	return CategoryUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
