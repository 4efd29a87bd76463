// Package resolver substitutes inter-step data references in call payloads.
// A payload value that is exactly "${<path>}" is replaced with the value at
// that path in the accumulated step results before the call is dispatched.
package resolver

import (
	"strings"

	"github.com/effective-security/apibridge/jsonpath"
)

// Resolve returns a copy of payload with top-level "${path}" string values
// replaced by lookups into results. Only top-level string values are
// eligible; nested structures pass through untouched. A reference that does
// not resolve yields nil rather than an error; rejecting incomplete payloads
// is the dispatcher's job.
func Resolve(payload map[string]any, results map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	resolved := make(map[string]any, len(payload))
	for key, value := range payload {
		if ref, ok := reference(value); ok {
			v, _ := jsonpath.Get(any(results), ref)
			resolved[key] = v
		} else {
			resolved[key] = value
		}
	}
	return resolved
}

func reference(value any) (string, bool) {
	s, ok := value.(string)
	if !ok || len(s) < 3 || !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	return s[2 : len(s)-1], true
}
