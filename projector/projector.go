// Package projector reduces API responses to the fields a plan step actually
// asked for. Projection is best-effort: a path that cannot be evaluated is
// skipped, and the caller's data is never mutated.
package projector

import (
	"github.com/effective-security/apibridge/jsonpath"
)

// Project returns a reduced copy of data containing only the values reachable
// through paths. With no paths it is the identity. When data is a sequence,
// the projection is applied independently to every mapping element and
// non-mapping elements are dropped. Output keys are the flattened form of the
// requested paths (see jsonpath.Set).
func Project(data any, paths []string) any {
	if len(paths) == 0 {
		return data
	}

	switch v := data.(type) {
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, projectMap(m, paths))
			}
		}
		return out
	case map[string]any:
		return projectMap(v, paths)
	default:
		// Scalars have no fields to project.
		return data
	}
}

func projectMap(data map[string]any, paths []string) map[string]any {
	out := map[string]any{}
	for _, path := range paths {
		v, ok := jsonpath.Get(data, path)
		if !ok || v == nil {
			continue
		}
		jsonpath.Set(out, path, v)
	}
	return out
}
