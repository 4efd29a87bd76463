// Package jsonpath navigates loosely-typed JSON values using dotted path
// expressions. It backs both field projection and payload variable
// resolution, so its lookup contract is deliberately total: malformed paths
// and missing data degrade to absent, never to a panic or an error.
//
// Supported syntax:
//   - plain keys:      "user.email"
//   - explicit index:  "items[0].name"
//   - wildcard fan-out: "items[].name" (normalized to "items[*].name")
//
// A wildcard applies the remaining path to every mapping element of the
// current sequence and yields the sequence of per-element results, which may
// contain absent (nil) entries.
package jsonpath

import (
	"strconv"
	"strings"
)

// Get looks up path in data. The second return value reports whether the
// lookup produced a value; a missing key, an out-of-range index, a type
// mismatch or a malformed bracket all return (nil, false).
func Get(data any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(strings.ReplaceAll(path, "[].", "[*]."), ".")
	return getParts(data, parts)
}

func getParts(data any, parts []string) (any, bool) {
	current := data
	for i, part := range parts {
		if part == "" {
			return nil, false
		}
		if bracket := strings.IndexByte(part, '['); bracket >= 0 {
			name := part[:bracket]
			idx := part[bracket:]
			if name != "" {
				m, ok := current.(map[string]any)
				if !ok {
					return nil, false
				}
				current = m[name]
			}
			seq, ok := current.([]any)
			if !ok {
				return nil, false
			}
			switch {
			case idx == "[*]" || idx == "[]":
				// Fan-out: the remaining path is evaluated against every
				// mapping element; absent results are kept as nil entries.
				rest := parts[i+1:]
				if len(rest) == 0 {
					return seq, true
				}
				var out []any
				for _, item := range seq {
					if m, ok := item.(map[string]any); ok {
						v, _ := getParts(m, rest)
						out = append(out, v)
					}
				}
				return out, true
			case strings.HasSuffix(idx, "]"):
				n, err := strconv.Atoi(idx[1 : len(idx)-1])
				if err != nil || n < 0 || n >= len(seq) {
					return nil, false
				}
				current = seq[n]
			default:
				return nil, false
			}
		} else {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		}
		if current == nil {
			return nil, false
		}
	}
	return current, true
}

// FlatKey collapses a path expression into the single synthetic key used by
// Set: "items[].name" becomes "items_name", "user.email" becomes
// "user_email". Distinct paths can collide after flattening (for example
// "a.b_c" and "a_b.c"); this is a known limitation carried over from the
// projection contract, which always produces a flat mapping.
func FlatKey(path string) string {
	return strings.ReplaceAll(strings.ReplaceAll(path, "[].", "_"), ".", "_")
}

// Set assigns value into dst under the flattened form of path. It never
// reconstructs nested structure; projection output is a flat mapping.
func Set(dst map[string]any, path string, value any) {
	dst[FlatKey(path)] = value
}
