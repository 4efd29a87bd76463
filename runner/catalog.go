package runner

import (
	"context"
	"sort"
	"strings"
)

// StaticCatalog serves a fixed tool list, ranked by naive token overlap
// between the task and each tool's name, description and contract. It is
// meant for small catalogs and tests; production catalogs with retrieval
// implement Catalog themselves.
type StaticCatalog struct {
	tools []Tool
}

// NewStaticCatalog creates a catalog over a fixed tool list.
func NewStaticCatalog(tools ...Tool) *StaticCatalog {
	return &StaticCatalog{tools: tools}
}

// Relevant returns up to topK tools ordered by overlap with the task.
// Ties keep registration order.
func (c *StaticCatalog) Relevant(_ context.Context, task string, topK int) ([]Tool, error) {
	words := tokenize(task)

	type scored struct {
		tool  Tool
		score int
	}
	ranked := make([]scored, 0, len(c.tools))
	for _, tool := range c.tools {
		text := strings.ToLower(tool.Name + " " + tool.Description + " " + tool.Contract)
		score := 0
		for word := range words {
			if strings.Contains(text, word) {
				score++
			}
		}
		ranked = append(ranked, scored{tool: tool, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}
	out := make([]Tool, 0, topK)
	for _, s := range ranked[:topK] {
		out = append(out, s.tool)
	}
	return out, nil
}

func tokenize(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?'\"")
		if len(w) > 2 {
			words[w] = struct{}{}
		}
	}
	return words
}
