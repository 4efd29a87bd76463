package runner

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Chain accumulates step outputs in execution order. Keys follow the
// step_N_result naming the resolver and the oracles rely on; order matters
// when the chain is serialized into a prompt.
type Chain struct {
	om *orderedmap.OrderedMap[string, any]
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{om: orderedmap.New[string, any]()}
}

// StepResultKey names the output of step n (1-based).
func StepResultKey(n int) string {
	return fmt.Sprintf("step_%d_result", n)
}

// StepUserInfoKey names information the user supplied for step n.
func StepUserInfoKey(n int) string {
	return fmt.Sprintf("step_%d_user_info", n)
}

// StepErrorKey names the terminal explanation of a failed step n.
func StepErrorKey(n int) string {
	return fmt.Sprintf("step_%d_error", n)
}

// Set stores a step output, replacing any prior value under the same key
// without changing its position.
func (c *Chain) Set(key string, value any) {
	c.om.Set(key, value)
}

// Get returns a stored step output.
func (c *Chain) Get(key string) (any, bool) {
	return c.om.Get(key)
}

// Len returns the number of stored outputs.
func (c *Chain) Len() int {
	return c.om.Len()
}

// Keys returns the stored keys in insertion order.
func (c *Chain) Keys() []string {
	keys := make([]string, 0, c.om.Len())
	for pair := c.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Map renders the chain as a plain mapping for the resolver and the oracles.
func (c *Chain) Map() map[string]any {
	m := make(map[string]any, c.om.Len())
	for pair := c.om.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value
	}
	return m
}

// MarshalJSON preserves insertion order, so prompts see results in the order
// the steps produced them.
func (c *Chain) MarshalJSON() ([]byte, error) {
	return c.om.MarshalJSON()
}
