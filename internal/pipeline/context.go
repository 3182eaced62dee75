// Package pipeline executes multi-step evaluation pipelines: an ordered
// chain of code, agent, and aggregation steps over a per-sample
// execution context, fanned out across samples by the scheduler.
package pipeline

import (
	"sort"

	"github.com/flowbench/flowbench/internal/errors"
)

// Context is the append-only key→value store one sample's steps share.
// Keys are never overwritten; insertion order is preserved. A Context
// belongs to exactly one sample run and is never shared across
// goroutines.
type Context struct {
	values map[string]any
	order  []string
}

// NewContext creates a Context seeded with the sample's global inputs.
func NewContext(inputs map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(inputs))}
	for _, k := range sortedKeys(inputs) {
		c.values[k] = inputs[k]
		c.order = append(c.order, k)
	}
	return c
}

// Set binds key to value. Rebinding an existing key is an error; steps
// communicate through fresh output keys only.
func (c *Context) Set(key string, value any) error {
	if _, exists := c.values[key]; exists {
		return errors.New(errors.ErrCodePipelineKeyOverwrite,
			"context key already bound: "+key).
			WithSuggestion("Give each step a distinct outputKey")
	}
	c.values[key] = value
	c.order = append(c.order, key)
	return nil
}

// Get returns the value bound to key.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Keys returns all bound keys in insertion order.
func (c *Context) Keys() []string {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys
}

// Resolve maps context keys to step parameter names per the step's
// inputMapping. A missing key is a coded pipeline error naming the step.
func (c *Context) Resolve(mapping map[string]string, stepID string) (map[string]any, error) {
	params := make(map[string]any, len(mapping))
	for ctxKey, paramName := range mapping {
		v, ok := c.values[ctxKey]
		if !ok {
			return nil, errors.NewMissingKeyError(ctxKey, stepID)
		}
		params[paramName] = v
	}
	return params, nil
}

// Snapshot returns a shallow copy of the current bindings.
func (c *Context) Snapshot() map[string]any {
	snap := make(map[string]any, len(c.values))
	for k, v := range c.values {
		snap[k] = v
	}
	return snap
}

// sortedKeys keeps the seeded insertion order deterministic; map
// iteration order is not.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
