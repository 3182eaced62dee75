// Package agent defines the agent-invocation collaborator: the interface
// pipeline steps call to delegate work to an external agent, plus an
// executable bridge implementation. The engine never talks to a model
// directly; it hands a flow name and inputs to an Invoker and consumes
// structured output and token usage.
package agent

import (
	"context"
	"time"
)

// TokenUsage accumulates token counts across agent calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// FlowRequest names the flow to invoke and carries its inputs and
// flow-specific parameters.
type FlowRequest struct {
	Flow   string         `json:"flow"`
	Inputs map[string]any `json:"inputs,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// FlowResponse is the structured result of one agent invocation.
type FlowResponse struct {
	Output  any           `json:"output"`
	Usage   TokenUsage    `json:"usage"`
	Model   string        `json:"model,omitempty"`
	Latency time.Duration `json:"-"`
}

// Invoker is implemented by anything that can execute a named agent
// flow. Implementations must be safe for concurrent use; the pipeline
// runner calls Invoke from multiple sample goroutines.
type Invoker interface {
	Invoke(ctx context.Context, req FlowRequest) (FlowResponse, error)
	Available() bool
}
