package pipeline

import (
	"github.com/flowbench/flowbench/internal/agent"
)

// Sample is one evaluation case: global inputs seeding the context,
// optional per-step input overlays, optional batch items, and optional
// expected context values.
type Sample struct {
	ID         string                    `json:"id" yaml:"id"`
	Inputs     map[string]any            `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	StepInputs map[string]map[string]any `json:"step_inputs,omitempty" yaml:"step_inputs,omitempty"`
	Items      []any                     `json:"items,omitempty" yaml:"items,omitempty"`
	Expected   map[string]any            `json:"expected,omitempty" yaml:"expected,omitempty"`
}

// SampleResult is the outcome of one sample run: the ordered step
// trace, the final context, and the pass/fail verdict when the sample
// declared expected outputs.
type SampleResult struct {
	SampleID string           `json:"sample_id"`
	Success  bool             `json:"success"`
	Passed   *bool            `json:"passed,omitempty"`
	Steps    []StepResult     `json:"steps"`
	Context  map[string]any   `json:"context,omitempty"`
	Err      string           `json:"error,omitempty"`
	Tokens   agent.TokenUsage `json:"tokens"`
	Duration float64          `json:"duration_seconds"`
}

// Suite is a named pipeline plus its evaluation samples.
type Suite struct {
	Name    string       `json:"name"`
	Steps   []StepConfig `json:"steps"`
	Samples []Sample     `json:"samples"`
}

// Totals summarizes a run. Failed counts samples that ran to completion
// but missed an expectation; Errored counts samples aborted by a step
// failure.
type Totals struct {
	Samples int `json:"samples"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// RunReport is the terminal artifact of a suite run.
type RunReport struct {
	RunID         string           `json:"run_id"`
	SuiteName     string           `json:"suite_name"`
	SampleResults []SampleResult   `json:"sample_results"`
	Totals        Totals           `json:"totals"`
	Tokens        agent.TokenUsage `json:"tokens"`
	Duration      float64          `json:"duration_seconds"`
}

// AllPassed reports whether every sample ran to completion and met its
// expectations.
func (r RunReport) AllPassed() bool {
	return r.Totals.Errored == 0 && r.Totals.Failed == 0
}
