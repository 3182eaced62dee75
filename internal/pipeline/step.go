package pipeline

import (
	"fmt"

	"github.com/flowbench/flowbench/internal/aggregate"
	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/sandbox"
)

// StepKind selects which collaborator a step dispatches to. Dispatch is
// a single switch at the runner boundary.
type StepKind string

const (
	// KindCode runs a sandboxed code snippet.
	KindCode StepKind = "code"

	// KindAgent delegates to the agent-invocation collaborator.
	KindAgent StepKind = "agent"

	// KindAggregate combines a list of items with an aggregation strategy.
	KindAggregate StepKind = "aggregate"
)

// Valid reports whether the kind is one of the dispatchable kinds.
func (k StepKind) Valid() bool {
	switch k {
	case KindCode, KindAgent, KindAggregate:
		return true
	default:
		return false
	}
}

// AgentSpec configures an agent step: the flow to invoke and fixed
// flow parameters merged with the resolved inputs.
type AgentSpec struct {
	Flow   string         `json:"flow" yaml:"flow"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// AggregateSpec configures an aggregation step.
type AggregateSpec struct {
	Strategy  aggregate.Strategy `json:"strategy" yaml:"strategy"`
	Separator string             `json:"separator,omitempty" yaml:"separator,omitempty"`
	Fields    []string           `json:"fields,omitempty" yaml:"fields,omitempty"`
	Code      *sandbox.CodeSpec  `json:"code,omitempty" yaml:"code,omitempty"`
}

// BatchSpec marks a step as batch-mode: the step's operation runs once
// per item of a context-resolved list instead of once per step.
type BatchSpec struct {
	Size       int  `json:"size" yaml:"size"`
	Concurrent bool `json:"concurrent,omitempty" yaml:"concurrent,omitempty"`
	MaxWorkers int  `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
}

// StepConfig is one immutable step of a pipeline. InputMapping maps
// context keys to the parameter names the operation sees; the single
// return value lands in the context under OutputKey.
type StepConfig struct {
	ID           string            `json:"id" yaml:"id"`
	Kind         StepKind          `json:"kind" yaml:"kind"`
	InputMapping map[string]string `json:"input_mapping,omitempty" yaml:"input_mapping,omitempty"`
	OutputKey    string            `json:"output_key" yaml:"output_key"`
	Code         *sandbox.CodeSpec `json:"code,omitempty" yaml:"code,omitempty"`
	Agent        *AgentSpec        `json:"agent,omitempty" yaml:"agent,omitempty"`
	Aggregate    *AggregateSpec    `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`
	Batch        *BatchSpec        `json:"batch,omitempty" yaml:"batch,omitempty"`
}

// Validate checks the step for configuration errors: a known kind, the
// kind-specific payload present and valid, and an output key to bind.
func (s StepConfig) Validate() error {
	if s.ID == "" {
		return errors.New(errors.ErrCodePipelineStepInvalid, "step has no id")
	}
	if !s.Kind.Valid() {
		return errors.New(errors.ErrCodePipelineUnknownStepKind,
			fmt.Sprintf("step %s: unknown kind: %s", s.ID, s.Kind))
	}
	if s.OutputKey == "" {
		return errors.New(errors.ErrCodePipelineStepInvalid,
			fmt.Sprintf("step %s: no output key", s.ID))
	}

	switch s.Kind {
	case KindCode:
		if s.Code == nil {
			return errors.New(errors.ErrCodePipelineStepInvalid,
				fmt.Sprintf("step %s: code step has no code spec", s.ID))
		}
		if err := s.Code.Validate(); err != nil {
			return err
		}
	case KindAgent:
		if s.Agent == nil || s.Agent.Flow == "" {
			return errors.New(errors.ErrCodePipelineStepInvalid,
				fmt.Sprintf("step %s: agent step has no flow", s.ID))
		}
	case KindAggregate:
		if s.Aggregate == nil {
			return errors.New(errors.ErrCodePipelineStepInvalid,
				fmt.Sprintf("step %s: aggregate step has no strategy", s.ID))
		}
		if _, err := aggregate.ParseStrategy(string(s.Aggregate.Strategy)); err != nil {
			return err
		}
		if s.Aggregate.Strategy == aggregate.StrategyCustom {
			if s.Aggregate.Code == nil {
				return errors.New(errors.ErrCodePipelineStepInvalid,
					fmt.Sprintf("step %s: custom aggregation has no code spec", s.ID))
			}
			if err := s.Aggregate.Code.Validate(); err != nil {
				return err
			}
		}
	}

	if s.Batch != nil && s.Batch.Size < 1 {
		return errors.NewBatchSizeError(s.Batch.Size)
	}

	return nil
}

// ValidateSteps validates a pipeline as a whole: every step valid,
// step IDs unique, and an invoker present when agent steps exist.
func ValidateSteps(steps []StepConfig, hasInvoker bool) error {
	if len(steps) == 0 {
		return errors.New(errors.ErrCodePipelineStepInvalid, "pipeline has no steps")
	}

	seen := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		if err := step.Validate(); err != nil {
			return err
		}
		if _, dup := seen[step.ID]; dup {
			return errors.New(errors.ErrCodePipelineStepInvalid,
				"duplicate step id: "+step.ID)
		}
		seen[step.ID] = struct{}{}

		if step.Kind == KindAgent && !hasInvoker {
			return errors.New(errors.ErrCodePipelineNoInvoker,
				fmt.Sprintf("step %s is an agent step but no agent invoker is configured", step.ID)).
				WithSuggestion("Pass --agent-cmd or configure the agent bridge in flowbench.yaml")
		}
	}
	return nil
}

// StepResult records one executed step, in execution order.
type StepResult struct {
	StepID      string  `json:"step_id"`
	Success     bool    `json:"success"`
	OutputKey   string  `json:"output_key,omitempty"`
	OutputValue any     `json:"output_value,omitempty"`
	Err         string  `json:"error,omitempty"`
	Duration    float64 `json:"duration_seconds"`
}
