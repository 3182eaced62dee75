// Package aggregate reduces a batch of items to one value via a
// selectable strategy. Strategy faults are contained: they become
// failed results, never errors, except for the configuration-class
// unknown-strategy case.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/log"
	"github.com/flowbench/flowbench/internal/metrics"
	"github.com/flowbench/flowbench/internal/sandbox"
)

// Strategy names a reduction from a collection of items to one value.
type Strategy string

const (
	// StrategyConcat joins string projections of each item with a separator.
	StrategyConcat Strategy = "concat"

	// StrategyStats computes numeric summaries per named field.
	StrategyStats Strategy = "stats"

	// StrategyFilter keeps items where a predicate holds, preserving order.
	StrategyFilter Strategy = "filter"

	// StrategyCustom runs caller-supplied code in the sandbox with
	// {items: items} as inputs.
	StrategyCustom Strategy = "custom"
)

// ParseStrategy parses a string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyConcat:
		return StrategyConcat, nil
	case StrategyStats:
		return StrategyStats, nil
	case StrategyFilter:
		return StrategyFilter, nil
	case StrategyCustom:
		return StrategyCustom, nil
	default:
		return "", errors.NewUnknownStrategyError(s)
	}
}

// Params carries per-strategy options.
type Params struct {
	// Separator joins concat projections (default newline).
	Separator string

	// Fields names the record fields summarized by stats.
	Fields []string

	// Predicate selects items kept by filter; nil keeps all.
	Predicate func(any) bool

	// Code is the snippet run by the custom strategy.
	Code *sandbox.CodeSpec
}

// Result is the outcome of one aggregation call. ItemCount always
// equals the input length, including for empty input.
type Result struct {
	Success   bool
	Value     any
	Err       string
	Strategy  Strategy
	ItemCount int
}

// Aggregator dispatches aggregation strategies. The Sandbox runner is
// only needed for the custom strategy.
type Aggregator struct {
	Sandbox *sandbox.Runner
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// New creates an Aggregator backed by the given sandbox runner.
func New(runner *sandbox.Runner) *Aggregator {
	return &Aggregator{Sandbox: runner}
}

func (a *Aggregator) logger() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.DefaultLogger()
}

// Aggregate reduces items with the named strategy. Empty input
// short-circuits every strategy to a nil-valued success; an unknown
// strategy on non-empty input is a hard configuration error; any
// strategy-body fault is converted into a failed Result.
func (a *Aggregator) Aggregate(ctx context.Context, items []any, strategy Strategy, params Params) (Result, error) {
	if len(items) == 0 {
		return Result{Success: true, Value: nil, Strategy: strategy, ItemCount: 0}, nil
	}

	var body func() (any, error)
	switch strategy {
	case StrategyConcat:
		body = func() (any, error) { return concat(items, params.Separator), nil }
	case StrategyStats:
		body = func() (any, error) { return stats(items, params.Fields), nil }
	case StrategyFilter:
		body = func() (any, error) { return filter(items, params.Predicate), nil }
	case StrategyCustom:
		// A malformed CodeSpec is a configuration fault, raised before
		// the contained strategy body runs.
		if params.Code != nil {
			if err := params.Code.Validate(); err != nil {
				return Result{}, err
			}
		}
		body = func() (any, error) { return a.custom(ctx, items, params) }
	default:
		return Result{}, errors.NewUnknownStrategyError(string(strategy))
	}

	value, err := a.run(body)
	result := Result{Strategy: strategy, ItemCount: len(items)}
	if err != nil {
		result.Err = err.Error()
		a.logger().Debug("aggregation failed", "strategy", string(strategy), "error", result.Err)
	} else {
		result.Success = true
		result.Value = value
	}

	a.record(result)
	return result, nil
}

// run executes a strategy body, converting panics into errors.
func (a *Aggregator) run(body func() (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return body()
}

// concat joins a string projection of each item with the separator.
// Strings pass through; records contribute their text, output, or
// result field; anything else is rendered as compact JSON.
func concat(items []any, separator string) string {
	if separator == "" {
		separator = "\n"
	}

	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = project(item)
	}
	return strings.Join(parts, separator)
}

func project(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		for _, field := range []string{"text", "output", "result"} {
			if s, ok := v[field].(string); ok {
				return s
			}
		}
	}
	rendered, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprintf("%v", item)
	}
	return string(rendered)
}

// filter keeps items where the predicate returns true, preserving
// relative order. A nil predicate keeps everything.
func filter(items []any, predicate func(any) bool) []any {
	if predicate == nil {
		kept := make([]any, len(items))
		copy(kept, items)
		return kept
	}

	kept := make([]any, 0, len(items))
	for _, item := range items {
		if predicate(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

// custom runs the caller-supplied snippet in the sandbox, passing
// {items: items} so the aggregate entry point's unwrapping convention
// applies.
func (a *Aggregator) custom(ctx context.Context, items []any, params Params) (any, error) {
	if params.Code == nil {
		return nil, fmt.Errorf("custom strategy requires code")
	}
	if a.Sandbox == nil {
		return nil, fmt.Errorf("custom strategy requires a sandbox runner")
	}

	execResult, err := a.Sandbox.Execute(ctx, *params.Code, map[string]any{"items": items})
	if err != nil {
		return nil, err
	}
	if !execResult.Success {
		return nil, fmt.Errorf("custom aggregation failed: %s", execResult.Error)
	}
	return execResult.Output, nil
}

func (a *Aggregator) record(result Result) {
	if a.Metrics == nil {
		return
	}
	a.Metrics.Aggregations.WithLabelValues(string(result.Strategy), fmt.Sprint(result.Success)).Inc()
}
