package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowbench/flowbench/internal/agent"
	"github.com/flowbench/flowbench/internal/aggregate"
	"github.com/flowbench/flowbench/internal/batch"
	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/log"
	"github.com/flowbench/flowbench/internal/metrics"
	"github.com/flowbench/flowbench/internal/sandbox"
	"github.com/flowbench/flowbench/internal/scheduler"
	"github.com/flowbench/flowbench/internal/trace"
)

// CodeExecutor runs sandboxed snippets. *sandbox.Runner satisfies it;
// tests substitute in-process fakes.
type CodeExecutor interface {
	Execute(ctx context.Context, spec sandbox.CodeSpec, inputs map[string]any) (sandbox.ExecutionResult, error)
}

// Runner drives pipelines: one sample at a time through RunSample, a
// whole suite across the scheduler's pool through RunSuite.
type Runner struct {
	Sandbox    CodeExecutor
	Aggregator *aggregate.Aggregator
	Batch      *batch.Processor
	Invoker    agent.Invoker

	// Workers bounds the multi-sample pool in RunSuite.
	Workers int

	Logger     *log.Logger
	Metrics    *metrics.Metrics
	Trace      *trace.Logger
	OnProgress scheduler.ProgressFunc
}

// NewRunner wires a Runner around a sandbox runner with default
// collaborators.
func NewRunner(sb *sandbox.Runner) *Runner {
	return &Runner{
		Sandbox:    sb,
		Aggregator: aggregate.New(sb),
		Batch:      batch.New(0),
	}
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.DefaultLogger()
}

func (r *Runner) processor() *batch.Processor {
	if r.Batch != nil {
		return r.Batch
	}
	return batch.New(0)
}

func (r *Runner) aggregator() *aggregate.Aggregator {
	if r.Aggregator != nil {
		return r.Aggregator
	}
	return aggregate.New(nil)
}

// RunSample executes the steps strictly in declared order over a fresh
// Context seeded from the sample. A step failure aborts the remaining
// steps; the result carries the partial trace and the triggering error.
func (r *Runner) RunSample(ctx context.Context, steps []StepConfig, sample Sample) SampleResult {
	start := time.Now()
	result := SampleResult{SampleID: sample.ID, Success: true}

	if err := ValidateSteps(steps, r.Invoker != nil); err != nil {
		result.Success = false
		result.Err = err.Error()
		result.Duration = time.Since(start).Seconds()
		return result
	}

	pctx := NewContext(sample.Inputs)
	if len(sample.Items) > 0 {
		if _, bound := pctx.Get("items"); !bound {
			pctx.Set("items", sample.Items)
		}
	}

	if r.Trace != nil {
		r.Trace.LogSampleStart(sample.ID)
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			result.Success = false
			result.Err = fmt.Sprintf("sample cancelled: %v", ctx.Err())
			break
		}

		stepResult, usage := r.runStep(ctx, step, sample, pctx)
		result.Steps = append(result.Steps, stepResult)
		result.Tokens.Add(usage)

		if !stepResult.Success {
			result.Success = false
			result.Err = fmt.Sprintf("step %s: %s", step.ID, stepResult.Err)
			break
		}

		if err := pctx.Set(step.OutputKey, stepResult.OutputValue); err != nil {
			result.Success = false
			result.Err = err.Error()
			break
		}
	}

	result.Context = pctx.Snapshot()
	result.Duration = time.Since(start).Seconds()

	if result.Success && len(sample.Expected) > 0 {
		passed, mismatch := checkExpected(sample.Expected, result.Context)
		result.Passed = &passed
		if !passed {
			result.Err = mismatch
		}
	}

	r.recordSample(result)
	if r.Trace != nil {
		r.Trace.LogSampleComplete(sample.ID, result.Success, time.Duration(result.Duration*float64(time.Second)))
	}

	return result
}

// runStep resolves the step's inputs against the context and dispatches
// it, batch-mode or single-shot. Failures are returned as result
// values; only the StepResult records them.
func (r *Runner) runStep(ctx context.Context, step StepConfig, sample Sample, pctx *Context) (StepResult, agent.TokenUsage) {
	start := time.Now()
	result := StepResult{StepID: step.ID, OutputKey: step.OutputKey}

	if r.Trace != nil {
		r.Trace.LogStepStart(sample.ID, step.ID)
	}

	fail := func(err error) (StepResult, agent.TokenUsage) {
		result.Success = false
		result.Err = err.Error()
		result.Duration = time.Since(start).Seconds()
		r.recordStep(step.Kind, false, result.Duration)
		if r.Trace != nil {
			r.Trace.LogStepFail(sample.ID, step.ID, err)
		}
		return result, agent.TokenUsage{}
	}

	inputs, err := pctx.Resolve(step.InputMapping, step.ID)
	if err != nil {
		return fail(err)
	}
	for k, v := range sample.StepInputs[step.ID] {
		inputs[k] = v
	}

	var value any
	var usage agent.TokenUsage
	if step.Batch != nil {
		value, err = r.runBatchStep(ctx, step, inputs)
	} else {
		value, usage, err = r.invoke(ctx, step, inputs)
	}
	if err != nil {
		res, _ := fail(err)
		return res, usage
	}

	result.Success = true
	result.OutputValue = value
	result.Duration = time.Since(start).Seconds()
	r.recordStep(step.Kind, true, result.Duration)
	if r.Trace != nil {
		r.Trace.LogStepComplete(sample.ID, step.ID, step.OutputKey, time.Since(start))
	}

	return result, usage
}

// runBatchStep fans the step's operation out over a resolved item list.
// Each item invocation sees the resolved inputs with the list parameter
// replaced by the single item.
func (r *Runner) runBatchStep(ctx context.Context, step StepConfig, inputs map[string]any) (any, error) {
	itemsKey, items, err := resolveItems(step, inputs)
	if err != nil {
		return nil, err
	}

	fn := func(ctx context.Context, item any) (any, error) {
		itemInputs := make(map[string]any, len(inputs))
		for k, v := range inputs {
			itemInputs[k] = v
		}
		itemInputs[itemsKey] = item

		value, _, err := r.invoke(ctx, step, itemInputs)
		return value, err
	}

	proc := r.processor()
	if step.Batch.MaxWorkers > 0 {
		// The step's own worker bound overrides the shared pool size.
		proc = &batch.Processor{
			MaxWorkers: step.Batch.MaxWorkers,
			Logger:     proc.Logger,
			Metrics:    proc.Metrics,
		}
	}
	return proc.Process(ctx, items, fn, step.Batch.Size, step.Batch.Concurrent)
}

// resolveItems finds the list a batch step iterates: the `items`
// parameter when present, otherwise the sole resolved input.
func resolveItems(step StepConfig, inputs map[string]any) (string, []any, error) {
	key := "items"
	raw, ok := inputs[key]
	if !ok {
		if len(inputs) != 1 {
			return "", nil, errors.New(errors.ErrCodePipelineStepInvalid,
				fmt.Sprintf("step %s: batch step needs an items parameter or exactly one input", step.ID))
		}
		for k, v := range inputs {
			key, raw = k, v
		}
	}

	items, err := toItemList(raw)
	if err != nil {
		return "", nil, errors.New(errors.ErrCodePipelineStepInvalid,
			fmt.Sprintf("step %s: batch input %s is not a list: %v", step.ID, key, err))
	}
	return key, items, nil
}

func toItemList(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("got %T", v)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

// invoke dispatches one operation by step kind.
func (r *Runner) invoke(ctx context.Context, step StepConfig, inputs map[string]any) (any, agent.TokenUsage, error) {
	switch step.Kind {
	case KindCode:
		res, err := r.Sandbox.Execute(ctx, *step.Code, inputs)
		if err != nil {
			return nil, agent.TokenUsage{}, err
		}
		if !res.Success {
			return nil, agent.TokenUsage{}, fmt.Errorf("%s", res.Error)
		}
		return res.Output, agent.TokenUsage{}, nil

	case KindAgent:
		resp, err := r.Invoker.Invoke(ctx, agent.FlowRequest{
			Flow:   step.Agent.Flow,
			Inputs: inputs,
			Params: step.Agent.Params,
		})
		if err != nil {
			return nil, agent.TokenUsage{}, err
		}
		return resp.Output, resp.Usage, nil

	case KindAggregate:
		_, items, err := resolveItems(step, inputs)
		if err != nil {
			return nil, agent.TokenUsage{}, err
		}

		res, err := r.aggregator().Aggregate(ctx, items, step.Aggregate.Strategy, aggregate.Params{
			Separator: step.Aggregate.Separator,
			Fields:    step.Aggregate.Fields,
			Code:      step.Aggregate.Code,
		})
		if err != nil {
			return nil, agent.TokenUsage{}, err
		}
		if !res.Success {
			return nil, agent.TokenUsage{}, fmt.Errorf("%s", res.Err)
		}
		return res.Value, agent.TokenUsage{}, nil

	default:
		return nil, agent.TokenUsage{}, errors.New(errors.ErrCodePipelineUnknownStepKind,
			fmt.Sprintf("step %s: unknown kind: %s", step.ID, step.Kind))
	}
}

// RunSuite evaluates every sample over the scheduler's bounded pool:
// one task per sample, one Context per sample, submission-order results.
func (r *Runner) RunSuite(ctx context.Context, suite Suite) (RunReport, error) {
	start := time.Now()
	report := RunReport{RunID: uuid.NewString(), SuiteName: suite.Name}

	if err := ValidateSteps(suite.Steps, r.Invoker != nil); err != nil {
		return report, err
	}
	if len(suite.Samples) == 0 {
		return report, errors.New(errors.ErrCodeSchedNoTasks, "suite has no samples to run")
	}

	if r.Trace != nil {
		r.Trace.LogRunStart(suite.Name, len(suite.Samples))
	}
	r.logger().Info("suite run started",
		"suite", suite.Name,
		"run_id", report.RunID,
		"samples", len(suite.Samples),
	)

	tasks := make([]scheduler.Task, len(suite.Samples))
	for i, sample := range suite.Samples {
		sample := sample
		tasks[i] = scheduler.Task{
			ID: "sample-" + sample.ID,
			Work: func(ctx context.Context, _ map[string]any) (any, error) {
				return r.RunSample(ctx, suite.Steps, sample), nil
			},
		}
	}

	onProgress := r.OnProgress
	if r.Trace != nil {
		forward := onProgress
		onProgress = func(p scheduler.Progress) {
			r.Trace.LogTaskProgress(p.Total, p.Completed, p.Running, p.Pending, p.Failed)
			if forward != nil {
				forward(p)
			}
		}
	}

	pool := &scheduler.Scheduler{
		MaxWorkers: r.Workers,
		OnProgress: onProgress,
		Logger:     r.Logger,
		Metrics:    r.Metrics,
	}

	taskResults, err := pool.ExecuteConcurrent(ctx, tasks)
	if err != nil {
		return report, err
	}

	report.SampleResults = make([]SampleResult, 0, len(taskResults))
	for i, tr := range taskResults {
		sr, ok := tr.Value.(SampleResult)
		if !ok {
			// A cancelled or panicked task produced no SampleResult.
			sr = SampleResult{
				SampleID: suite.Samples[i].ID,
				Success:  false,
				Err:      tr.Err,
			}
		}
		report.SampleResults = append(report.SampleResults, sr)
		report.Tokens.Add(sr.Tokens)

		report.Totals.Samples++
		switch {
		case !sr.Success:
			report.Totals.Errored++
		case sr.Passed != nil && !*sr.Passed:
			report.Totals.Failed++
		default:
			report.Totals.Passed++
		}
	}

	report.Duration = time.Since(start).Seconds()

	if r.Trace != nil {
		r.Trace.LogRunComplete(report.Totals.Passed, report.Totals.Failed, report.Totals.Errored, time.Since(start))
	}
	r.logger().Info("suite run complete",
		"suite", suite.Name,
		"run_id", report.RunID,
		"passed", report.Totals.Passed,
		"failed", report.Totals.Failed,
		"errored", report.Totals.Errored,
		"duration_seconds", report.Duration,
	)

	return report, nil
}

// checkExpected compares expected entries against the final context
// under semantic JSON equality.
func checkExpected(expected, actual map[string]any) (bool, string) {
	var mismatches []string
	for key, want := range expected {
		got, ok := actual[key]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("expected key %s missing from context", key))
			continue
		}
		if !jsonEqual(want, got) {
			mismatches = append(mismatches, fmt.Sprintf("expected %s for key %s, got %s",
				compactJSON(want), key, compactJSON(got)))
		}
	}
	if len(mismatches) > 0 {
		return false, strings.Join(mismatches, "; ")
	}
	return true, ""
}

// jsonEqual compares two values after a JSON round trip, so 1 (int)
// equals 1.0 (float64) and map ordering is irrelevant.
func jsonEqual(a, b any) bool {
	return reflect.DeepEqual(canonical(a), canonical(b))
}

func canonical(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func (r *Runner) recordStep(kind StepKind, success bool, duration float64) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.StepExecutions.WithLabelValues(string(kind), fmt.Sprint(success)).Inc()
	r.Metrics.StepDuration.WithLabelValues(string(kind)).Observe(duration)
}

func (r *Runner) recordSample(result SampleResult) {
	if r.Metrics == nil {
		return
	}
	status := "passed"
	switch {
	case !result.Success:
		status = "errored"
	case result.Passed != nil && !*result.Passed:
		status = "failed"
	}
	r.Metrics.SampleRuns.WithLabelValues(status).Inc()
	r.Metrics.SampleDuration.WithLabelValues().Observe(result.Duration)
}
