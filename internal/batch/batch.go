// Package batch splits item collections into fixed-size batches and
// applies a per-item operation, sequentially or over a bounded pool,
// always preserving the original item order in its results.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/log"
	"github.com/flowbench/flowbench/internal/metrics"
	"github.com/flowbench/flowbench/internal/scheduler"
)

// ItemFunc processes one item. Errors and panics are contained at the
// item boundary: the failing slot degrades to a nil sentinel while the
// rest of the batch and subsequent batches still run.
type ItemFunc func(ctx context.Context, item any) (any, error)

// Processor applies ItemFuncs over batched collections.
type Processor struct {
	// MaxWorkers bounds pool parallelism in concurrent mode (default 4).
	MaxWorkers int

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// New creates a Processor with the given pool size.
func New(maxWorkers int) *Processor {
	return &Processor{MaxWorkers: maxWorkers}
}

func (p *Processor) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.DefaultLogger()
}

// Process partitions items into contiguous batches of batchSize (the
// last batch may be short) and applies fn to every item. results[i]
// always corresponds to items[i], in both modes. An invalid batchSize
// is a hard configuration error.
func (p *Processor) Process(ctx context.Context, items []any, fn ItemFunc, batchSize int, concurrent bool) ([]any, error) {
	results, _, err := p.process(ctx, items, fn, batchSize, concurrent)
	return results, err
}

// Report is the detailed outcome of one batch run. Partial failures
// keep Success true, with the failing slots enumerated in
// FailedIndices.
// Caller-level errors (an invalid batch size) are captured as
// Success=false with a message rather than propagated.
type Report struct {
	Success       bool
	Results       []any
	ItemCount     int
	BatchCount    int
	FailedIndices []int
	Duration      float64
	Error         string
}

// ProcessDetailed runs Process and reports item/batch accounting,
// failure positions, and wall-clock time.
func (p *Processor) ProcessDetailed(ctx context.Context, items []any, fn ItemFunc, batchSize int, concurrent bool) Report {
	start := time.Now()

	results, failedIndices, err := p.process(ctx, items, fn, batchSize, concurrent)
	if err != nil {
		return Report{
			Success:   false,
			ItemCount: len(items),
			Duration:  time.Since(start).Seconds(),
			Error:     err.Error(),
		}
	}

	return Report{
		Success:       true,
		Results:       results,
		ItemCount:     len(items),
		BatchCount:    (len(items) + batchSize - 1) / batchSize,
		FailedIndices: failedIndices,
		Duration:      time.Since(start).Seconds(),
	}
}

func (p *Processor) process(ctx context.Context, items []any, fn ItemFunc, batchSize int, concurrent bool) ([]any, []int, error) {
	if batchSize < 1 {
		return nil, nil, errors.NewBatchSizeError(batchSize)
	}
	if len(items) == 0 {
		return []any{}, nil, nil
	}

	batches := partition(items, batchSize)

	var results []any
	var failed []bool
	var err error
	if concurrent {
		results, failed, err = p.processConcurrent(ctx, batches, fn, len(items))
	} else {
		results, failed, err = p.processSequential(ctx, batches, fn, len(items))
	}
	if err != nil {
		return nil, nil, err
	}

	failedIndices := make([]int, 0)
	for i, f := range failed {
		if f {
			failedIndices = append(failedIndices, i)
		}
	}

	p.record(concurrent, len(items), len(failedIndices))
	return results, failedIndices, nil
}

func (p *Processor) processSequential(ctx context.Context, batches [][]any, fn ItemFunc, total int) ([]any, []bool, error) {
	results := make([]any, 0, total)
	failed := make([]bool, 0, total)

	for _, b := range batches {
		values, flags := p.processBatch(ctx, b, fn)
		results = append(results, values...)
		failed = append(failed, flags...)
	}

	return results, failed, nil
}

// processConcurrent dispatches one scheduler task per batch and
// reassembles output by batch index before flattening, so item order
// survives any completion order.
func (p *Processor) processConcurrent(ctx context.Context, batches [][]any, fn ItemFunc, total int) ([]any, []bool, error) {
	type batchOutput struct {
		values []any
		flags  []bool
	}

	tasks := make([]scheduler.Task, len(batches))
	for i, b := range batches {
		b := b
		tasks[i] = scheduler.Task{
			ID: fmt.Sprintf("batch-%d", i),
			Work: func(ctx context.Context, args map[string]any) (any, error) {
				values, flags := p.processBatch(ctx, b, fn)
				return batchOutput{values: values, flags: flags}, nil
			},
		}
	}

	pool := &scheduler.Scheduler{MaxWorkers: p.MaxWorkers, Logger: p.Logger}
	taskResults, err := pool.ExecuteConcurrent(ctx, tasks)
	if err != nil {
		return nil, nil, err
	}

	// Task results arrive in submission order, which is batch order.
	results := make([]any, 0, total)
	failed := make([]bool, 0, total)
	for i, tr := range taskResults {
		if !tr.Success {
			// A whole-batch fault degrades every item in that batch.
			p.logger().Warn("batch failed", "batch", i, "error", tr.Err)
			for range batches[i] {
				results = append(results, nil)
				failed = append(failed, true)
			}
			continue
		}
		out := tr.Value.(batchOutput)
		results = append(results, out.values...)
		failed = append(failed, out.flags...)
	}

	return results, failed, nil
}

// processBatch applies fn to each item, containing per-item faults.
func (p *Processor) processBatch(ctx context.Context, items []any, fn ItemFunc) ([]any, []bool) {
	values := make([]any, len(items))
	failed := make([]bool, len(items))

	for i, item := range items {
		value, err := p.processItem(ctx, item, fn)
		if err != nil {
			p.logger().Debug("batch item failed", "error", err.Error())
			values[i] = nil
			failed[i] = true
			continue
		}
		values[i] = value
	}

	return values, failed
}

func (p *Processor) processItem(ctx context.Context, item any, fn ItemFunc) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, item)
}

// partition splits items into contiguous slices of size batchSize; the
// last slice may be short.
func partition(items []any, batchSize int) [][]any {
	batches := make([][]any, 0, (len(items)+batchSize-1)/batchSize)
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

func (p *Processor) record(concurrent bool, items, failures int) {
	if p.Metrics == nil {
		return
	}
	mode := "sequential"
	if concurrent {
		mode = "concurrent"
	}
	p.Metrics.BatchItems.WithLabelValues(mode).Add(float64(items))
	p.Metrics.BatchFailures.WithLabelValues(mode).Add(float64(failures))
}
