package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/log"
	"github.com/flowbench/flowbench/internal/metrics"
)

// WorkFunc is one unit of work. A returned error (or a panic) is
// contained at the worker boundary and converted into a failed
// TaskResult; it never aborts siblings or the scheduler.
type WorkFunc func(ctx context.Context, args map[string]any) (any, error)

// Task is a named unit of work, created by the caller before a run and
// consumed exactly once. DependsOn lists task IDs that must complete
// successfully before this task becomes eligible.
type Task struct {
	ID        string
	Work      WorkFunc
	Args      map[string]any
	DependsOn []string
}

// TaskResult is the terminal outcome of one Task, exactly one per task.
type TaskResult struct {
	TaskID        string
	Success       bool
	Value         any
	Err           string
	ExecutionTime float64
}

// Scheduler executes sets of tasks over a bounded worker pool.
type Scheduler struct {
	// MaxWorkers bounds pool parallelism (default 4).
	MaxWorkers int

	// OnProgress, when set, receives a snapshot after every task-state
	// transition.
	OnProgress ProgressFunc

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

const defaultWorkers = 4

// New creates a Scheduler with the given pool size.
func New(maxWorkers int) *Scheduler {
	return &Scheduler{MaxWorkers: maxWorkers}
}

func (s *Scheduler) workers() int {
	if s.MaxWorkers > 0 {
		return s.MaxWorkers
	}
	return defaultWorkers
}

func (s *Scheduler) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.DefaultLogger()
}

type completion struct {
	index  int
	result TaskResult
}

// ExecuteConcurrent runs all tasks over the worker pool with no
// ordering constraint. Results are returned in submission order
// regardless of completion order.
func (s *Scheduler) ExecuteConcurrent(ctx context.Context, tasks []Task) ([]TaskResult, error) {
	if err := validateTasks(tasks, false); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return []TaskResult{}, nil
	}

	workers := s.workers()
	state := newProgressState(len(tasks), time.Now())
	results := make([]TaskResult, len(tasks))
	doneCh := make(chan completion)

	next := 0
	inFlight := 0
	finished := 0

	for finished < len(tasks) {
		for inFlight < workers && next < len(tasks) {
			task := tasks[next]
			index := next
			next++
			inFlight++
			state.dispatched()
			s.emit(state)

			go func() {
				doneCh <- completion{index: index, result: s.runTask(ctx, task)}
			}()
		}

		select {
		case c := <-doneCh:
			inFlight--
			finished++
			results[c.index] = c.result
			state.finished(c.result.Success)
			s.emit(state)
			s.record(c.result)
		case <-ctx.Done():
			// Stop dispatching; let in-flight tasks drain before
			// reporting cancellation.
			for inFlight > 0 {
				<-doneCh
				inFlight--
			}
			return nil, ctx.Err()
		}
	}

	return results, nil
}

// ExecuteWithDependencies runs tasks honoring their dependency sets: a
// task is dispatched only once every dependency has completed
// successfully. Result order reflects a valid completion order, not
// submission order.
//
// A failed dependency propagates: every transitive dependent is marked
// failed without running ("propagate-and-skip"), counted as a failure
// in progress snapshots, and still yields a TaskResult.
func (s *Scheduler) ExecuteWithDependencies(ctx context.Context, tasks []Task) ([]TaskResult, error) {
	if err := validateTasks(tasks, true); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return []TaskResult{}, nil
	}

	workers := s.workers()
	state := newProgressState(len(tasks), time.Now())
	results := make([]TaskResult, 0, len(tasks))
	doneCh := make(chan completion)

	const (
		statePending = iota
		stateRunning
		stateDone
	)
	taskState := make(map[string]int, len(tasks))
	succeeded := make(map[string]bool, len(tasks))
	failed := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		taskState[t.ID] = statePending
	}

	byIndex := make(map[int]Task, len(tasks))
	for i, t := range tasks {
		byIndex[i] = t
	}

	inFlight := 0
	finished := 0

	for finished < len(tasks) {
		// Skip pending tasks whose dependencies failed, repeating until
		// the transitive closure is marked: a skipped task is itself a
		// failed dependency for its dependents.
		for changed := true; changed; {
			changed = false
			for _, t := range tasks {
				if taskState[t.ID] != statePending {
					continue
				}
				dep := firstFailedDep(t, failed)
				if dep == "" {
					continue
				}
				taskState[t.ID] = stateDone
				failed[t.ID] = true
				finished++
				changed = true
				result := TaskResult{
					TaskID:  t.ID,
					Success: false,
					Err:     fmt.Sprintf("dependency %s failed", dep),
				}
				results = append(results, result)
				state.skipped()
				s.emit(state)
				s.record(result)
			}
		}

		// Dispatch eligible tasks in submission order as slots free.
		for i, t := range tasks {
			if inFlight >= workers {
				break
			}
			if taskState[t.ID] != statePending || !depsSatisfied(t, succeeded) {
				continue
			}
			taskState[t.ID] = stateRunning
			inFlight++
			state.dispatched()
			s.emit(state)

			index := i
			task := t
			go func() {
				doneCh <- completion{index: index, result: s.runTask(ctx, task)}
			}()
		}

		if finished >= len(tasks) {
			break
		}

		if inFlight == 0 {
			// Nothing running and nothing eligible: cannot happen once
			// validation rejected unknown deps and cycles.
			return nil, errors.New(errors.ErrCodeSchedCyclicDep,
				"no eligible tasks remain but run is not finished")
		}

		select {
		case c := <-doneCh:
			task := byIndex[c.index]
			inFlight--
			finished++
			taskState[task.ID] = stateDone
			if c.result.Success {
				succeeded[task.ID] = true
			} else {
				failed[task.ID] = true
			}
			results = append(results, c.result)
			state.finished(c.result.Success)
			s.emit(state)
			s.record(c.result)
		case <-ctx.Done():
			for inFlight > 0 {
				<-doneCh
				inFlight--
			}
			return nil, ctx.Err()
		}
	}

	return results, nil
}

// runTask executes one task, containing errors and panics at the
// worker boundary.
func (s *Scheduler) runTask(ctx context.Context, task Task) (result TaskResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = TaskResult{
				TaskID:        task.ID,
				Success:       false,
				Err:           fmt.Sprintf("panic: %v", r),
				ExecutionTime: time.Since(start).Seconds(),
			}
			s.logger().Error("task panicked", "task_id", task.ID, "panic", fmt.Sprint(r))
		}
	}()

	value, err := task.Work(ctx, task.Args)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		return TaskResult{
			TaskID:        task.ID,
			Success:       false,
			Err:           err.Error(),
			ExecutionTime: elapsed,
		}
	}

	return TaskResult{
		TaskID:        task.ID,
		Success:       true,
		Value:         value,
		ExecutionTime: elapsed,
	}
}

func (s *Scheduler) emit(state *progressState) {
	if s.OnProgress != nil {
		s.OnProgress(state.snapshot())
	}
}

func (s *Scheduler) record(result TaskResult) {
	if s.Metrics == nil {
		return
	}
	status := "completed"
	if !result.Success {
		status = "failed"
	}
	s.Metrics.SchedulerTasks.WithLabelValues(status).Inc()
	s.Metrics.SchedulerTaskDuration.WithLabelValues().Observe(result.ExecutionTime)
}

func depsSatisfied(task Task, succeeded map[string]bool) bool {
	for _, dep := range task.DependsOn {
		if !succeeded[dep] {
			return false
		}
	}
	return true
}

func firstFailedDep(task Task, failed map[string]bool) string {
	for _, dep := range task.DependsOn {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

// validateTasks checks IDs for presence and uniqueness and, when deps
// are honored, that every dependency names a known task and the graph
// is acyclic.
func validateTasks(tasks []Task, withDeps bool) error {
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return errors.New(errors.ErrCodeSchedDuplicateID, "task with empty ID")
		}
		if seen[t.ID] {
			return errors.New(errors.ErrCodeSchedDuplicateID,
				fmt.Sprintf("duplicate task ID: %s", t.ID))
		}
		seen[t.ID] = true
	}

	if !withDeps {
		return nil
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return errors.New(errors.ErrCodeSchedUnknownDep,
					fmt.Sprintf("task %s depends on unknown task %s", t.ID, dep))
			}
			if dep == t.ID {
				return errors.New(errors.ErrCodeSchedCyclicDep,
					fmt.Sprintf("task %s depends on itself", t.ID))
			}
		}
	}

	return detectCycle(tasks)
}

// detectCycle runs Kahn's algorithm over the dependency graph.
func detectCycle(tasks []Task) error {
	inDegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		inDegree[t.ID] = len(t.DependsOn)
		for _, dep := range t.DependsOn {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	queue := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if inDegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}

	resolved := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		resolved++
		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if resolved != len(tasks) {
		return errors.New(errors.ErrCodeSchedCyclicDep, "dependency graph contains a cycle")
	}
	return nil
}
