package scheduler

import "time"

// Progress is a read-only snapshot of a run's task accounting. It is
// recomputed after every dispatch, success, and failure transition.
// Completed counts terminal tasks, successful and failed alike; Failed
// is the failing subset.
type Progress struct {
	Total     int
	Completed int
	Running   int
	Pending   int
	Failed    int

	// ElapsedTime is seconds since the run started.
	ElapsedTime float64

	// EstimatedRemaining is (elapsed / completed) x pending seconds,
	// present once at least one task has completed.
	EstimatedRemaining *float64
}

// ProgressFunc receives progress snapshots. It is invoked synchronously
// from the dispatch loop, so implementations must not block on the
// scheduler itself.
type ProgressFunc func(Progress)

// progressState tracks the counters behind Progress snapshots. It is
// only ever mutated from the dispatch loop (single-writer discipline).
type progressState struct {
	total     int
	completed int
	running   int
	failed    int
	start     time.Time
}

func newProgressState(total int, start time.Time) *progressState {
	return &progressState{total: total, start: start}
}

func (s *progressState) dispatched() {
	s.running++
}

func (s *progressState) finished(success bool) {
	s.running--
	s.completed++
	if !success {
		s.failed++
	}
}

// skipped marks a task terminal without it ever having run.
func (s *progressState) skipped() {
	s.completed++
	s.failed++
}

func (s *progressState) snapshot() Progress {
	elapsed := time.Since(s.start).Seconds()
	pending := s.total - s.completed - s.running

	p := Progress{
		Total:       s.total,
		Completed:   s.completed,
		Running:     s.running,
		Pending:     pending,
		Failed:      s.failed,
		ElapsedTime: elapsed,
	}

	if s.completed > 0 {
		estimate := elapsed / float64(s.completed) * float64(pending)
		p.EstimatedRemaining = &estimate
	}

	return p
}
