package sandbox

// ExecutionResult is the outcome of one sandbox call. Produced once per
// call and immutable thereafter.
//
// Invariant: TimedOut implies !Success and Output == nil.
type ExecutionResult struct {
	// Success is true only for exit code 0 with JSON-parseable stdout.
	Success bool

	// Output is the decoded JSON value the snippet returned, nil on failure.
	Output any

	// Error is the most specific failure description, empty on success.
	Error string

	// Stdout is the snippet's raw standard output, preserved for
	// diagnostics (including partial output after a timeout).
	Stdout string

	// Stderr is the snippet's standard error, preserved verbatim.
	Stderr string

	// ExecutionTime is the wall-clock duration of the call in seconds.
	ExecutionTime float64

	// TimedOut is true when the wall-clock deadline expired and the
	// process tree was terminated.
	TimedOut bool

	// StackTrace holds the recognizable error trace scanned from stderr,
	// falling back to raw stderr when no marker was found.
	StackTrace string

	// ExitCode is the process exit code, nil when the process never
	// ran or was killed before exiting normally.
	ExitCode *int
}

// failure builds a failed result carrying the given error text.
func failure(errMsg string, elapsed float64) ExecutionResult {
	return ExecutionResult{
		Success:       false,
		Error:         errMsg,
		ExecutionTime: elapsed,
	}
}
