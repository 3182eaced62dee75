package exitcode

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/flowbench/flowbench/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args,
	// malformed suite or step configuration)
	UsageError = 2

	// EvalFailed indicates the run completed but samples failed or errored
	EvalFailed = 3

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// EvalFailedError reports a run that completed but whose samples did
// not all pass. It exists so commands can return it up through cobra
// and still exit with EvalFailed.
type EvalFailedError struct {
	Failed  int
	Errored int
}

func (e *EvalFailedError) Error() string {
	return fmt.Sprintf("evaluation failed: %d failed, %d errored", e.Failed, e.Errored)
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Configuration errors map to UsageError; everything else is a general error
// (engine faults never surface as errors, they become result values).
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var evalErr *EvalFailedError
	if stderrors.As(err, &evalErr) {
		return EvalFailed
	}

	if errors.IsConfiguration(err) {
		return UsageError
	}

	return GeneralError
}

// Description returns a human-readable description of an exit code
func Description(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments, or configuration)"
	case EvalFailed:
		return "Evaluation failed (samples failed or errored)"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
