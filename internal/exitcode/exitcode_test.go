package exitcode

import (
	"fmt"
	"testing"

	"github.com/flowbench/flowbench/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "nil error",
			err:  nil,
			want: Success,
		},
		{
			name: "configuration error",
			err:  errors.NewBatchSizeError(0),
			want: UsageError,
		},
		{
			name: "wrapped configuration error",
			err:  fmt.Errorf("loading suite: %w", errors.NewSuiteInvalidError("no steps")),
			want: UsageError,
		},
		{
			name: "non-configuration flow error",
			err:  errors.New(errors.ErrCodeSchedCyclicDep, "cycle detected"),
			want: GeneralError,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("something broke"),
			want: GeneralError,
		},
		{
			name: "eval failure",
			err:  &EvalFailedError{Failed: 2, Errored: 1},
			want: EvalFailed,
		},
		{
			name: "wrapped eval failure",
			err:  fmt.Errorf("run: %w", &EvalFailedError{Failed: 1}),
			want: EvalFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.want {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{UsageError, "Usage error (invalid flags, arguments, or configuration)"},
		{EvalFailed, "Evaluation failed (samples failed or errored)"},
		{Interrupted, "Interrupted"},
		{42, "Unknown error"},
	}

	for _, tt := range tests {
		if got := Description(tt.code); got != tt.want {
			t.Errorf("Description(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
