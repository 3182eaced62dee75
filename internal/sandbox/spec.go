package sandbox

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/flowbench/flowbench/internal/errors"
)

// DefaultTimeoutSeconds is the wall-clock limit applied when a caller
// leaves the timeout unset at a higher layer. Validate itself still
// rejects a zero timeout; defaulting is the loader's job.
const DefaultTimeoutSeconds = 30.0

// CodeSpec describes one snippet to run: its language, the code itself
// (exactly one of inline Source or a FilePath reference), a wall-clock
// timeout, and environment variable overlays. Specs are value types and
// treated as immutable by the runner.
type CodeSpec struct {
	Language       Language
	Source         string
	FilePath       string
	TimeoutSeconds float64
	Env            map[string]string
}

// Validate checks the spec against the configuration taxonomy.
// Violations surface as hard CONFIG errors; they are never converted
// into ExecutionResults.
func (s CodeSpec) Validate() error {
	if !s.Language.Valid() {
		return errors.NewUnknownLanguageError(string(s.Language))
	}

	hasSource := s.Source != ""
	hasFile := s.FilePath != ""
	if hasSource && hasFile {
		return errors.NewCodeSpecError("both inline source and file path given")
	}
	if !hasSource && !hasFile {
		return errors.NewCodeSpecError("neither inline source nor file path given")
	}

	if s.TimeoutSeconds <= 0 {
		return errors.New(errors.ErrCodeConfigTimeout,
			fmt.Sprintf("timeout must be > 0 seconds, got %v", s.TimeoutSeconds))
	}

	return nil
}

// Digest computes the blake3 hash of the spec's language and source text.
// File-based specs hash the path; the file contents are resolved at
// execution time.
func (s CodeSpec) Digest() string {
	hasher := blake3.New()
	hasher.Write([]byte(s.Language))
	hasher.Write([]byte{0})
	if s.Source != "" {
		hasher.Write([]byte(s.Source))
	} else {
		hasher.Write([]byte(s.FilePath))
	}
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
