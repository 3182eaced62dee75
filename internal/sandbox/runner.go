package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/log"
	"github.com/flowbench/flowbench/internal/metrics"
)

// defaultGrace is how long a signalled process tree gets to exit before
// survivors are force-killed.
const defaultGrace = 2 * time.Second

// Runner executes snippets in isolated, single-use OS processes. Each
// call spawns a fresh interpreter on a generated harness file; nothing
// is pooled or reused, so one snippet cannot corrupt host state.
type Runner struct {
	// PythonBin is the Python interpreter to use. Empty means probe
	// python3, then python, on PATH at call time.
	PythonBin string

	// NodeBin is the node-compatible runtime to use (default "node").
	NodeBin string

	// Dir is where harness files are created. Empty means the system
	// temp directory.
	Dir string

	// Grace is the wait between SIGTERM and SIGKILL on timeout.
	Grace time.Duration

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// NewRunner creates a Runner with default interpreter resolution.
func NewRunner() *Runner {
	return &Runner{
		NodeBin: "node",
		Grace:   defaultGrace,
	}
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.DefaultLogger()
}

func (r *Runner) grace() time.Duration {
	if r.Grace > 0 {
		return r.Grace
	}
	return defaultGrace
}

// Execute runs the spec's snippet against inputs and returns its
// ExecutionResult. The error return is reserved for configuration
// faults (a malformed spec); environment, user-code, and timeout
// faults are captured in the result instead.
func (r *Runner) Execute(ctx context.Context, spec CodeSpec, inputs map[string]any) (ExecutionResult, error) {
	if err := spec.Validate(); err != nil {
		return ExecutionResult{}, err
	}

	start := time.Now()
	result := r.execute(ctx, spec, inputs, start)
	r.record(spec.Language, result)
	return result, nil
}

// ExecuteFile is a convenience wrapper that runs a snippet stored on
// disk. Missing files and permission errors become distinct result
// failures, not hard errors.
func (r *Runner) ExecuteFile(ctx context.Context, language Language, path string, inputs map[string]any, timeoutSeconds float64, env map[string]string) (ExecutionResult, error) {
	return r.Execute(ctx, CodeSpec{
		Language:       language,
		FilePath:       path,
		TimeoutSeconds: timeoutSeconds,
		Env:            env,
	}, inputs)
}

func (r *Runner) execute(ctx context.Context, spec CodeSpec, inputs map[string]any, start time.Time) ExecutionResult {
	elapsed := func() float64 { return time.Since(start).Seconds() }

	source := spec.Source
	if spec.FilePath != "" {
		data, err := os.ReadFile(spec.FilePath)
		switch {
		case err == nil:
			source = string(data)
		case os.IsNotExist(err):
			return failure(errors.New(errors.ErrCodeFileNotFound,
				fmt.Sprintf("code file not found: %s", spec.FilePath)).Error(), elapsed())
		case os.IsPermission(err):
			return failure(fmt.Sprintf("code file permission denied: %s", spec.FilePath), elapsed())
		default:
			return failure(fmt.Sprintf("read code file %s: %v", spec.FilePath, err), elapsed())
		}
	}

	bin, err := r.interpreter(spec.Language)
	if err != nil {
		return failure(errors.Wrap(errors.ErrCodeSandboxInterpreter,
			fmt.Sprintf("%s runtime not found", spec.Language), err).Error(), elapsed())
	}

	harness, err := generateHarness(spec.Language, source, inputs)
	if err != nil {
		return failure(fmt.Sprintf("generate harness: %v", err), elapsed())
	}

	tmp, err := os.CreateTemp(r.Dir, "flowbench-*"+spec.Language.FileExtension())
	if err != nil {
		return failure(errors.Wrap(errors.ErrCodeSandboxTempFile, "create harness file", err).Error(), elapsed())
	}
	harnessPath := tmp.Name()
	// The harness file is removed on every exit path: success, failure,
	// timeout, and cancellation.
	defer os.Remove(harnessPath)

	if _, err := tmp.WriteString(harness); err != nil {
		tmp.Close()
		return failure(errors.Wrap(errors.ErrCodeSandboxTempFile, "write harness file", err).Error(), elapsed())
	}
	if err := tmp.Close(); err != nil {
		return failure(errors.Wrap(errors.ErrCodeSandboxTempFile, "close harness file", err).Error(), elapsed())
	}

	cmd := exec.Command(bin, harnessPath)
	cmd.Env = overlayEnv(os.Environ(), spec.Env)
	setProcGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return failure(fmt.Sprintf("start %s runtime: %v", spec.Language, err), elapsed())
	}

	r.logger().Debug("sandbox process started",
		"language", string(spec.Language),
		"pid", cmd.Process.Pid,
		"timeout_seconds", spec.TimeoutSeconds,
	)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := time.Duration(spec.TimeoutSeconds * float64(time.Second))
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-timer.C:
		terminateTree(cmd.Process.Pid, done, r.grace())
		return ExecutionResult{
			Success:       false,
			Error:         fmt.Sprintf("execution timed out after %gs", spec.TimeoutSeconds),
			Stdout:        stdout.String(),
			Stderr:        stderr.String(),
			ExecutionTime: elapsed(),
			TimedOut:      true,
		}
	case <-ctx.Done():
		terminateTree(cmd.Process.Pid, done, r.grace())
		res := failure(fmt.Sprintf("execution cancelled: %v", ctx.Err()), elapsed())
		res.Stdout = stdout.String()
		res.Stderr = stderr.String()
		return res
	}

	exitCode := 0
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			res := failure(fmt.Sprintf("wait for %s runtime: %v", spec.Language, waitErr), elapsed())
			res.Stdout = stdout.String()
			res.Stderr = stderr.String()
			return res
		}
		exitCode = exitErr.ExitCode()
	}

	result := ExecutionResult{
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
		ExecutionTime: elapsed(),
		ExitCode:      &exitCode,
	}

	if exitCode != 0 {
		result.Error, result.StackTrace = diagnoseStderr(spec.Language, stderr.String())
		return result
	}

	trimmed := strings.TrimSpace(stdout.String())
	var output any
	if err := json.Unmarshal([]byte(trimmed), &output); err != nil {
		snippet := trimmed
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		result.Error = fmt.Sprintf("failed to parse output as JSON: %v (stdout: %q)", err, snippet)
		return result
	}

	result.Success = true
	result.Output = output
	return result
}

// interpreter resolves the runtime binary for the language on PATH.
func (r *Runner) interpreter(language Language) (string, error) {
	switch language {
	case LanguagePython:
		if r.PythonBin != "" {
			return exec.LookPath(r.PythonBin)
		}
		if path, err := exec.LookPath("python3"); err == nil {
			return path, nil
		}
		return exec.LookPath("python")
	case LanguageJavaScript:
		bin := r.NodeBin
		if bin == "" {
			bin = "node"
		}
		return exec.LookPath(bin)
	default:
		return "", fmt.Errorf("unsupported language: %s", language)
	}
}

// overlayEnv returns base with the overlay variables appended; later
// entries win, so overlay values shadow inherited ones.
func overlayEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(overlay))
	env = append(env, base...)
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}

func (r *Runner) record(language Language, result ExecutionResult) {
	if r.Metrics == nil {
		return
	}

	status := "success"
	switch {
	case result.TimedOut:
		status = "timeout"
	case !result.Success:
		status = "failure"
	}

	r.Metrics.SandboxExecutions.WithLabelValues(string(language), status).Inc()
	r.Metrics.SandboxDuration.WithLabelValues(string(language)).Observe(result.ExecutionTime)
	if result.TimedOut {
		r.Metrics.SandboxTimeouts.WithLabelValues(string(language)).Inc()
	}
}
