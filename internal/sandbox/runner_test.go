package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/flowbench/flowbench/internal/errors"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		if _, err := exec.LookPath("python"); err != nil {
			t.Skip("no python interpreter available")
		}
	}
}

func requireNode(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not available")
	}
}

func pySpec(source string) CodeSpec {
	return CodeSpec{Language: LanguagePython, Source: source, TimeoutSeconds: 30}
}

func jsSpec(source string) CodeSpec {
	return CodeSpec{Language: LanguageJavaScript, Source: source, TimeoutSeconds: 30}
}

func TestExecuteRejectsInvalidSpec(t *testing.T) {
	r := NewRunner()

	_, err := r.Execute(context.Background(), CodeSpec{Language: "ruby", Source: "puts 1", TimeoutSeconds: 30}, nil)
	if err == nil {
		t.Fatal("Execute() expected validation error")
	}
	if !errors.IsConfiguration(err) {
		t.Errorf("Execute() error = %v, want a configuration error", err)
	}
}

func TestExecutePythonTransform(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	result, err := r.Execute(context.Background(), pySpec(
		"def transform(inputs):\n    return {\"doubled\": inputs[\"n\"] * 2}\n",
	), map[string]any{"n": 21})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s\nstderr: %s", result.Error, result.Stderr)
	}

	want := map[string]any{"doubled": float64(42)}
	if !reflect.DeepEqual(result.Output, want) {
		t.Errorf("Output = %v, want %v", result.Output, want)
	}
	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", result.ExitCode)
	}
	if result.ExecutionTime <= 0 {
		t.Errorf("ExecutionTime = %v, want > 0", result.ExecutionTime)
	}
}

func TestExecutePythonEchoesWithoutEntryPoint(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	inputs := map[string]any{"key": "value"}
	result, err := r.Execute(context.Background(), pySpec("x = 1\n"), inputs)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}

	want := map[string]any{"key": "value"}
	if !reflect.DeepEqual(result.Output, want) {
		t.Errorf("Output = %v, want echoed inputs %v", result.Output, want)
	}
}

func TestExecutePythonEntryPointPriority(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	// transform outranks process and main.
	source := strings.Join([]string{
		"def main(inputs):",
		"    return \"main\"",
		"def process(inputs):",
		"    return \"process\"",
		"def transform(inputs):",
		"    return \"transform\"",
		"",
	}, "\n")

	result, err := r.Execute(context.Background(), pySpec(source), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Output != "transform" {
		t.Errorf("Output = %v, want %q", result.Output, "transform")
	}
}

func TestExecutePythonAggregateReceivesItems(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	result, err := r.Execute(context.Background(), pySpec(
		"def aggregate(items):\n    return sum(items)\n",
	), map[string]any{"items": []any{1, 2, 3}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s\nstderr: %s", result.Error, result.Stderr)
	}
	if result.Output != float64(6) {
		t.Errorf("Output = %v, want 6", result.Output)
	}
}

func TestExecutePythonExceptionPropagates(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	result, err := r.Execute(context.Background(), pySpec(
		"def process(inputs):\n    raise ValueError(\"invalid input\")\n",
	), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Success {
		t.Fatal("Execute() succeeded, want failure")
	}
	if !strings.Contains(result.Error, "ValueError: invalid input") {
		t.Errorf("Error = %q, want it to contain the exception line", result.Error)
	}
	if !strings.Contains(result.StackTrace, pythonTracebackMarker) {
		t.Errorf("StackTrace = %q, want a traceback", result.StackTrace)
	}
	if result.ExitCode == nil || *result.ExitCode == 0 {
		t.Errorf("ExitCode = %v, want non-zero", result.ExitCode)
	}
}

func TestExecutePythonTimeout(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	spec := CodeSpec{
		Language:       LanguagePython,
		Source:         "import time\nprint(\"before sleep\", flush=True)\ntime.sleep(30)\n",
		TimeoutSeconds: 0.5,
	}

	start := time.Now()
	result, err := r.Execute(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !result.TimedOut {
		t.Fatal("TimedOut = false, want true")
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("Error = %q, want timeout message", result.Error)
	}
	if !strings.Contains(result.Stdout, "before sleep") {
		t.Errorf("Stdout = %q, want partial output preserved", result.Stdout)
	}
	// The grace window is 2 seconds; well under the 30s sleep.
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Execute() took %v, runaway process not terminated", elapsed)
	}
}

func TestExecuteContextCancellation(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	result, err := r.Execute(ctx, pySpec("import time\ntime.sleep(30)\n"), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true, want false after cancellation")
	}
	if !strings.Contains(result.Error, "cancelled") {
		t.Errorf("Error = %q, want cancellation message", result.Error)
	}
}

func TestExecuteEnvOverlay(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	spec := CodeSpec{
		Language:       LanguagePython,
		Source:         "import os\ndef main(inputs):\n    return os.environ.get(\"FLOWBENCH_TEST_VAR\")\n",
		TimeoutSeconds: 30,
		Env:            map[string]string{"FLOWBENCH_TEST_VAR": "set by test"},
	}

	result, err := r.Execute(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Output != "set by test" {
		t.Errorf("Output = %v, want env value", result.Output)
	}
}

func TestExecuteNonJSONOutputFails(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	// Overwriting print leaves garbage on stdout instead of JSON.
	result, err := r.Execute(context.Background(), pySpec(
		"import sys\nsys.stdout.write(\"not json at all\")\nsys.exit(0)\n"+
			"def main(inputs):\n    return None\n",
	), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true, want false for unparseable stdout")
	}
	if !strings.Contains(result.Error, "parse output") {
		t.Errorf("Error = %q, want parse failure", result.Error)
	}
}

func TestExecuteFile(t *testing.T) {
	requirePython(t)
	r := NewRunner()

	dir := t.TempDir()
	path := filepath.Join(dir, "snippet.py")
	source := "def process(inputs):\n    return inputs[\"a\"] + inputs[\"b\"]\n"
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := r.ExecuteFile(context.Background(), LanguagePython, path, map[string]any{"a": 1, "b": 2}, 30, nil)
	if err != nil {
		t.Fatalf("ExecuteFile() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("ExecuteFile() failed: %s", result.Error)
	}
	if result.Output != float64(3) {
		t.Errorf("Output = %v, want 3", result.Output)
	}
}

func TestExecuteFileNotFound(t *testing.T) {
	r := NewRunner()

	result, err := r.ExecuteFile(context.Background(), LanguagePython, "/nonexistent/snippet.py", nil, 30, nil)
	if err != nil {
		t.Fatalf("ExecuteFile() error = %v, missing files are result failures", err)
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if !strings.Contains(result.Error, "not found") {
		t.Errorf("Error = %q, want not-found message", result.Error)
	}
	if !strings.Contains(result.Error, string(errors.ErrCodeFileNotFound)) {
		t.Errorf("Error = %q, want %s context", result.Error, errors.ErrCodeFileNotFound)
	}
}

func TestExecuteMissingInterpreter(t *testing.T) {
	r := NewRunner()
	r.PythonBin = "/nonexistent/python-binary"

	result, err := r.Execute(context.Background(), pySpec("print('hi')"), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v, a missing interpreter is a result failure", err)
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if !strings.Contains(result.Error, "not found") {
		t.Errorf("Error = %q, want not-found message", result.Error)
	}
	if !strings.Contains(result.Error, string(errors.ErrCodeSandboxInterpreter)) {
		t.Errorf("Error = %q, want %s context", result.Error, errors.ErrCodeSandboxInterpreter)
	}
}

func TestExecuteJavaScript(t *testing.T) {
	requireNode(t)
	r := NewRunner()

	result, err := r.Execute(context.Background(), jsSpec(
		"function transform(inputs) { return { tripled: inputs.n * 3 }; }",
	), map[string]any{"n": 5})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s\nstderr: %s", result.Error, result.Stderr)
	}

	want := map[string]any{"tripled": float64(15)}
	if !reflect.DeepEqual(result.Output, want) {
		t.Errorf("Output = %v, want %v", result.Output, want)
	}
}

func TestExecuteJavaScriptModuleExports(t *testing.T) {
	requireNode(t)
	r := NewRunner()

	result, err := r.Execute(context.Background(), jsSpec(
		"module.exports = (inputs) => inputs.n + 1;",
	), map[string]any{"n": 41})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s\nstderr: %s", result.Error, result.Stderr)
	}
	if result.Output != float64(42) {
		t.Errorf("Output = %v, want 42", result.Output)
	}
}

func TestExecuteJavaScriptAsync(t *testing.T) {
	requireNode(t)
	r := NewRunner()

	result, err := r.Execute(context.Background(), jsSpec(
		"async function main(inputs) { return await Promise.resolve(\"done\"); }",
	), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s\nstderr: %s", result.Error, result.Stderr)
	}
	if result.Output != "done" {
		t.Errorf("Output = %v, want %q", result.Output, "done")
	}
}

func TestExecuteJavaScriptRejectionFails(t *testing.T) {
	requireNode(t)
	r := NewRunner()

	result, err := r.Execute(context.Background(), jsSpec(
		"function main(inputs) { return Promise.reject(new Error(\"nope\")); }",
	), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success {
		t.Fatal("Success = true, want false for rejected promise")
	}
	if !strings.Contains(result.Error, "nope") {
		t.Errorf("Error = %q, want rejection message", result.Error)
	}
}

func TestDiagnoseStderr(t *testing.T) {
	pyTraceback := strings.Join([]string{
		"Traceback (most recent call last):",
		"  File \"/tmp/flowbench-x.py\", line 9, in <module>",
		"    _fb_result = _fb_fn(_fb_arg)",
		"  File \"/tmp/flowbench-x.py\", line 5, in process",
		"    raise ValueError(\"invalid input\")",
		"ValueError: invalid input",
	}, "\n")

	jsError := strings.Join([]string{
		"/tmp/flowbench-x.js:4",
		"throw new TypeError(\"bad arg\");",
		"^",
		"",
		"TypeError: bad arg",
		"    at main (/tmp/flowbench-x.js:4:9)",
	}, "\n")

	tests := []struct {
		name      string
		language  Language
		stderr    string
		wantMsg   string
		wantTrace bool
	}{
		{
			name:      "python traceback",
			language:  LanguagePython,
			stderr:    pyTraceback,
			wantMsg:   "ValueError: invalid input",
			wantTrace: true,
		},
		{
			name:     "python syntax error without traceback",
			language: LanguagePython,
			stderr:   "  File \"/tmp/x.py\", line 2\n    def f(:\n          ^\nSyntaxError: invalid syntax",
			wantMsg:  "SyntaxError: invalid syntax",
		},
		{
			name:      "javascript error line",
			language:  LanguageJavaScript,
			stderr:    jsError,
			wantMsg:   "TypeError: bad arg",
			wantTrace: true,
		},
		{
			name:     "empty stderr",
			language: LanguagePython,
			stderr:   "",
			wantMsg:  "process exited with an error",
		},
		{
			name:     "unrecognized stderr falls back whole",
			language: LanguageJavaScript,
			stderr:   "something odd happened",
			wantMsg:  "something odd happened",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, trace := diagnoseStderr(tt.language, tt.stderr)
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
			if tt.wantTrace && trace == "" {
				t.Error("trace is empty, want stack trace")
			}
		})
	}
}

func TestOverlayEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root", "LANG=C"}
	overlay := map[string]string{"HOME": "/tmp/home", "EXTRA": "1"}

	got := overlayEnv(base, overlay)

	env := map[string]string{}
	for _, kv := range got {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	if env["PATH"] != "/usr/bin" {
		t.Errorf("PATH = %q, want inherited", env["PATH"])
	}
	if env["HOME"] != "/tmp/home" {
		t.Errorf("HOME = %q, want overlay to win", env["HOME"])
	}
	if env["EXTRA"] != "1" {
		t.Errorf("EXTRA = %q, want overlay addition", env["EXTRA"])
	}
}
