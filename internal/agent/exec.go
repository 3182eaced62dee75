package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/log"
	"github.com/flowbench/flowbench/internal/metrics"
)

// DefaultInvokeTimeout bounds a single bridge call when the invoker is
// constructed without an explicit timeout.
const DefaultInvokeTimeout = 120 * time.Second

// ExecInvoker bridges to any executable that speaks JSON over
// stdin/stdout: the FlowRequest is written to stdin, and the program
// must print exactly one FlowResponse object on stdout. Any program can
// be an agent this way.
type ExecInvoker struct {
	// Path is the bridge executable. Resolved via LookPath.
	Path string

	// Args are prepended to every invocation.
	Args []string

	// Timeout bounds one call. Zero means DefaultInvokeTimeout.
	Timeout time.Duration

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// NewExecInvoker creates an invoker for the given bridge command line.
// The first token is the executable, the rest are fixed arguments.
func NewExecInvoker(command string) *ExecInvoker {
	fields := strings.Fields(command)
	inv := &ExecInvoker{}
	if len(fields) > 0 {
		inv.Path = fields[0]
		inv.Args = fields[1:]
	}
	return inv
}

// Available reports whether the bridge executable can be resolved.
func (e *ExecInvoker) Available() bool {
	if e.Path == "" {
		return false
	}
	_, err := exec.LookPath(e.Path)
	return err == nil
}

// Invoke runs the bridge once: request JSON on stdin, one JSON response
// object expected on stdout. A non-zero exit surfaces stderr in the
// returned error.
func (e *ExecInvoker) Invoke(ctx context.Context, req FlowRequest) (FlowResponse, error) {
	start := time.Now()

	path, err := exec.LookPath(e.Path)
	if err != nil {
		return FlowResponse{}, errors.Wrap(errors.ErrCodeAgentNotFound,
			"agent bridge executable not found: "+e.Path, err).
			WithSuggestion("Install the bridge or pass --agent-cmd with its location")
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return FlowResponse{}, errors.Wrap(errors.ErrCodeAgentFailed, "marshal flow request", err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultInvokeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, e.Args...)
	cmd.Stdin = bytes.NewReader(reqJSON)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger().Debug("invoking agent bridge", "flow", req.Flow, "command", e.Path)

	runErr := cmd.Run()
	latency := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		err := errors.New(errors.ErrCodeAgentFailed,
			"agent bridge timed out for flow "+req.Flow).
			WithSuggestion("Raise the agent timeout in the runner settings")
		e.record(req.Flow, false, latency, TokenUsage{})
		return FlowResponse{}, err
	}
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		e.record(req.Flow, false, latency, TokenUsage{})
		return FlowResponse{}, errors.New(errors.ErrCodeAgentFailed,
			"agent bridge failed for flow "+req.Flow+": "+msg)
	}

	var resp FlowResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		e.record(req.Flow, false, latency, TokenUsage{})
		return FlowResponse{}, errors.Wrap(errors.ErrCodeAgentResponse,
			"agent bridge produced invalid JSON for flow "+req.Flow, err).
			WithSuggestion("The bridge must print exactly one JSON response object on stdout")
	}
	resp.Latency = latency

	e.logger().Debug("agent bridge responded",
		"flow", req.Flow,
		"latency_ms", latency.Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens,
	)
	e.record(req.Flow, true, latency, resp.Usage)

	return resp, nil
}

func (e *ExecInvoker) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.DefaultLogger()
}

func (e *ExecInvoker) record(flow string, success bool, latency time.Duration, usage TokenUsage) {
	if e.Metrics == nil {
		return
	}
	e.Metrics.AgentCalls.WithLabelValues(flow, fmt.Sprint(success)).Inc()
	e.Metrics.AgentLatency.WithLabelValues(flow).Observe(latency.Seconds())
	if usage.InputTokens > 0 {
		e.Metrics.AgentTokens.WithLabelValues("input").Add(float64(usage.InputTokens))
	}
	if usage.OutputTokens > 0 {
		e.Metrics.AgentTokens.WithLabelValues("output").Add(float64(usage.OutputTokens))
	}
}
