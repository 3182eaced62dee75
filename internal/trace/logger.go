package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger appends trace events as JSON lines to a per-run file. Events
// are also buffered in memory so callers can inspect a run afterwards;
// display and persistence beyond the file are external concerns.
type Logger struct {
	runID   string
	logDir  string
	logFile *os.File
	enabled bool

	mu     sync.Mutex
	events []*Event
}

// Config contains logger configuration
type Config struct {
	// RunID identifies the suite run
	RunID string

	// LogDir is the directory for trace files (default: ~/.flowbench/traces)
	LogDir string

	// Enabled controls whether events are written to disk
	Enabled bool
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir() // Best-effort, falls back to current directory
	logDir := filepath.Join(homeDir, ".flowbench", "traces")

	return Config{
		RunID:   uuid.NewString(),
		LogDir:  logDir,
		Enabled: false, // Disabled by default
	}
}

// NewLogger creates a new trace logger
func NewLogger(config Config) (*Logger, error) {
	if config.RunID == "" {
		config.RunID = uuid.NewString()
	}

	if !config.Enabled {
		return &Logger{
			runID:   config.RunID,
			enabled: false,
			events:  []*Event{},
		}, nil
	}

	if err := os.MkdirAll(config.LogDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	logPath := filepath.Join(config.LogDir, fmt.Sprintf("trace_%s.jsonl", config.RunID))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &Logger{
		runID:   config.RunID,
		logDir:  config.LogDir,
		logFile: logFile,
		enabled: true,
		events:  []*Event{},
	}, nil
}

// Log records a trace event. Disabled loggers still buffer events in
// memory for inspection.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)

	if !l.enabled {
		return nil
	}

	line, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if _, err := fmt.Fprintf(l.logFile, "%s\n", line); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogRunStart logs a suite run start event
func (l *Logger) LogRunStart(suiteName string, sampleCount int) error {
	event := NewEvent(EventTypeRunStart, l.runID, "Run started").
		WithData("suite", suiteName).
		WithData("samples", sampleCount)

	return l.Log(event)
}

// LogRunComplete logs a suite run completion event
func (l *Logger) LogRunComplete(passed, failed, errored int, duration time.Duration) error {
	event := NewEvent(EventTypeRunComplete, l.runID, "Run completed").
		WithData("passed", passed).
		WithData("failed", failed).
		WithData("errored", errored).
		WithDuration(duration)

	return l.Log(event)
}

// LogSampleStart logs a sample start event
func (l *Logger) LogSampleStart(sampleID string) error {
	event := NewEvent(EventTypeSampleStart, l.runID, fmt.Sprintf("Sample started: %s", sampleID)).
		WithSampleID(sampleID)

	return l.Log(event)
}

// LogSampleComplete logs a sample completion event
func (l *Logger) LogSampleComplete(sampleID string, success bool, duration time.Duration) error {
	event := NewEvent(EventTypeSampleComplete, l.runID, fmt.Sprintf("Sample completed: %s", sampleID)).
		WithSampleID(sampleID).
		WithData("success", success).
		WithDuration(duration)

	return l.Log(event)
}

// LogStepStart logs a step start event
func (l *Logger) LogStepStart(sampleID, stepID string) error {
	event := NewEvent(EventTypeStepStart, l.runID, fmt.Sprintf("Step started: %s", stepID)).
		WithSampleID(sampleID).
		WithStepID(stepID)

	return l.Log(event)
}

// LogStepComplete logs a step completion event
func (l *Logger) LogStepComplete(sampleID, stepID, outputKey string, duration time.Duration) error {
	event := NewEvent(EventTypeStepComplete, l.runID, fmt.Sprintf("Step completed: %s", stepID)).
		WithSampleID(sampleID).
		WithStepID(stepID).
		WithData("output_key", outputKey).
		WithDuration(duration)

	return l.Log(event)
}

// LogStepFail logs a step failure event
func (l *Logger) LogStepFail(sampleID, stepID string, err error) error {
	event := NewEvent(EventTypeStepFail, l.runID, fmt.Sprintf("Step failed: %s", stepID)).
		WithSampleID(sampleID).
		WithStepID(stepID).
		WithError(err)

	return l.Log(event)
}

// LogTaskProgress logs a scheduler progress snapshot
func (l *Logger) LogTaskProgress(total, completed, running, pending, failed int) error {
	event := NewEvent(EventTypeTaskProgress, l.runID, "Task progress").
		WithData("total", total).
		WithData("completed", completed).
		WithData("running", running).
		WithData("pending", pending).
		WithData("failed", failed)

	return l.Log(event)
}

// LogError logs an error event
func (l *Logger) LogError(message string, err error) error {
	event := NewEvent(EventTypeError, l.runID, message).
		WithError(err)

	return l.Log(event)
}

// LogInfo logs an informational event
func (l *Logger) LogInfo(message string) error {
	event := NewEvent(EventTypeInfo, l.runID, message)

	return l.Log(event)
}

// Close closes the logger and syncs any buffered data
func (l *Logger) Close() error {
	if !l.enabled || l.logFile == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.logFile.Sync(); err != nil {
		return err
	}

	return l.logFile.Close()
}

// Path returns the path to the current trace file, or "" when disabled.
func (l *Logger) Path() string {
	if !l.enabled {
		return ""
	}
	return filepath.Join(l.logDir, fmt.Sprintf("trace_%s.jsonl", l.runID))
}

// RunID returns the run ID
func (l *Logger) RunID() string {
	return l.runID
}

// Events returns all logged events (from memory)
func (l *Logger) Events() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*Event, len(l.events))
	copy(events, l.events)
	return events
}
