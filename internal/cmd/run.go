package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/flowbench/flowbench/internal/agent"
	"github.com/flowbench/flowbench/internal/aggregate"
	"github.com/flowbench/flowbench/internal/batch"
	"github.com/flowbench/flowbench/internal/config"
	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/exitcode"
	"github.com/flowbench/flowbench/internal/log"
	"github.com/flowbench/flowbench/internal/metrics"
	"github.com/flowbench/flowbench/internal/pipeline"
	"github.com/flowbench/flowbench/internal/sandbox"
	"github.com/flowbench/flowbench/internal/scheduler"
	"github.com/flowbench/flowbench/internal/trace"
	"github.com/flowbench/flowbench/internal/tui"
)

var (
	runWorkers    int
	runSamples    []string
	runTUI        bool
	runReportPath string
	runTrace      bool
	runAgentCmd   string
)

var runCmd = &cobra.Command{
	Use:   "run <suite.yaml>",
	Short: "Evaluate a suite",
	Long: `Run every sample of a suite through its pipeline and report
pass/fail totals. Exits 0 when all samples pass, 3 when any fail or
error, 2 on configuration problems.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "max parallel samples (default from settings)")
	runCmd.Flags().StringSliceVar(&runSamples, "sample", nil, "run only the named sample ids (repeatable)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "live dashboard while the run executes")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "write the run report as JSON to this path")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "write JSONL trace events for this run")
	runCmd.Flags().StringVar(&runAgentCmd, "agent-cmd", "", "agent bridge command (JSON over stdin/stdout)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	doc, err := config.Load(args[0])
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	suite, err := doc.Convert()
	if err != nil {
		return err
	}

	if len(runSamples) > 0 {
		suite.Samples, err = selectSamples(suite.Samples, runSamples)
		if err != nil {
			return err
		}
	}

	runner, traceLog, err := buildRunner()
	if err != nil {
		return err
	}
	if traceLog != nil {
		defer traceLog.Close()
	}

	var report pipeline.RunReport
	if runTUI {
		report, err = runWithDashboard(cmd, runner, suite)
	} else {
		runner.OnProgress = logProgress(runner.Logger)
		report, err = runner.RunSuite(cmd.Context(), suite)
	}
	if err != nil {
		return err
	}

	printSummary(cmd, report)

	if runReportPath != "" {
		if err := writeReport(report, runReportPath); err != nil {
			return err
		}
		cmd.Printf("report written to %s\n", runReportPath)
	}
	if traceLog != nil && traceLog.Path() != "" {
		cmd.Printf("trace written to %s\n", traceLog.Path())
	}

	if !report.AllPassed() {
		return &exitcode.EvalFailedError{
			Failed:  report.Totals.Failed,
			Errored: report.Totals.Errored,
		}
	}
	return nil
}

// buildRunner assembles the pipeline runner from settings and flags.
func buildRunner() (*pipeline.Runner, *trace.Logger, error) {
	logger := log.DefaultLogger()
	m := metrics.GetDefault()

	sb := sandbox.NewRunner()
	sb.Logger = logger
	sb.Metrics = m
	if settings.PythonBin != "" {
		sb.PythonBin = settings.PythonBin
	}
	if settings.NodeBin != "" {
		sb.NodeBin = settings.NodeBin
	}

	workers := runWorkers
	if workers <= 0 {
		workers = settings.Workers
	}

	runner := &pipeline.Runner{
		Sandbox:    sb,
		Aggregator: &aggregate.Aggregator{Sandbox: sb, Logger: logger, Metrics: m},
		Batch:      &batch.Processor{Logger: logger, Metrics: m},
		Workers:    workers,
		Logger:     logger,
		Metrics:    m,
	}

	agentCmd := runAgentCmd
	if agentCmd == "" {
		agentCmd = settings.AgentCommand
	}
	if agentCmd != "" {
		inv := agent.NewExecInvoker(agentCmd)
		inv.Logger = logger
		inv.Metrics = m
		runner.Invoker = inv
	}

	var traceLog *trace.Logger
	if runTrace || settings.Trace.Enabled {
		cfg := trace.DefaultConfig()
		cfg.Enabled = true
		if settings.Trace.Dir != "" {
			cfg.LogDir = settings.Trace.Dir
		}
		var err error
		traceLog, err = trace.NewLogger(cfg)
		if err != nil {
			return nil, nil, err
		}
		runner.Trace = traceLog
	}

	return runner, traceLog, nil
}

// runWithDashboard drives the run under the bubbletea dashboard.
func runWithDashboard(cmd *cobra.Command, runner *pipeline.Runner, suite pipeline.Suite) (pipeline.RunReport, error) {
	program := tea.NewProgram(tui.NewRunModel(suite.Name, len(suite.Samples)), tea.WithContext(cmd.Context()))

	runner.OnProgress = func(p scheduler.Progress) {
		program.Send(tui.ProgressMsg(p))
	}

	type outcome struct {
		report pipeline.RunReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := runner.RunSuite(cmd.Context(), suite)
		program.Send(tui.DoneMsg{Err: err})
		done <- outcome{report, err}
	}()

	if _, err := program.Run(); err != nil {
		return pipeline.RunReport{}, err
	}
	result := <-done
	return result.report, result.err
}

func selectSamples(samples []pipeline.Sample, ids []string) ([]pipeline.Sample, error) {
	byID := make(map[string]pipeline.Sample, len(samples))
	for _, s := range samples {
		byID[s.ID] = s
	}

	selected := make([]pipeline.Sample, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, errors.NewSuiteInvalidError("no such sample: " + id)
		}
		selected = append(selected, s)
	}
	return selected, nil
}

func logProgress(logger *log.Logger) scheduler.ProgressFunc {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return func(p scheduler.Progress) {
		logger.Info("progress",
			"completed", p.Completed,
			"running", p.Running,
			"pending", p.Pending,
			"failed", p.Failed,
			"total", p.Total,
		)
	}
}

func printSummary(cmd *cobra.Command, report pipeline.RunReport) {
	cmd.Printf("\nsuite %s (run %s)\n", report.SuiteName, report.RunID)
	for _, sr := range report.SampleResults {
		status := "pass"
		switch {
		case !sr.Success:
			status = "error"
		case sr.Passed != nil && !*sr.Passed:
			status = "fail"
		}
		line := fmt.Sprintf("  %-5s %s (%.2fs)", status, sr.SampleID, sr.Duration)
		if sr.Err != "" {
			line += "  " + sr.Err
		}
		cmd.Println(line)
	}
	cmd.Printf("\n%d samples: %d passed, %d failed, %d errored in %.2fs\n",
		report.Totals.Samples, report.Totals.Passed, report.Totals.Failed,
		report.Totals.Errored, report.Duration)
	if report.Tokens.TotalTokens > 0 {
		cmd.Printf("tokens: %d in, %d out, %d total\n",
			report.Tokens.InputTokens, report.Tokens.OutputTokens, report.Tokens.TotalTokens)
	}
}

func writeReport(report pipeline.RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "marshal report", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write report: "+path, err)
	}
	return nil
}
