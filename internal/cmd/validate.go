package cmd

import (
	"github.com/spf13/cobra"

	"github.com/flowbench/flowbench/internal/config"
	"github.com/flowbench/flowbench/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate <suite.yaml>",
	Short: "Validate a suite file without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
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
	fingerprint, err := doc.Fingerprint()
	if err != nil {
		return err
	}

	cmd.Printf("suite %s is valid\n", suite.Name)
	cmd.Printf("  steps:       %d\n", len(suite.Steps))
	for _, step := range suite.Steps {
		detail := ""
		switch step.Kind {
		case pipeline.KindCode:
			detail = string(step.Code.Language)
		case pipeline.KindAgent:
			detail = "flow " + step.Agent.Flow
		case pipeline.KindAggregate:
			detail = string(step.Aggregate.Strategy)
		}
		if step.Batch != nil {
			detail += " (batched)"
		}
		cmd.Printf("    %-20s %-10s %s\n", step.ID, step.Kind, detail)
	}
	cmd.Printf("  samples:     %d\n", len(suite.Samples))
	cmd.Printf("  fingerprint: %s\n", fingerprint)

	return nil
}
