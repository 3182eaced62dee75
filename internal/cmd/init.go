package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	initForce    bool
	initName     string
	initLanguage string
	initWorkers  int
)

var initCmd = &cobra.Command{
	Use:   "init [suite.yaml]",
	Short: "Scaffold a starter suite",
	Long: `Write a runnable starter suite. Interactive terminals get a short
form for the suite name, snippet language, and worker count; flags
cover non-interactive use.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
	initCmd.Flags().StringVar(&initName, "name", "starter-suite", "suite name")
	initCmd.Flags().StringVar(&initLanguage, "language", "python", "snippet language (python, javascript)")
	initCmd.Flags().IntVar(&initWorkers, "workers", 4, "suggested worker count written to flowbench.yaml docs")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "suite.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}

	if isatty.IsTerminal(os.Stdin.Fd()) && !cmd.Flags().Changed("name") {
		workersStr := strconv.Itoa(initWorkers)
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Suite name").
				Value(&initName),
			huh.NewSelect[string]().
				Title("Snippet language").
				Options(
					huh.NewOption("Python", "python"),
					huh.NewOption("JavaScript", "javascript"),
				).
				Value(&initLanguage),
			huh.NewInput().
				Title("Parallel samples").
				Value(&workersStr).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return fmt.Errorf("enter a number >= 1")
					}
					return nil
				}),
		))
		if err := form.Run(); err != nil {
			return err
		}
		initWorkers, _ = strconv.Atoi(workersStr)
	}

	content := starterSuite(initName, initLanguage)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	cmd.Printf("wrote %s\n", path)
	cmd.Printf("run it with: flowbench run %s --workers %d\n", path, initWorkers)
	return nil
}

func starterSuite(name, language string) string {
	source := `      def transform(inputs):
          return inputs["text"].upper()`
	if language == "javascript" {
		source = `      function transform(inputs) {
          return inputs.text.toUpperCase();
      }`
	}

	return fmt.Sprintf(`name: %s
defaults:
  language: %s
  timeout_seconds: 30
steps:
  - id: shout
    kind: code
    input_mapping:
      text: text
    output_key: shouted
    source: |
%s
samples:
  - id: hello
    inputs:
      text: "hello flowbench"
    expected:
      shouted: "HELLO FLOWBENCH"
`, name, language, source)
}
