// Package main is the entry point for the covergate CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/covergate/internal/debug"
)

// Version is set at build time via ldflags
var Version = "dev"

// Global flags
var (
	debugFlag  bool
	configPath string
)

// newRootCmd creates and returns the root command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "covergate",
		Short: "Coverage-gated test insertion for any language",
		Long: `Covergate decides whether adding one candidate test to a live test
file improves measured coverage without breaking the suite. Each
candidate is merged into the test file, the project's own test command
runs, and the regenerated coverage report settles the question: commit
the insertion, or revert the file byte for byte.

GETTING STARTED:
  1. Configure covergate for your project:
     $ covergate config

  2. Check the wiring with a read-only coverage measurement:
     $ covergate baseline

  3. Validate candidate tests against the gate:
     $ covergate run --candidates tests.yaml

COMMON USAGE PATTERNS:
  • Generator pipelines:
    Stream candidates over stdin and keep only the ones that help:
    $ generate-tests | covergate run --candidates -

  • Monorepo with several projects:
    Configure per-path commands in .covergate.json and pass the files
    that changed:
    $ covergate run src/billing/rates.py src/api/handlers.py --candidates ./batches

  • CI gate:
    Add --strict so a missed coverage target exits with code 2.

EXAMPLES:
  # Configure a new project interactively
  $ covergate config

  # Let an AI CLI tool draft the configuration
  $ covergate config --ai

  # Validate your configuration
  $ covergate config --validate

  # Use a specific config file
  $ covergate --config ./custom-config.json run --candidates tests.yaml

  # Enable debug output for troubleshooting
  $ covergate --debug run --candidates tests.yaml

  # Inspect past validation runs
  $ covergate history

For more information, visit: https://github.com/bebsworthy/covergate`,
		Version: Version,
		Example: `  # Initial setup
  covergate config

  # Daily usage
  covergate baseline
  covergate run --candidates tests.yaml

  # CI/CD integration
  covergate run --candidates tests.yaml --strict`,
	}

	// Global flags
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug output")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	// Disable the default completion command since we provide our own
	cmd.CompletionOptions.DisableDefaultCmd = true

	// Add subcommands
	cmd.AddCommand(runCmd)
	cmd.AddCommand(baselineCmd)
	cmd.AddCommand(configCmd)
	cmd.AddCommand(templateCmd)
	cmd.AddCommand(historyCmd)

	return cmd
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func main() {
	// Scan for --debug before cobra parses anything so that early
	// code paths already log.
	for _, arg := range os.Args[1:] {
		if arg == "--debug" {
			debug.Enable()
			break
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
