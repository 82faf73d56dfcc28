package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goflowspace/goflow/internal/cli"
	"github.com/goflowspace/goflow/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <source>",
	Short: "Check a flow before importing it",
	Long: `Reads a flow directory or JSON document and reports broken links,
choice-to-choice edges, duplicate edges and nodes no starting node reaches.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		importer, err := cli.NewImporter(args[0])
		if err != nil {
			fail("Error opening source", err)
		}

		report, err := validator.ValidateFlow(cmd.Context(), importer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Flow is valid: %d nodes, %d edges\n", report.Nodes, report.Edges)
		fmt.Printf("Starting: %s\n", strings.Join(report.Starting, ", "))
		fmt.Printf("Ending:   %s\n", strings.Join(report.Ending, ", "))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
