package main

import (
	"fmt"

	"github.com/goflowspace/goflow/internal/cli"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <project-id> <source>",
	Short: "Import a flow into a project layer",
	Long: `Imports nodes and edges into a layer of a project. The source is either a
directory of markdown/YAML flow documents or a JSON {"nodes","edges"} file.
Imported ids are replaced by fresh ones.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		stack, logger := loadStack(cmd)
		defer stack.Close()

		layerID, _ := cmd.Flags().GetString("layer")
		importer, err := cli.NewImporter(args[1])
		if err != nil {
			fail("Error opening source", err)
		}

		ids, err := cli.ImportInto(cmd.Context(), stack.Manager, args[0], layerID, importer)
		if err != nil {
			fail("Error importing", err)
		}
		logger.Debug("import finished", "project_id", args[0], "nodes", len(ids))
		fmt.Printf("Imported %d nodes into '%s'\n", len(ids), args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("layer", "", "Layer to import into (default: root)")
}
