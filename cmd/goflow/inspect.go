package main

import (
	"context"
	"fmt"

	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/internal/presentation/tui"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [project-id] [layer-id]",
	Short: "Print a layer summary",
	Long:  `Renders the nodes and edges of a layer as markdown in the terminal.`,
	Args:  cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		stack, _ := loadStack(cmd)
		defer stack.Close()

		projectID := projectArg(stack, args, 0)
		layerID := domain.RootLayerID
		if len(args) > 1 {
			layerID = args[1]
		}

		var md string
		err := stack.Manager.View(cmd.Context(), projectID, func(_ context.Context, ed *goflow.Editor) error {
			l, err := ed.Store().Layer(layerID)
			if err != nil {
				return err
			}
			path, err := ed.Store().Path(layerID)
			if err != nil {
				return err
			}
			md = tui.LayerMarkdown(l, path)
			return nil
		})
		if err != nil {
			fail("Error inspecting layer", err)
		}

		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Print(md)
			return
		}
		out, err := tui.NewRenderer()(md)
		if err != nil {
			fmt.Print(md)
			return
		}
		fmt.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("raw", false, "Print markdown without terminal styling")
}
