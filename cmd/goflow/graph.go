package main

import (
	"context"
	"fmt"

	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/internal/presentation/graph"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [project-id] [layer-id]",
	Short: "Export a layer as a Mermaid diagram",
	Long:  `Outputs a Mermaid flowchart (graph LR) of one layer of a project. Layer nodes are drawn as subroutines.`,
	Args:  cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		stack, _ := loadStack(cmd)
		defer stack.Close()

		projectID := projectArg(stack, args, 0)
		layerID := domain.RootLayerID
		if len(args) > 1 {
			layerID = args[1]
		}
		ports, _ := cmd.Flags().GetBool("ports")
		selected, _ := cmd.Flags().GetStringSlice("select")

		var overlay *graph.GraphOverlay
		if ports || len(selected) > 0 {
			overlay = &graph.GraphOverlay{Selected: selected, Ports: ports}
		}

		var output string
		err := stack.Manager.View(cmd.Context(), projectID, func(_ context.Context, ed *goflow.Editor) error {
			l, err := ed.Store().Layer(layerID)
			if err != nil {
				return err
			}
			output = graph.GenerateMermaid(l, overlay)
			return nil
		})
		if err != nil {
			fail("Error inspecting graph", err)
		}
		fmt.Print(output)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("ports", false, "Highlight the starting and ending ports of the layer")
	graphCmd.Flags().StringSlice("select", nil, "Node ids to highlight")
}
