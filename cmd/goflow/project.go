package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage stored projects",
	Long:  `List, inspect, and remove projects in the configured storage.`,
}

var projectLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all projects",
	Run: func(cmd *cobra.Command, args []string) {
		stack, _ := loadStack(cmd)
		defer stack.Close()

		projects, err := stack.Manager.List(cmd.Context())
		if err != nil {
			fail("Error listing projects", err)
		}

		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return
		}

		fmt.Println("Projects:")
		for _, p := range projects {
			fmt.Println("- " + p)
		}
	},
}

var projectInspectCmd = &cobra.Command{
	Use:   "inspect <project-id>",
	Short: "Print a project snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		stack, _ := loadStack(cmd)
		defer stack.Close()

		p, err := stack.Manager.Load(cmd.Context(), args[0])
		if err != nil {
			fail(fmt.Sprintf("Error loading project '%s'", args[0]), err)
		}

		var data []byte
		if format, _ := cmd.Flags().GetString("format"); format == "yaml" {
			data, err = yaml.Marshal(p)
		} else {
			data, err = json.MarshalIndent(p, "", "  ")
		}
		if err != nil {
			fail("Error marshaling project", err)
		}
		fmt.Println(string(data))
	},
}

var projectLogCmd = &cobra.Command{
	Use:   "log <project-id>",
	Short: "Print the recorded operations of a project",
	Long:  `Replays the operation log of a project timeline. Only the redis driver keeps it across runs.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		stack, _ := loadStack(cmd)
		defer stack.Close()

		p, err := stack.Manager.Load(cmd.Context(), args[0])
		if err != nil {
			fail(fmt.Sprintf("Error loading project '%s'", args[0]), err)
		}
		ops, err := stack.OpLog.Range(cmd.Context(), p.ID, p.TimelineID)
		if err != nil {
			fail("Error reading operation log", err)
		}
		enc := json.NewEncoder(os.Stdout)
		for _, op := range ops {
			if err := enc.Encode(op); err != nil {
				fail("Error encoding operation", err)
			}
		}
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <project-id>...",
	Short: "Remove one or more projects",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		stack, _ := loadStack(cmd)
		defer stack.Close()
		hasError := false

		for _, projectID := range args {
			if err := stack.Manager.Delete(cmd.Context(), projectID); err != nil {
				fmt.Printf("Error removing '%s': %v\n", projectID, err)
				hasError = true
			} else {
				fmt.Printf("Removed project '%s'\n", projectID)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectLsCmd)
	projectCmd.AddCommand(projectInspectCmd)
	projectCmd.AddCommand(projectLogCmd)
	projectCmd.AddCommand(projectRmCmd)
	projectInspectCmd.Flags().String("format", "json", "Output format: json or yaml")
}
