package main

import (
	"fmt"

	"github.com/goflowspace/goflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of goflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("goflow version %s\n", goflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
