package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goflowspace/goflow/internal/cli"
	"github.com/goflowspace/goflow/internal/config"
	"github.com/goflowspace/goflow/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "goflow",
	Short: "goflow edits hierarchical narrative graphs",
	Long: `goflow hosts editing sessions over layered story graphs: nodes, choices,
nested layers with computed ports, undo/redo and copy/paste, served over HTTP
or MCP and stored in files or Redis.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Working directory for relative storage paths")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a goflow.yaml config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}

// loadStack reads the configuration selected by the persistent flags and
// builds the component stack.
func loadStack(cmd *cobra.Command) (*cli.Stack, *slog.Logger) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if _, err := os.Stat("goflow.yaml"); err == nil {
			path = "goflow.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fail("Error loading config", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	dir, _ := cmd.Flags().GetString("dir")
	if cfg.Storage.Path != "" && !filepath.IsAbs(cfg.Storage.Path) {
		cfg.Storage.Path = filepath.Join(dir, cfg.Storage.Path)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fail("Error parsing log level", err)
	}
	logger := logging.New(level, logging.Format(cfg.LogFormat))
	slog.SetDefault(logger)

	stack, err := cli.NewStack(cfg, logger)
	if err != nil {
		fail("Error initializing goflow", err)
	}
	return stack, logger
}

// projectArg returns args[i], falling back to the configured project.
func projectArg(stack *cli.Stack, args []string, i int) string {
	if len(args) > i && args[i] != "" {
		return args[i]
	}
	return stack.Config.ProjectID
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
