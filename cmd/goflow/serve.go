package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goflowspace/goflow/internal/presentation/tui"
	httpAdapter "github.com/goflowspace/goflow/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editing HTTP server",
	Long: `Starts goflow in server mode, exposing the editor as a JSON API over HTTP.
Operations of every project are streamed on /projects/{id}/events (SSE).`,
	Run: func(cmd *cobra.Command, args []string) {
		stack, logger := loadStack(cmd)
		defer stack.Close()

		port := stack.Config.HTTP.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetString("port")
		}

		opts := []httpAdapter.Option{
			httpAdapter.WithStreams(stack.Streams),
			httpAdapter.WithNotifiers(stack.Notifiers),
			httpAdapter.WithLogger(logger),
		}
		if stack.Metrics != nil {
			opts = append(opts, httpAdapter.WithMetrics(stack.Metrics, stack.Registry))
		}

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           httpAdapter.NewHandler(stack.Manager, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		tui.PrintBanner(os.Stderr)

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("starting goflow server", "addr", srv.Addr, "storage", stack.Config.Storage.Driver)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fail("Server error", err)

		case sig := <-shutdown:
			logger.Info("start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Error killing server: %v\n", err)
				}
			}
			logger.Info("goflow server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on (overrides http.port)")
}
