package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/vine"
	"github.com/aretw0/vine/internal/server"
	"github.com/aretw0/vine/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP inspector",
	Long:  `Loads the definition file and exposes its stores as JSON over HTTP, with action calls, SSE diffs and Prometheus metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		logger := newLogger(cmd)
		metrics := observability.NewMetrics()
		hooks := observability.NewAggregator().
			Add(metrics.Hooks()).
			Add(observability.LogHooks(logger)).
			Hooks()

		a, err := loadApp(context.Background(), cmd, vine.WithLifecycleHooks(hooks), vine.WithName("serve"))
		if err != nil {
			fmt.Printf("Error initializing vine: %v\n", err)
			os.Exit(1)
		}

		engineCtx, stopEngine := context.WithCancel(context.Background())
		defer stopEngine()
		go a.engine.Run(engineCtx)

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: server.NewHandler(a.engine, server.WithMetrics(metrics.Handler()), server.WithLogger(logger)),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting vine server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				fmt.Printf("Server error: %v\n", err)
				os.Exit(1)
			}

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			if err := a.Close(ctx); err != nil {
				fmt.Printf("Error flushing storage: %v\n", err)
			}
			fmt.Println("vine server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
