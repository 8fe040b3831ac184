package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/vine"
	"github.com/aretw0/vine/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Loads the definition file and exposes its stores to MCP clients.
Store actions become the call_action tool and every store state is a
vine://stores/<name> resource.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		// Logs go to Stderr; Stdout carries JSON-RPC in stdio mode.
		logger := newLogger(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx, cmd, vine.WithName("mcp"))
		if err != nil {
			logger.Error("Error initializing vine", "err", err)
			os.Exit(1)
		}
		defer func() {
			if err := a.Close(context.Background()); err != nil {
				logger.Error("Error flushing storage", "err", err)
			}
		}()
		go a.engine.Run(ctx)

		srv := mcp.NewServer(a.engine, mcp.WithLogger(logger))
		switch transport {
		case "stdio":
			logger.Info("Starting vine MCP Server (Stdio)...")
			if err := srv.ServeStdio(); err != nil {
				logger.Error("MCP Server execution failed", "err", err)
			}
		case "sse":
			logger.Info("Starting vine MCP Server (SSE)", "port", port)
			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("MCP Server execution failed", "err", err)
				return
			}
			logger.Info("MCP Server stopped gracefully")
		default:
			logger.Error("Unknown transport. Supported: stdio, sse", "transport", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
