package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursemind/coursemind/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run CourseMind as an MCP server over stdio, exposing the
ask_course, search_course, and retrieval_stats tools to AI clients.

The server watches the data directory and reloads collections when
'coursemind index' rewrites them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "stdio", "Transport: stdio")

	return cmd
}

func runServe(ctx context.Context, transport string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipe, err := buildPipeline(ctx, cfg, pipelineOptions{watch: true})
	if err != nil {
		return err
	}
	defer pipe.Close()

	if err := pipe.manager.Watch(ctx); err != nil {
		slog.Warn("collection watching disabled", slog.String("error", err.Error()))
	}

	server, err := mcp.NewServer(pipe.router, pipe.generator, pipe.manager, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	defer func() { _ = server.Close() }()

	return server.Serve(ctx, transport)
}
