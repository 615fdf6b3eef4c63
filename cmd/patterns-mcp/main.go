package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patternflow/patterns-mcp/internal/config"
	"github.com/patternflow/patterns-mcp/internal/mcp"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:     "patterns-mcp",
		Short:   "MCP server aggregating development patterns from content feeds",
		Long:    "patterns-mcp: an MCP server that aggregates, caches, and ranks development patterns from configured content sources",
		Version: fmt.Sprintf("%s (built %s)", version, buildTime),
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (default: built-in sources)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	cmd.AddCommand(newServeCmd(&configPath, &logLevel))

	return cmd
}

func newServeCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if *logLevel != "" {
				cfg.LogLevel = *logLevel
			}

			// Log to stderr, stdout is reserved for the MCP protocol.
			logger := config.NewLogger(cfg.LogLevel)
			logger.Info().
				Str("version", version).
				Int("sources", len(cfg.EnabledSources())).
				Msg("patterns-mcp starting")

			srv, err := mcp.NewServer(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() {
				logger.Info().Msg("listening on stdio")
				errChan <- srv.Serve(ctx)
			}()

			select {
			case sig := <-sigChan:
				logger.Info().Str("signal", sig.String()).Msg("shutting down")
				cancel()
				srv.Close()
			case err := <-errChan:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			}

			logger.Info().Msg("server stopped")
			return nil
		},
	}
}
