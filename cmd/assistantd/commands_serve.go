package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		logFormat  string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant HTTP server",
		Long: `Start the assistant HTTP server.

Loads configuration, builds the provider chain, embedder, vector store,
and skill registry, then serves the chat/conversation/config/memory API
until SIGINT or SIGTERM. A background watch on the config file triggers a
hot reload of every rebuildable component when it changes on disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(logFormat, debug)
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "assistant.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log output format: text or json")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func buildValidateConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate a configuration file without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateConfig(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "assistant.yaml", "Path to YAML configuration file")
	return cmd
}

func configureLogging(format string, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
