// Command assistantd runs the assistant runtime: conversation store,
// memory store, provider chain, skill execution, and the HTTP/SSE
// surface. Grounded on the teacher's cmd/nexus CLI layout (buildRootCmd +
// one file per subcommand group).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during a release build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "assistantd",
		Short:        "assistantd runs the assistant runtime's chat, memory, and skill server",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildValidateConfigCmd())
	return rootCmd
}
