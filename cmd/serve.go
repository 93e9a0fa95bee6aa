package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "github.com/ziadkadry99/claimwise/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing policy
question answering, claim adjudication and clause search as tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		mcpserver.Version = Version

		count, err := a.store.Count(ctx)
		if err != nil {
			a.logger.Warn("counting indexed clauses", zap.Error(err))
		}
		if count == 0 {
			fmt.Fprintln(os.Stderr, "Warning: no policy clauses are indexed. Run `claimwise index` first.")
		}
		fmt.Fprintf(os.Stderr, "claimwise MCP server started on stdio (clauses=%d)\n", count)

		return mcpserver.NewServer(a.orch).Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
