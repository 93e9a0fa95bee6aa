package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API server",
	Long: `Starts the claimwise REST API with query, claim decision, chat history and
audit endpoints, plus a websocket chat at /ws/chat and Prometheus metrics at
/metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		srv := server.New(server.Config{
			Port:        port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			Model:       a.cfg.Model,
		}, a.orch, a.audit, a.logger)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("server shutdown", zap.Error(err))
			}
		}()

		count, err := a.store.Count(ctx)
		if err != nil {
			a.logger.Warn("counting indexed clauses", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "claimwise server %s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", databasePath(a.cfg))
		fmt.Fprintf(os.Stderr, "  Clauses indexed: %d\n", count)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8000, "port to listen on (default from config)")
	rootCmd.AddCommand(serverCmd)
}
