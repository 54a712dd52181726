package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TNO/knowledge-engine/pkg/config"
	"github.com/TNO/knowledge-engine/pkg/server"
)

var connectorCmd = &cobra.Command{
	Use:   "fake-connector",
	Short: "Run an in-memory smart connector",
	Long: `Serves the smart connector REST API under /rest from memory. Knowledge
bases of all clients share one runtime: asks are routed to answers and posts to
reacts with an identical graph pattern. Nothing is persisted.`,
	RunE: runConnector,
}

func init() {
	rootCmd.AddCommand(connectorCmd)

	connectorCmd.Flags().String("host", "", "Server host")
	connectorCmd.Flags().Int("port", 0, "Server port")
	connectorCmd.Flags().String("mode", "", "gin mode (debug, release, test)")
	connectorCmd.Flags().Duration("poll-timeout", 0, "how long a long poll is held before a 202")
}

func runConnector(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConnectorWithFlags(cmd, &cfg.FakeConnector)

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	srv := server.New(cfg.FakeConnector, log)
	srv.Setup()

	// Channel to listen for interrupt signal to terminate gracefully
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-quit:
		log.Info("Shutting down server...")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}

func overrideConnectorWithFlags(cmd *cobra.Command, cfg *config.FakeConnectorConfig) {
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode, _ = cmd.Flags().GetString("mode")
	}
	if cmd.Flags().Changed("poll-timeout") {
		cfg.PollTimeout, _ = cmd.Flags().GetDuration("poll-timeout")
	}
}
