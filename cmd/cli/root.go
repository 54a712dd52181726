package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tke "github.com/TNO/knowledge-engine"
	"github.com/TNO/knowledge-engine/pkg/config"
	"github.com/TNO/knowledge-engine/pkg/logger"
	"github.com/TNO/knowledge-engine/pkg/metrics"
	"github.com/TNO/knowledge-engine/pkg/transport"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tke",
		Short: "tke: Knowledge Engine smart connector client",
		Long: `tke talks to the REST API of a Knowledge Engine smart connector.
It registers knowledge bases, asks for and answers with knowledge, lists what
is registered and can run an in-memory fake smart connector for experiments.

Configuration is read from a YAML file, TKE_* and KE_URL/KB_ID/KB_NAME
environment variables, and command-line flags.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tke.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("endpoint", "", "smart connector REST endpoint, e.g. http://localhost:8280/rest")
	rootCmd.PersistentFlags().String("metrics-listen", "", "serve Prometheus metrics on this address, e.g. :9090")

	// Bind flags to viper
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("connector.endpoint", rootCmd.PersistentFlags().Lookup("endpoint"))
	_ = viper.BindPFlag("metrics.listen", rootCmd.PersistentFlags().Lookup("metrics-listen"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tke")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads and validates the configuration. Empty bound flags do not
// override file values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("endpoint") {
		cfg.Connector.Endpoint, _ = cmd.Flags().GetString("endpoint")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	log := logger.NewLogger(logger.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Color:  cfg.Log.Color,
	})
	slog.SetDefault(log)
	return log, nil
}

// newClient creates a client for endpoint with the configured transport.
func newClient(cfg *config.Config, endpoint string, log *slog.Logger, m *metrics.Metrics) (*tke.Client, error) {
	httpClient, err := transport.New(cfg.Connector, log)
	if err != nil {
		return nil, err
	}
	return tke.NewClient(endpoint,
		tke.WithHTTPClient(httpClient),
		tke.WithLogger(log),
		tke.WithMetrics(m),
		tke.WithRequestTimeout(cfg.Connector.RequestTimeoutDuration()),
		tke.WithErrorHandler(func(kb *tke.KnowledgeBase, err error) {
			log.Error("Background task failed", "kb", kb.ID(), "error", err)
		}),
	)
}

// startMetrics serves /metrics when listen is set. The returned function
// shuts the server down; it is a no-op without a listener.
func startMetrics(listen string, log *slog.Logger) (*metrics.Metrics, func()) {
	if listen == "" {
		return nil, func() {}
	}

	reg := metrics.NewRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info("Serving metrics", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "error", err)
		}
	}()

	return reg.Metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
