package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TNO/knowledge-engine/pkg/types"
)

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Answer a graph pattern from a YAML file",
	Long: `Registers the configured knowledge base with an ANSWER knowledge interaction
and answers every request with the matching bindings of the data file until
interrupted.`,
	RunE: runAnswer,
}

func init() {
	rootCmd.AddCommand(answerCmd)

	answerCmd.Flags().String("data", "answers.yaml", "YAML file with the pattern and bindings to answer with")
	answerCmd.Flags().String("pattern", "", "graph pattern to answer (overrides the data file)")
}

func runAnswer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	m, stopMetrics := startMetrics(cfg.Metrics.Listen, log)
	defer stopMetrics()

	path, _ := cmd.Flags().GetString("data")
	data, err := loadAnswerData(path)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("pattern") {
		data.Pattern, _ = cmd.Flags().GetString("pattern")
	}
	if data.Pattern == "" {
		return fmt.Errorf("no graph pattern in %s", path)
	}

	client, err := newClient(cfg, cfg.Connector.Endpoint, log, m)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kb, err := registerWithRetry(ctx, client, registrationFromConfig(cfg.KnowledgeBase), cfg.KnowledgeBase.Reregister, cfg.Retry, log)
	if err != nil {
		return err
	}
	defer unregister(kb, log)

	ki, err := kb.RegisterKnowledgeInteraction(ctx, types.KnowledgeInteraction{
		Kind:         types.AnswerInteraction,
		GraphPattern: data.Pattern,
		Prefixes:     data.Prefixes,
	}, answerFrom(types.BindingSet(data.Bindings)))
	if err != nil {
		return err
	}
	log.Info("Answering", "ki", ki.ID, "bindings", len(data.Bindings))

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
		return nil
	case <-kb.Done():
		return kb.Err()
	}
}
