package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TNO/knowledge-engine/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a graph pattern once and print the answers",
	Long: `Registers the configured knowledge base with an ASK knowledge interaction,
asks it once and prints the result as JSON. The knowledge base is unregistered
afterwards.

Example:
  tke ask --pattern '?a <http://example.org/relatedTo> ?b .' --binding a='<http://example.org/Books>'`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().String("pattern", relatedToPattern, "graph pattern to ask")
	askCmd.Flags().StringArray("binding", nil, "variable=value assignment of the asked binding (repeatable)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	pattern, _ := cmd.Flags().GetString("pattern")
	assignments, _ := cmd.Flags().GetStringArray("binding")
	binding, err := parseBinding(assignments)
	if err != nil {
		return err
	}

	client, err := newClient(cfg, cfg.Connector.Endpoint, log, nil)
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

	ask, err := kb.RegisterAsk(ctx, pattern)
	if err != nil {
		return err
	}
	result, err := ask.Invoke(ctx, types.BindingSet{binding})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// parseBinding turns variable=value assignments into a binding. A leading
// '?' on the variable is dropped.
func parseBinding(assignments []string) (types.Binding, error) {
	binding := types.Binding{}
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "?")
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("invalid binding %q, expected variable=value", a)
		}
		binding[name] = value
	}
	return binding, nil
}
