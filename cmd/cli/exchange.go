package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	tke "github.com/TNO/knowledge-engine"
	"github.com/TNO/knowledge-engine/pkg/retry"
	"github.com/TNO/knowledge-engine/pkg/types"
)

const relatedToPattern = "?a <http://example.org/relatedTo> ?b ."

var errNoAnswer = errors.New("no answer yet")

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Exchange knowledge between two knowledge bases",
	Long: `Registers KB1 on the first smart connector and KB2 on the second, lets KB2
answer a relatedTo pattern and asks it from KB1 until an answer arrives. Both
knowledge bases are unregistered afterwards.`,
	RunE: runExchange,
}

func init() {
	rootCmd.AddCommand(exchangeCmd)

	exchangeCmd.Flags().String("endpoint1", "http://runtime-1:8280/rest", "smart connector of KB1")
	exchangeCmd.Flags().String("endpoint2", "http://runtime-2:8280/rest", "smart connector of KB2")
	exchangeCmd.Flags().Duration("boot-delay", 5*time.Second, "wait this long for the smart connectors to start")
	exchangeCmd.Flags().Duration("ask-interval", time.Second, "delay between asks without an answer")
}

func runExchange(cmd *cobra.Command, args []string) error {
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

	endpoint1, _ := cmd.Flags().GetString("endpoint1")
	endpoint2, _ := cmd.Flags().GetString("endpoint2")
	bootDelay, _ := cmd.Flags().GetDuration("boot-delay")
	askInterval, _ := cmd.Flags().GetDuration("ask-interval")

	client1, err := newClient(cfg, endpoint1, log, m)
	if err != nil {
		return err
	}
	client2, err := newClient(cfg, endpoint2, log, m)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Waiting for smart connectors", "delay", bootDelay)
	select {
	case <-time.After(bootDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	var kb1, kb2 *tke.KnowledgeBase
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		kb1, err = registerWithRetry(gctx, client1, types.KnowledgeBaseRegistration{
			ID: "http://example.org/kb1", Name: "KB1", Description: "An example KB1",
		}, cfg.KnowledgeBase.Reregister, cfg.Retry, log)
		return err
	})
	g.Go(func() error {
		var err error
		kb2, err = registerWithRetry(gctx, client2, types.KnowledgeBaseRegistration{
			ID: "http://example.org/kb2", Name: "KB2", Description: "An example KB2",
		}, cfg.KnowledgeBase.Reregister, cfg.Retry, log)
		return err
	})
	err = g.Wait()
	registered := []*tke.KnowledgeBase{kb1, kb2}
	defer func() {
		for _, kb := range registered {
			if kb != nil {
				unregister(kb, log)
			}
		}
	}()
	if err != nil {
		return fmt.Errorf("failed to register knowledge bases: %w", err)
	}

	ask, err := kb1.RegisterAsk(ctx, relatedToPattern)
	if err != nil {
		return err
	}
	knowledge := types.BindingSet{
		{"a": "<http://example.org/Maths>", "b": "<http://example.org/Science>"},
		{"a": "<http://example.org/Books>", "b": "<http://example.org/Magazines>"},
	}
	if _, err := kb2.RegisterAnswer(ctx, relatedToPattern, answerFrom(knowledge)); err != nil {
		return err
	}

	result, err := askUntilAnswered(ctx, ask, askInterval)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Results:")
	for _, b := range result.BindingSet {
		fmt.Fprintf(os.Stdout, "  %s relatedTo %s\n", b["a"], b["b"])
	}

	for _, kb := range registered {
		unregister(kb, log)
	}
	registered = nil
	fmt.Fprintln(os.Stdout, "bye")
	return nil
}

// askUntilAnswered asks with an empty binding set until the result is not empty.
func askUntilAnswered(ctx context.Context, ask *tke.Interaction, interval time.Duration) (*types.InvocationResult, error) {
	return retry.DoWithResult(ctx, retry.Fixed(interval), func(ctx context.Context) (*types.InvocationResult, error) {
		result, err := ask.Invoke(ctx, types.BindingSet{})
		if err != nil {
			return nil, err
		}
		if len(result.BindingSet) == 0 {
			return nil, errNoAnswer
		}
		return result, nil
	}, nil)
}
