package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tke "github.com/TNO/knowledge-engine"
	"github.com/TNO/knowledge-engine/pkg/config"
	"github.com/TNO/knowledge-engine/pkg/retry"
	"github.com/TNO/knowledge-engine/pkg/types"
)

// registerWithRetry registers reg, retrying while the smart connector is
// unreachable or still starting. Invalid registrations and conflicts are not retried.
func registerWithRetry(ctx context.Context, client *tke.Client, reg types.KnowledgeBaseRegistration, reregister bool, rc config.RetryConfig, log *slog.Logger) (*tke.KnowledgeBase, error) {
	cfg := retry.Fixed(rc.Delay)
	cfg.MaxAttempts = rc.MaxAttempts

	return retry.DoWithResult(ctx, cfg, func(ctx context.Context) (*tke.KnowledgeBase, error) {
		kb, err := client.RegisterKnowledgeBase(ctx, reg, &tke.RegisterOptions{Reregister: reregister})
		if errors.Is(err, tke.ErrRegistrationConflict) || errors.Is(err, types.ErrEmptyID) ||
			errors.Is(err, types.ErrInvalidID) || errors.Is(err, types.ErrEmptyName) {
			return nil, retry.NonRetryable(err)
		}
		return kb, err
	}, func(attempt int, err error, delay time.Duration) {
		log.Warn("Registration failed, retrying", "kb", reg.ID, "attempt", attempt, "delay", delay, "error", err)
	})
}

// registrationFromConfig builds the registration of the configured knowledge base.
func registrationFromConfig(kb config.KnowledgeBaseConfig) types.KnowledgeBaseRegistration {
	return types.KnowledgeBaseRegistration{
		ID:               kb.ID,
		Name:             kb.Name,
		Description:      kb.Description,
		LeaseRenewalTime: kb.Lease,
	}
}

// unregister removes kb from its smart connector, logging failures.
func unregister(kb *tke.KnowledgeBase, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := kb.Unregister(ctx); err != nil {
		log.Error("Failed to unregister knowledge base", "kb", kb.ID(), "error", err)
		kb.Close()
	}
}
