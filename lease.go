package tke

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/TNO/knowledge-engine/pkg/types"
	"github.com/TNO/knowledge-engine/pkg/utils"
)

// leaseRenewalFraction is the part of the lease that passes before renewal.
const leaseRenewalFraction = 0.8

// LeaseRenewalInterval returns the renewal interval for a lease of the given
// duration: 80% of it.
func LeaseRenewalInterval(lease time.Duration) time.Duration {
	return time.Duration(float64(lease) * leaseRenewalFraction)
}

// RenewLease renews the lease of the knowledge base once.
func (kb *KnowledgeBase) RenewLease(ctx context.Context) (*types.Lease, error) {
	resp, err := kb.client.do(ctx, http.MethodPut, "/sc/lease/renew", kbHeaders(kb.reg.ID), nil, true)
	if err != nil {
		return nil, kindError(ErrLeaseRenewal, "PUT /sc/lease/renew", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp) {
		return nil, responseError(resp, ErrLeaseRenewal, "PUT /sc/lease/renew")
	}

	var lease types.Lease
	if err := json.NewDecoder(resp.Body).Decode(&lease); err != nil {
		return nil, kindError(ErrLeaseRenewal, "decode lease", err)
	}

	kb.leaseMu.Lock()
	kb.leaseExpires = lease.ExpiresAt()
	kb.leaseMu.Unlock()
	return &lease, nil
}

// LeaseExpires returns the expiry reported by the last renewal, zero before
// the first one.
func (kb *KnowledgeBase) LeaseExpires() time.Time {
	kb.leaseMu.Lock()
	defer kb.leaseMu.Unlock()
	return kb.leaseExpires
}

// scheduleLeaseRenewal arms the renewal timer at 80% of the configured lease.
// Renewals always use the configured duration, not the server's expiry.
func (kb *KnowledgeBase) scheduleLeaseRenewal() {
	interval := LeaseRenewalInterval(kb.reg.Lease())

	kb.leaseMu.Lock()
	defer kb.leaseMu.Unlock()
	if kb.ctx.Err() != nil {
		return
	}
	kb.leaseTimer = kb.client.clock.AfterFunc(interval, kb.renewLeaseOnTimer)
	kb.logger.Debug("Scheduled lease renewal", "in", interval)
}

func (kb *KnowledgeBase) renewLeaseOnTimer() {
	defer utils.RecoverWithCallback(func(err error) {
		kb.client.reportError(kb, err)
	})

	if kb.ctx.Err() != nil {
		return
	}

	lease, err := kb.RenewLease(kb.ctx)
	kb.client.metrics.LeaseRenewal(err == nil)
	if err != nil {
		if kb.ctx.Err() != nil {
			return
		}
		// A failed renewal ends the renewal chain.
		kb.logger.Error("Lease renewal failed", "error", err)
		kb.client.reportError(kb, err)
		return
	}

	kb.logger.Info("Renewed lease", "until", lease.ExpiresAt().Format(time.RFC3339))
	kb.scheduleLeaseRenewal()
}

func (kb *KnowledgeBase) stopLeaseRenewal() {
	kb.leaseMu.Lock()
	defer kb.leaseMu.Unlock()
	if kb.leaseTimer != nil {
		kb.leaseTimer.Stop()
		kb.leaseTimer = nil
	}
}
