package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation errors
var (
	ErrEmptyID             = errors.New("id cannot be empty")
	ErrInvalidID           = errors.New("id must be an absolute URI")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrNegativeLease       = errors.New("lease renewal time cannot be negative")
	ErrUnknownKind         = errors.New("unknown knowledge interaction type")
	ErrMissingGraphPattern = errors.New("graph pattern is required")
	ErrMissingArgument     = errors.New("argument graph pattern is required")
	ErrUnexpectedPattern   = errors.New("pattern not allowed for this knowledge interaction type")
)

// Header names used by the smart-connector REST API.
const (
	HeaderKnowledgeBaseID        = "Knowledge-Base-Id"
	HeaderKnowledgeInteractionID = "Knowledge-Interaction-Id"
)

// KnowledgeBaseRegistration is the body of POST /sc.
type KnowledgeBaseRegistration struct {
	ID          string `json:"knowledgeBaseId" yaml:"id" mapstructure:"id"`
	Name        string `json:"knowledgeBaseName" yaml:"name" mapstructure:"name"`
	Description string `json:"knowledgeBaseDescription" yaml:"description" mapstructure:"description"`
	// LeaseRenewalTime is the lease duration in seconds. Zero means no lease.
	LeaseRenewalTime int `json:"leaseRenewalTime,omitempty" yaml:"lease_renewal_time" mapstructure:"lease_renewal_time"`
}

// Validate checks if the registration has all required fields set.
func (r *KnowledgeBaseRegistration) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if u, err := url.Parse(r.ID); err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: %q", ErrInvalidID, r.ID)
	}
	if r.Name == "" {
		return ErrEmptyName
	}
	if r.LeaseRenewalTime < 0 {
		return ErrNegativeLease
	}
	return nil
}

// Lease returns the configured lease duration, zero when no lease was requested.
func (r *KnowledgeBaseRegistration) Lease() time.Duration {
	return time.Duration(r.LeaseRenewalTime) * time.Second
}

// SmartConnector describes a registered knowledge base as listed by GET /sc.
type SmartConnector struct {
	KnowledgeBaseID          string `json:"knowledgeBaseId"`
	KnowledgeBaseName        string `json:"knowledgeBaseName"`
	KnowledgeBaseDescription string `json:"knowledgeBaseDescription"`
	LeaseRenewalTime         int    `json:"leaseRenewalTime,omitempty"`
}

// Lease is the response of PUT /sc/lease/renew.
type Lease struct {
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	// Expires is the expiry reported by the server, in milliseconds since the epoch.
	Expires int64 `json:"expires"`
}

// ExpiresAt returns the expiry as a time.
func (l *Lease) ExpiresAt() time.Time {
	return time.UnixMilli(l.Expires)
}

// InvocationResult is the response of POST /sc/ask (BindingSet) and POST
// /sc/post (ResultBindingSet). ExchangeInfo is kept undecoded.
type InvocationResult struct {
	BindingSet       BindingSet      `json:"bindingSet"`
	ResultBindingSet BindingSet      `json:"resultBindingSet,omitempty"`
	ExchangeInfo     json.RawMessage `json:"exchangeInfo,omitempty"`
}

// HandleRequest is a reactive interaction request delivered by GET /sc/handle.
type HandleRequest struct {
	HandleRequestID           int        `json:"handleRequestId"`
	KnowledgeInteractionID    string     `json:"knowledgeInteractionId"`
	BindingSet                BindingSet `json:"bindingSet"`
	RequestingKnowledgeBaseID string     `json:"requestingKnowledgeBaseId,omitempty"`
}

// HandleResponse is the body of POST /sc/handle.
type HandleResponse struct {
	HandleRequestID int        `json:"handleRequestId"`
	BindingSet      BindingSet `json:"bindingSet"`
}
