package tke

import (
	"errors"
	"fmt"
)

// Error kinds reported by the client. Failures returned by this package match
// one of them with errors.Is.
var (
	// ErrRegistrationConflict indicates a knowledge base with the same id already exists
	ErrRegistrationConflict = errors.New("knowledge base already exists")

	// ErrRegistration indicates the smart connector rejected a knowledge base registration
	ErrRegistration = errors.New("knowledge base registration failed")

	// ErrUnregistration indicates the smart connector rejected a knowledge base deletion
	ErrUnregistration = errors.New("knowledge base unregistration failed")

	// ErrInteractionRegistration indicates a knowledge interaction could not be (un)registered
	ErrInteractionRegistration = errors.New("knowledge interaction registration failed")

	// ErrInvocation indicates an ask or post call failed
	ErrInvocation = errors.New("knowledge interaction invocation failed")

	// ErrHandleResponse indicates a handler result could not be delivered
	ErrHandleResponse = errors.New("handle response failed")

	// ErrLeaseRenewal indicates the lease could not be renewed
	ErrLeaseRenewal = errors.New("lease renewal failed")

	// ErrLongPollTransport indicates the long poll received an unexpected response
	ErrLongPollTransport = errors.New("long poll failed")

	// ErrListing indicates a listing call failed
	ErrListing = errors.New("listing failed")

	// ErrKnowledgeBaseStopped indicates the server cancelled the long poll because
	// the knowledge base is stopping (410 Gone)
	ErrKnowledgeBaseStopped = errors.New("knowledge base stopped by smart connector")

	// ErrUnknownInteraction indicates a handle request for an interaction without handler
	ErrUnknownInteraction = errors.New("no handler for knowledge interaction")

	// ErrMissingHandler indicates an ANSWER or REACT registration without handler
	ErrMissingHandler = errors.New("reactive knowledge interaction requires a handler")

	// ErrClosed indicates the knowledge base handle was closed
	ErrClosed = errors.New("knowledge base handle closed")
)

// ResponseError is a non-success response of the smart connector.
// Body holds the server's error text.
type ResponseError struct {
	Kind       error
	Op         string
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s: HTTP %d", e.Kind, e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: HTTP %d: %s", e.Kind, e.Op, e.StatusCode, e.Body)
}

// Unwrap returns the error kind so errors.Is(err, ErrRegistration) works.
func (e *ResponseError) Unwrap() error {
	return e.Kind
}

// HTTPStatusCode returns the status code of the failed response.
func (e *ResponseError) HTTPStatusCode() int {
	return e.StatusCode
}

// Is additionally matches ErrKnowledgeBaseStopped for a 410 long poll.
func (e *ResponseError) Is(target error) bool {
	return target == ErrKnowledgeBaseStopped && e.Kind == ErrLongPollTransport && e.StatusCode == 410
}

// kindError wraps a transport or decoding failure with its error kind.
func kindError(kind error, op string, err error) error {
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}
