package tke

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseError(t *testing.T) {
	err := &ResponseError{Kind: ErrLeaseRenewal, Op: "PUT /sc/lease/renew", StatusCode: http.StatusNotFound, Body: "unknown knowledge base"}

	assert.ErrorIs(t, err, ErrLeaseRenewal)
	assert.NotErrorIs(t, err, ErrKnowledgeBaseStopped)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatusCode())
	assert.Equal(t, "lease renewal failed: PUT /sc/lease/renew: HTTP 404: unknown knowledge base", err.Error())

	noBody := &ResponseError{Kind: ErrInvocation, Op: "POST /sc/ask", StatusCode: http.StatusInternalServerError}
	assert.Equal(t, "knowledge interaction invocation failed: POST /sc/ask: HTTP 500", noBody.Error())
}

func TestResponseErrorGone(t *testing.T) {
	gone := &ResponseError{Kind: ErrLongPollTransport, Op: "GET /sc/handle", StatusCode: http.StatusGone}
	assert.ErrorIs(t, gone, ErrKnowledgeBaseStopped)
	assert.ErrorIs(t, gone, ErrLongPollTransport)

	otherGone := &ResponseError{Kind: ErrInvocation, Op: "POST /sc/ask", StatusCode: http.StatusGone}
	assert.NotErrorIs(t, otherGone, ErrKnowledgeBaseStopped)
}

func TestKindError(t *testing.T) {
	cause := errors.New("connection refused")
	err := kindError(ErrRegistration, "POST /sc", cause)

	assert.ErrorIs(t, err, ErrRegistration)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "knowledge base registration failed: POST /sc: connection refused", err.Error())
}
