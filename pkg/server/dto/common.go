package dto

import (
	"github.com/TNO/knowledge-engine/pkg/types"
)

// Message types of ResponseMessage.
const (
	MessageTypeError   = "error"
	MessageTypeMessage = "message"
)

// ResponseMessage is the body of error and informational responses.
type ResponseMessage struct {
	MessageType string `json:"messageType"`
	Message     string `json:"message"`
}

// KnowledgeInteractionID is the response of POST /sc/ki.
type KnowledgeInteractionID struct {
	KnowledgeInteractionID string `json:"knowledgeInteractionId"`
}

// HandleResponse is the body of POST /sc/handle.
type HandleResponse = types.HandleResponse

// Health is the response of the health endpoints.
type Health struct {
	Status          string `json:"status"`
	Service         string `json:"service"`
	Version         string `json:"version,omitempty"`
	Timestamp       string `json:"timestamp"`
	KnowledgeBases  int    `json:"knowledgeBases"`
	PollTimeoutSecs int    `json:"pollTimeoutSeconds,omitempty"`
}

// Error returns an error ResponseMessage.
func Error(msg string) ResponseMessage {
	return ResponseMessage{MessageType: MessageTypeError, Message: msg}
}

// Info returns an informational ResponseMessage.
func Info(msg string) ResponseMessage {
	return ResponseMessage{MessageType: MessageTypeMessage, Message: msg}
}
