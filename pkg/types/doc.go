// Package types defines the data exchanged with a Knowledge Engine smart connector.
//
// This package contains the wire types of the smart-connector REST API:
//   - KnowledgeBaseRegistration / SmartConnector: knowledge base lifecycle
//   - KnowledgeInteraction: a registered ASK, ANSWER, POST or REACT pattern
//   - Binding / BindingSet: variable to term assignments for a graph pattern
//   - HandleRequest / HandleResponse: the long-poll dispatch payloads
//   - InvocationResult: the result of an ASK or POST call
//   - Lease: renewal response of a time-limited registration
//
// # Interaction Kinds
//
// InteractionKind is a closed enumeration of the four interaction kinds:
//
//	switch kind {
//	case types.AskInteraction, types.PostInteraction:
//	    // proactive
//	case types.AnswerInteraction, types.ReactInteraction:
//	    // reactive
//	}
//
// # Validation
//
// Registration types provide Validate() methods for input validation:
//
//	reg := &types.KnowledgeBaseRegistration{ID: "http://example.org/kb1", Name: "KB1"}
//	if err := reg.Validate(); err != nil {
//	    // Handle validation error
//	}
//
// Graph patterns are opaque strings passed to the smart connector unmodified.
package types
