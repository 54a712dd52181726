package types

import (
	"encoding/json"
	"fmt"
)

// InteractionKind is the type of a knowledge interaction.
type InteractionKind int

const (
	AskInteraction InteractionKind = iota + 1
	AnswerInteraction
	PostInteraction
	ReactInteraction
)

// String returns the wire name of the kind.
func (k InteractionKind) String() string {
	switch k {
	case AskInteraction:
		return "AskKnowledgeInteraction"
	case AnswerInteraction:
		return "AnswerKnowledgeInteraction"
	case PostInteraction:
		return "PostKnowledgeInteraction"
	case ReactInteraction:
		return "ReactKnowledgeInteraction"
	default:
		return fmt.Sprintf("InteractionKind(%d)", int(k))
	}
}

// ParseInteractionKind parses a wire name into an InteractionKind.
func ParseInteractionKind(s string) (InteractionKind, error) {
	switch s {
	case "AskKnowledgeInteraction":
		return AskInteraction, nil
	case "AnswerKnowledgeInteraction":
		return AnswerInteraction, nil
	case "PostKnowledgeInteraction":
		return PostInteraction, nil
	case "ReactKnowledgeInteraction":
		return ReactInteraction, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Valid reports whether k is one of the four interaction kinds.
func (k InteractionKind) Valid() bool {
	switch k {
	case AskInteraction, AnswerInteraction, PostInteraction, ReactInteraction:
		return true
	default:
		return false
	}
}

// Reactive reports whether interactions of this kind are answered through the long poll.
func (k InteractionKind) Reactive() bool {
	switch k {
	case AnswerInteraction, ReactInteraction:
		return true
	default:
		return false
	}
}

// Path returns the invocation path of a proactive kind, empty for reactive kinds.
func (k InteractionKind) Path() string {
	switch k {
	case AskInteraction:
		return "/sc/ask"
	case PostInteraction:
		return "/sc/post"
	default:
		return ""
	}
}

// MarshalJSON encodes the kind as its wire name.
func (k InteractionKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a wire name.
func (k *InteractionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInteractionKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KnowledgeInteraction is the body of POST /sc/ki.
type KnowledgeInteraction struct {
	Kind                 InteractionKind   `json:"knowledgeInteractionType"`
	Name                 string            `json:"knowledgeInteractionName,omitempty"`
	GraphPattern         string            `json:"graphPattern,omitempty"`
	ArgumentGraphPattern string            `json:"argumentGraphPattern,omitempty"`
	ResultGraphPattern   string            `json:"resultGraphPattern,omitempty"`
	Prefixes             map[string]string `json:"prefixes,omitempty"`
}

// Validate checks that the patterns match the kind: ASK and ANSWER take a
// graph pattern, POST and REACT take an argument and optional result pattern.
func (ki *KnowledgeInteraction) Validate() error {
	switch ki.Kind {
	case AskInteraction, AnswerInteraction:
		if ki.GraphPattern == "" {
			return ErrMissingGraphPattern
		}
		if ki.ArgumentGraphPattern != "" || ki.ResultGraphPattern != "" {
			return fmt.Errorf("%w: %s", ErrUnexpectedPattern, ki.Kind)
		}
	case PostInteraction, ReactInteraction:
		if ki.ArgumentGraphPattern == "" {
			return ErrMissingArgument
		}
		if ki.GraphPattern != "" {
			return fmt.Errorf("%w: %s", ErrUnexpectedPattern, ki.Kind)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(ki.Kind))
	}
	return nil
}

// KnowledgeInteractionInfo is a registered interaction as listed by GET /sc/ki.
type KnowledgeInteractionInfo struct {
	KnowledgeInteraction
	ID string `json:"knowledgeInteractionId"`
}
