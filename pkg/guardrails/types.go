// Package guardrails checks model inputs and outputs against safety rules.
package guardrails

import (
	"context"
	"errors"
)

// ErrBlocked is returned when a guardrail with BlockAction is triggered
var ErrBlocked = errors.New("content blocked by guardrail")

// GuardrailType identifies a kind of guardrail
type GuardrailType string

const (
	ContentFilterGuardrail   GuardrailType = "content_filter"
	PiiFilterGuardrail       GuardrailType = "pii_filter"
	TokenLimitGuardrail      GuardrailType = "token_limit"
	ToolRestrictionGuardrail GuardrailType = "tool_restriction"
)

// Action is what happens when a guardrail is triggered
type Action string

const (
	// BlockAction rejects the content
	BlockAction Action = "block"
	// RedactAction replaces the content with the guardrail's modified version
	RedactAction Action = "redact"
	// LogAction records the violation and lets the content through unchanged
	LogAction Action = "log"
)

// Guardrail is one safety rule
type Guardrail interface {
	// Type returns the type of guardrail
	Type() GuardrailType

	// CheckRequest checks if a request violates the guardrail. It returns
	// whether the guardrail triggered and the modified request.
	CheckRequest(ctx context.Context, request string) (bool, string, error)

	// CheckResponse checks if a response violates the guardrail
	CheckResponse(ctx context.Context, response string) (bool, string, error)

	// Action returns the action to take when the guardrail is triggered
	Action() Action
}

// Describer is implemented by guardrails that can explain why they triggered
type Describer interface {
	Describe(text string) string
}
