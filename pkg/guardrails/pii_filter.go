package guardrails

import (
	"context"
	"strings"

	"github.com/run-bigpig/traceai/pkg/masking"
)

// PiiFilter implements a guardrail that filters personally identifiable
// information. Detected entities are replaced with <ENTITY> tokens.
type PiiFilter struct {
	scanner *masking.Scanner
	action  Action
}

// NewPiiFilter creates a new PII filter guardrail
func NewPiiFilter(action Action) *PiiFilter {
	return &PiiFilter{
		scanner: masking.NewScanner(),
		action:  action,
	}
}

// Type returns the type of guardrail
func (p *PiiFilter) Type() GuardrailType {
	return PiiFilterGuardrail
}

// CheckRequest checks if a request violates the guardrail
func (p *PiiFilter) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	return p.check(request)
}

// CheckResponse checks if a response violates the guardrail
func (p *PiiFilter) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return p.check(response)
}

func (p *PiiFilter) check(text string) (bool, string, error) {
	if len(p.scanner.Findings(text)) == 0 {
		return false, text, nil
	}
	return true, p.scanner.Scan(text), nil
}

// Describe lists the entity types found in text
func (p *PiiFilter) Describe(text string) string {
	found := p.scanner.Findings(text)
	if len(found) == 0 {
		return ""
	}
	return "detected " + strings.Join(found, ", ")
}

// Action returns the action to take when the guardrail is triggered
func (p *PiiFilter) Action() Action {
	return p.action
}
