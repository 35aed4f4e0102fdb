package guardrails

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// toolInvocation matches "use tool <name>" directives in free text
var toolInvocation = regexp.MustCompile(`(?i)use\s+tool\s+([a-z0-9_]+)`)

// ToolRestriction implements a guardrail that restricts which tools can be used
type ToolRestriction struct {
	allowedTools []string
	action       Action
}

// NewToolRestriction creates a new tool restriction guardrail
func NewToolRestriction(allowedTools []string, action Action) *ToolRestriction {
	return &ToolRestriction{
		allowedTools: allowedTools,
		action:       action,
	}
}

// Type returns the type of guardrail
func (t *ToolRestriction) Type() GuardrailType {
	return ToolRestrictionGuardrail
}

// CheckRequest checks if a request violates the guardrail
func (t *ToolRestriction) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	restricted := t.restricted(request)
	if len(restricted) == 0 {
		return false, request, nil
	}

	modified := request
	for _, match := range toolInvocation.FindAllStringSubmatch(request, -1) {
		name := strings.ToLower(match[1])
		if slices.Contains(restricted, name) {
			modified = strings.ReplaceAll(modified, match[0],
				fmt.Sprintf("use tool [RESTRICTED TOOL: %s is not allowed]", name))
		}
	}
	return true, modified, nil
}

// CheckResponse checks if a response violates the guardrail. Tool
// restrictions apply to requests only.
func (t *ToolRestriction) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return false, response, nil
}

// Describe names the restricted tools requested in text
func (t *ToolRestriction) Describe(text string) string {
	restricted := t.restricted(text)
	if len(restricted) == 0 {
		return ""
	}
	return "restricted tools: " + strings.Join(restricted, ", ")
}

// Action returns the action to take when the guardrail is triggered
func (t *ToolRestriction) Action() Action {
	return t.action
}

// restricted returns the lower-cased names of requested tools that are not allowed
func (t *ToolRestriction) restricted(text string) []string {
	var names []string
	for _, match := range toolInvocation.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(match[1])
		allowed := slices.ContainsFunc(t.allowedTools, func(tool string) bool {
			return strings.EqualFold(tool, name)
		})
		if !allowed && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}
