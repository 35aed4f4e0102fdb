package guardrails

import (
	"context"
	"regexp"
	"strings"
)

// ContentFilter implements a guardrail that filters inappropriate content
type ContentFilter struct {
	blockedWords []string
	action       Action
	regex        *regexp.Regexp
}

// NewContentFilter creates a new content filter guardrail
func NewContentFilter(blockedWords []string, action Action) *ContentFilter {
	c := &ContentFilter{
		blockedWords: blockedWords,
		action:       action,
	}

	quoted := make([]string, 0, len(blockedWords))
	for _, word := range blockedWords {
		if word = strings.TrimSpace(word); word != "" {
			quoted = append(quoted, regexp.QuoteMeta(word))
		}
	}
	if len(quoted) > 0 {
		c.regex = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return c
}

// Type returns the type of guardrail
func (c *ContentFilter) Type() GuardrailType {
	return ContentFilterGuardrail
}

// CheckRequest checks if a request violates the guardrail
func (c *ContentFilter) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	return c.check(request)
}

// CheckResponse checks if a response violates the guardrail
func (c *ContentFilter) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return c.check(response)
}

func (c *ContentFilter) check(text string) (bool, string, error) {
	if c.regex == nil || !c.regex.MatchString(text) {
		return false, text, nil
	}
	return true, c.regex.ReplaceAllString(text, "****"), nil
}

// Describe names the blocked words found in text
func (c *ContentFilter) Describe(text string) string {
	if c.regex == nil {
		return ""
	}
	matches := c.regex.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	seen := make(map[string]bool, len(matches))
	words := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.ToLower(m)
		if !seen[m] {
			seen[m] = true
			words = append(words, m)
		}
	}
	return "blocked words: " + strings.Join(words, ", ")
}

// Action returns the action to take when the guardrail is triggered
func (c *ContentFilter) Action() Action {
	return c.action
}
