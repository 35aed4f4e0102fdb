package masking

import (
	"regexp"
)

// Entity names substituted into scanned text as <NAME>
const (
	EntityEmail      = "EMAIL_ADDRESS"
	EntitySSN        = "SSN"
	EntityCreditCard = "CREDIT_CARD"
	EntityAPIKey     = "API_KEY"
	EntityIPAddress  = "IP_ADDRESS"
	EntityPhone      = "PHONE_NUMBER"
)

type detector struct {
	entity string
	token  string
	expr   *regexp.Regexp
}

// Detectors run from most to least specific. A card number is a greedy run of
// digit groups, so it has to run after SSNs and before IP addresses and phone
// numbers would get the chance to claim parts of it.
var detectors = []detector{
	newDetector(EntityEmail, `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	newDetector(EntitySSN, `\b\d{3}-\d{2}-\d{4}\b`),
	newDetector(EntityCreditCard, `\b(?:\d[ -]?){12,18}\d\b`),
	newDetector(EntityAPIKey, `\b(?:(?:sk|pk|rk)-(?:[A-Za-z0-9]+-)*[A-Za-z0-9]{16,}|AKIA[0-9A-Z]{16}|gh[pousr]_[A-Za-z0-9]{36,}|xox[abpr]-[A-Za-z0-9-]{10,})\b`),
	newDetector(EntityIPAddress, `\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`),
	newDetector(EntityPhone, `(?:\+\d{1,3}[\s.-]?)?(?:\(\d{3}\)|\b\d{3})[\s.-]?\d{3}[\s.-]?\d{4}\b`),
}

// candidate matches anything any detector could match. Text without a digit,
// an @ or a key prefix cannot contain a supported entity.
var candidate = regexp.MustCompile(`[0-9@]|sk-|pk-|rk-|AKIA|gh[pousr]_|xox[abpr]-`)

func newDetector(entity, pattern string) detector {
	return detector{
		entity: entity,
		token:  "<" + entity + ">",
		expr:   regexp.MustCompile(pattern),
	}
}

// Scanner replaces personally identifiable information with entity tokens.
// It is stateless and safe for concurrent use.
type Scanner struct{}

// NewScanner creates a new PII scanner
func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan returns text with every detected entity replaced by its token
func (s *Scanner) Scan(text string) string {
	if text == "" || !candidate.MatchString(text) {
		return text
	}

	for _, d := range detectors {
		text = d.expr.ReplaceAllLiteralString(text, d.token)
	}
	return text
}

// ScanAll scans every element of values and returns a new slice
func (s *Scanner) ScanAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = s.Scan(v)
	}
	return out
}

// Findings returns the entity names detected in text, in detector order
func (s *Scanner) Findings(text string) []string {
	if text == "" || !candidate.MatchString(text) {
		return nil
	}

	var found []string
	for _, d := range detectors {
		if d.expr.MatchString(text) {
			found = append(found, d.entity)
			text = d.expr.ReplaceAllLiteralString(text, d.token)
		}
	}
	return found
}
