package password

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Symbols is the punctuation set accepted by the strength policy.
const Symbols = "!@#$%^&*()-_=+[]{};:'\",.<>/?`~\\|"

var (
	hasUpper = regexp.MustCompile(`[A-Z]`)
	hasLower = regexp.MustCompile(`[a-z]`)
	hasDigit = regexp.MustCompile(`[0-9]`)
)

// PolicyViolation carries every strength rule the candidate password failed.
// Rules are evaluated independently so callers can show all problems at once.
type PolicyViolation struct {
	Violations []string
}

func (e *PolicyViolation) Error() string {
	return "password policy: " + strings.Join(e.Violations, "; ")
}

type policyRule struct {
	message string
	rule    validation.Rule
}

var policyRules = []policyRule{
	{"must be at least 8 characters", validation.Length(8, 0)},
	{"must contain an uppercase letter", validation.Match(hasUpper)},
	{"must contain a lowercase letter", validation.Match(hasLower)},
	{"must contain a digit", validation.Match(hasDigit)},
	{"must contain a symbol", validation.By(containsSymbol)},
}

func containsSymbol(value interface{}) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, Symbols) {
		return nil
	}
	return errors.New("no symbol")
}

// CheckStrength validates the candidate password against the account policy:
// length >= 8, at least one uppercase letter, one lowercase letter, one digit,
// and one symbol from Symbols. Returns a *PolicyViolation naming each failed
// rule, or nil when all rules pass.
func CheckStrength(candidate string) error {
	var violated []string
	if candidate == "" {
		// ozzo rules skip empty values; an empty password violates every rule.
		for _, pr := range policyRules {
			violated = append(violated, pr.message)
		}
		return &PolicyViolation{Violations: violated}
	}
	for _, pr := range policyRules {
		if err := validation.Validate(candidate, pr.rule); err != nil {
			violated = append(violated, pr.message)
		}
	}
	if len(violated) > 0 {
		return &PolicyViolation{Violations: violated}
	}
	return nil
}
