package policy

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/tendant/simple-cred/pkg/strength"
)

// Checker evaluates candidate passwords against a PasswordPolicy.
type Checker struct {
	policy          *PasswordPolicy
	commonPasswords map[string]bool
	now             func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithCommonPasswords overrides the built-in common password dictionary.
func WithCommonPasswords(passwords map[string]bool) Option {
	return func(c *Checker) {
		c.commonPasswords = passwords
	}
}

// NewChecker creates a policy checker. A nil policy falls back to
// DefaultPasswordPolicy.
func NewChecker(policy *PasswordPolicy, opts ...Option) *Checker {
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}

	c := &Checker{
		policy: policy,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.commonPasswords == nil {
		c.commonPasswords = defaultCommonPasswords()
	}

	return c
}

// Policy returns the password policy this checker enforces.
func (c *Checker) Policy() *PasswordPolicy {
	return c.policy
}

// Validate runs the synchronous requirement checks and the strength scorer
// for a candidate password. The reused flag comes from the caller when the
// asynchronous reuse check has already resolved; pass nil when unknown and
// the NotReused requirement is reported as satisfied until merged.
// Validate is pure given its inputs and safe for concurrent use.
func (c *Checker) Validate(password string, reused *bool) ValidationResult {
	reqs := Requirements{
		MinLength:      len(password) >= c.policy.MinLength,
		Uppercase:      !c.policy.RequireUppercase || containsClass(password, unicode.IsUpper),
		Lowercase:      !c.policy.RequireLowercase || containsClass(password, unicode.IsLower),
		Number:         !c.policy.RequireNumber || containsClass(password, unicode.IsDigit),
		Special:        !c.policy.RequireSpecial || containsSpecial(password),
		NotCommon:      !c.policy.DisallowCommonPwds || !c.isCommonPassword(password),
		NotReused:      true,
		NotCompromised: true,
	}
	if c.policy.HistoryDepth > 0 && reused != nil {
		reqs.NotReused = !*reused
	}

	scored := strength.Evaluate(password)

	result := ValidationResult{
		Score:        scored.Score,
		Requirements: reqs,
		Suggestions:  c.suggestions(reqs, scored),
		EvaluatedAt:  c.now(),
	}
	result.IsValid = reqs.Satisfied() >= MinSatisfied && scored.Score >= MinScore

	return result
}

// suggestions inspects the unmet requirements and appends strength-tier
// advice when the password is still weak or fair.
func (c *Checker) suggestions(reqs Requirements, scored strength.Result) []string {
	var out []string

	if !reqs.MinLength {
		out = append(out, fmt.Sprintf("Use at least %d characters", c.policy.MinLength))
	}
	if !reqs.Uppercase {
		out = append(out, "Add an uppercase letter")
	}
	if !reqs.Lowercase {
		out = append(out, "Add a lowercase letter")
	}
	if !reqs.Number {
		out = append(out, "Add a number")
	}
	if !reqs.Special {
		out = append(out, "Add a special character")
	}
	if !reqs.NotCommon {
		out = append(out, "Avoid commonly used passwords")
	}
	if !reqs.NotReused {
		out = append(out, "Choose a password you have not used recently")
	}
	if !reqs.NotCompromised {
		out = append(out, "This password appeared in a known data breach")
	}

	if scored.Label <= strength.Fair {
		out = append(out, scored.Feedback...)
	}

	return out
}

func (c *Checker) isCommonPassword(password string) bool {
	return c.commonPasswords[strings.ToLower(password)]
}

func containsClass(password string, class func(rune) bool) bool {
	for _, r := range password {
		if class(r) {
			return true
		}
	}
	return false
}

func containsSpecial(password string) bool {
	for _, r := range password {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || r == ' ' {
			return true
		}
	}
	return false
}

// defaultCommonPasswords returns a small built-in set. Production callers
// load a larger list through WithCommonPasswords.
func defaultCommonPasswords() map[string]bool {
	commonPwds := []string{
		"password", "123456", "12345678", "qwerty", "admin",
		"welcome", "login", "abc123", "letmein", "monkey",
		"iloveyou", "dragon", "sunshine", "princess", "football",
		"password1", "password123", "qwerty123", "111111", "123123",
	}

	result := make(map[string]bool, len(commonPwds))
	for _, pwd := range commonPwds {
		result[pwd] = true
	}
	return result
}
