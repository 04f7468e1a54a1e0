package policy

import (
	"fmt"
	"time"
)

// PasswordPolicy defines the requirements for password complexity.
// A policy is immutable configuration supplied by the caller; the recovery
// and authenticated-change contexts may each carry their own.
type PasswordPolicy struct {
	MinLength          int  `json:"min_length"`
	RequireUppercase   bool `json:"require_uppercase"`
	RequireLowercase   bool `json:"require_lowercase"`
	RequireNumber      bool `json:"require_number"`
	RequireSpecial     bool `json:"require_special"`
	DisallowCommonPwds bool `json:"disallow_common_pwds"`
	HistoryDepth       int  `json:"history_depth"`
}

// DefaultPasswordPolicy returns a password policy with secure defaults.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:          8,
		RequireUppercase:   true,
		RequireLowercase:   true,
		RequireNumber:      true,
		RequireSpecial:     true,
		DisallowCommonPwds: true,
		HistoryDepth:       5,
	}
}

// Validate checks if the policy is internally consistent.
func (p *PasswordPolicy) Validate() error {
	if p.MinLength < 1 {
		return fmt.Errorf("min_length must be at least 1, got %d", p.MinLength)
	}
	if p.HistoryDepth < 0 {
		return fmt.Errorf("history_depth must be non-negative, got %d", p.HistoryDepth)
	}
	return nil
}

// Requirements is the per-policy requirement checklist. A requirement the
// policy does not ask for is reported as satisfied, so relaxed policies are
// not penalized. NotReused and NotCompromised start satisfied and are merged
// in asynchronously by the validation session.
type Requirements struct {
	MinLength      bool `json:"min_length"`
	Uppercase      bool `json:"uppercase"`
	Lowercase      bool `json:"lowercase"`
	Number         bool `json:"number"`
	Special        bool `json:"special"`
	NotCommon      bool `json:"not_common"`
	NotReused      bool `json:"not_reused"`
	NotCompromised bool `json:"not_compromised"`
}

// Satisfied returns how many of the eight requirement flags are true.
func (r Requirements) Satisfied() int {
	count := 0
	for _, ok := range []bool{
		r.MinLength, r.Uppercase, r.Lowercase, r.Number,
		r.Special, r.NotCommon, r.NotReused, r.NotCompromised,
	} {
		if ok {
			count++
		}
	}
	return count
}

// TotalRequirements is the number of flags in the Requirements checklist.
const TotalRequirements = 8

// MinSatisfied is the supermajority of requirement flags needed for a
// password to validate.
const MinSatisfied = 7

// MinScore is the strength score floor a password must clear regardless of
// how many requirement flags pass. The dual gate keeps a long but
// low-entropy password from validating on length alone.
const MinScore = 45

// ValidationResult is the merged outcome of policy validation plus the
// asynchronous reuse and breach checks. It is recomputed for every input
// change and never cached beyond the current input.
type ValidationResult struct {
	IsValid      bool         `json:"is_valid"`
	Score        int          `json:"score"`
	Requirements Requirements `json:"requirements"`
	Suggestions  []string     `json:"suggestions,omitempty"`

	// EvaluatedAt records when this result was computed; callers may use it
	// to order results from interleaved validations.
	EvaluatedAt time.Time `json:"evaluated_at"`
}
