package reuse

import (
	"context"
	"log/slog"
)

// Checker tests a candidate password against a history of prior password
// hashes. The history arrives already hashed; this component never receives
// plaintext history.
type Checker struct {
	hasher PasswordHasher
}

// NewChecker creates a reuse checker. A nil hasher falls back to bcrypt.
func NewChecker(hasher PasswordHasher) *Checker {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	return &Checker{hasher: hasher}
}

// WasRecentlyUsed reports whether the candidate matches any entry in the
// supplied history. A verification error on one entry is logged and the scan
// continues; the remaining entries still get checked.
func (c *Checker) WasRecentlyUsed(ctx context.Context, password string, history []string) (bool, error) {
	if password == "" || len(history) == 0 {
		return false, nil
	}

	for _, entry := range history {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		match, err := c.hasher.Verify(password, entry)
		if err != nil {
			slog.Error("Error checking password history entry", "err", err)
			continue
		}
		if match {
			return true, nil
		}
	}

	return false, nil
}
