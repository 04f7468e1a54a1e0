package twofa

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrTwoFADisabled is returned when an operation requires an enabled
// 2FA method but the record is disabled.
var ErrTwoFADisabled = errors.New("two-factor method is disabled")

// ErrTwoFANotFound indicates no 2FA record of the requested type exists.
type ErrTwoFANotFound struct {
	LoginID       uuid.UUID
	TwoFactorType string
}

func (e ErrTwoFANotFound) Error() string {
	return fmt.Sprintf("no %s two-factor method found for login %s", e.TwoFactorType, e.LoginID)
}

// ErrTwoFAAlreadyExists indicates a 2FA record of the requested type is
// already registered for the login.
type ErrTwoFAAlreadyExists struct {
	LoginID       uuid.UUID
	TwoFactorType string
}

func (e ErrTwoFAAlreadyExists) Error() string {
	return fmt.Sprintf("%s two-factor method already exists for login %s", e.TwoFactorType, e.LoginID)
}
