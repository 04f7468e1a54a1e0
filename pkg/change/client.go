package change

import (
	"context"
	"net/http"
)

// ChangeRequest is the outbound credential-change call.
type ChangeRequest struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
	TwoFactorCode   string
}

// ChangeResponse carries the credential-change endpoint's verdict. Message
// is optional server-provided text surfaced on failures.
type ChangeResponse struct {
	StatusCode int
	Message    string
}

// Client dispatches credential changes to the external account store.
type Client interface {
	ChangePassword(ctx context.Context, req ChangeRequest) (ChangeResponse, error)
}

// TwoFactorClient sends and verifies second-factor challenges, keyed by an
// opaque user identifier.
type TwoFactorClient interface {
	SendCode(ctx context.Context, userID string) error
	VerifyCode(ctx context.Context, userID, code string) (bool, error)
}

func isSuccessStatus(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
