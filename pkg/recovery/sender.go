package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/tendant/simple-cred/pkg/notification"
	"github.com/tendant/simple-cred/pkg/utils"
)

// SubmitRequest is the outbound recovery submission.
type SubmitRequest struct {
	RequestID uuid.UUID
	Email     string
	Timestamp time.Time
	Metadata  map[string]string
}

// SubmitResponse is what the recovery service reports back. The message must
// never reveal whether the email corresponds to a real account.
type SubmitResponse struct {
	Success bool
	Message string

	// AttemptsRemaining and ResetTime are optional rate-limit info from the
	// service. A non-nil ResetTime overrides the local cooldown unless it
	// would shorten one already in effect.
	AttemptsRemaining *int
	ResetTime         *time.Time

	// EstimatedDeliveryMinutes feeds the delivery-status progression.
	EstimatedDeliveryMinutes *int
}

// Sender dispatches a recovery submission to the recovery service.
type Sender interface {
	SendRecovery(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
}

const recoveryTokenLength = 32

// NotificationSender fulfils recovery submissions by emailing a recovery
// token through the notification layer. It stands in for a remote recovery
// endpoint in single-process deployments and demos.
type NotificationSender struct {
	manager *notification.NotificationManager
	system  notification.NotificationSystem
	baseURL string
}

// NewNotificationSender creates a sender that delivers recovery tokens via
// the given notification system. baseURL is the reset-link prefix embedded
// in the email body.
func NewNotificationSender(manager *notification.NotificationManager, system notification.NotificationSystem, baseURL string) *NotificationSender {
	return &NotificationSender{
		manager: manager,
		system:  system,
		baseURL: baseURL,
	}
}

// SendRecovery generates a recovery token and emails it to the requested
// address. The response is identical whether or not the address is known.
func (s *NotificationSender) SendRecovery(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	if err := ctx.Err(); err != nil {
		return SubmitResponse{}, err
	}

	token := utils.GenerateRandomString(recoveryTokenLength)

	err := s.manager.Send(notification.PasswordRecoveryNotification, s.system, notification.NotificationData{
		To: req.Email,
		Data: map[string]string{
			"Link":      fmt.Sprintf("%s/%s", s.baseURL, token),
			"RequestId": req.RequestID.String(),
		},
	})
	if err != nil {
		slog.Error("Failed to send recovery email", "email", utils.MaskEmail(req.Email), "err", err)
		return SubmitResponse{}, fmt.Errorf("failed to send recovery email: %w", err)
	}

	slog.Info("Recovery email queued", "email", utils.MaskEmail(req.Email), "requestId", req.RequestID)
	estimated := 1
	return SubmitResponse{
		Success:                  true,
		Message:                  NeutralSuccessMessage,
		EstimatedDeliveryMinutes: &estimated,
	}, nil
}
