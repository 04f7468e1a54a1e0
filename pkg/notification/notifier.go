package notification

// NotificationSystem represents a delivery channel (e.g., email, mock).
type NotificationSystem string

// NotificationType represents a kind of notification (e.g., "password_recovery").
type NotificationType string

const (
	EmailSystem NotificationSystem = "email"
	MockSystem  NotificationSystem = "mock"

	PasswordRecoveryNotification NotificationType = "password_recovery"
	TwoFactorCodeNotification    NotificationType = "two_factor_code"
)

// NotificationData carries one rendered notification to a recipient.
type NotificationData struct {
	To      string            // Recipient identifier (e.g., email address)
	Subject string            // Optional: subject for notifications like email
	Body    string            // The content or message to send
	Data    map[string]string // Template values and channel metadata
}

// Notifier sends a rendered notification over one delivery channel.
type Notifier interface {
	Send(notificationType NotificationType, notification NotificationData) error
}
