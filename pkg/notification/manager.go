package notification

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template holds the subject and body templates for one notification type on
// one delivery system. Bodies are text/template strings rendered with
// NotificationData.Data.
type Template struct {
	Subject string
	Body    string
}

// NotificationManager manages notifiers and notification templates.
type NotificationManager struct {
	notifiers map[NotificationSystem]Notifier
	registry  map[NotificationType]map[NotificationSystem]Template
}

// NewNotificationManager creates and returns a new NotificationManager.
func NewNotificationManager(opts ...NotificationManagerOption) (*NotificationManager, error) {
	nm := &NotificationManager{
		notifiers: make(map[NotificationSystem]Notifier),
		registry:  make(map[NotificationType]map[NotificationSystem]Template),
	}

	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}

	return nm, nil
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds a notification template to the registry.
func (nm *NotificationManager) RegisterNotification(notifType NotificationType, system NotificationSystem, tmpl Template) error {
	if notifType == "" || system == "" || tmpl.Body == "" {
		return fmt.Errorf("invalid input: notification type, system, and body cannot be empty")
	}

	if _, exists := nm.registry[notifType]; !exists {
		nm.registry[notifType] = make(map[NotificationSystem]Template)
	}
	nm.registry[notifType][system] = tmpl
	return nil
}

// Send renders the registered template for the notification type and system
// and hands it to the matching notifier.
func (nm *NotificationManager) Send(notifType NotificationType, system NotificationSystem, notification NotificationData) error {
	systemTemplates, exists := nm.registry[notifType]
	if !exists {
		return fmt.Errorf("no templates registered for notification type: %s", notifType)
	}

	tmpl, exists := systemTemplates[system]
	if !exists {
		return fmt.Errorf("no template registered for system: %s under notification type: %s", system, notifType)
	}

	notifier, exists := nm.notifiers[system]
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}

	body, err := renderTemplate(tmpl.Body, notification.Data)
	if err != nil {
		return fmt.Errorf("failed to render body template: %w", err)
	}
	notification.Body = body

	if notification.Subject == "" {
		notification.Subject = tmpl.Subject
	}

	return notifier.Send(notifType, notification)
}

func renderTemplate(tmplText string, data map[string]string) (string, error) {
	tmpl, err := template.New("notification").Parse(tmplText)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NotificationManagerOption is a function that configures a NotificationManager.
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration.
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithMockNotifier adds an in-memory notifier, for tests and demos.
func WithMockNotifier(mock *MockNotifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(MockSystem, mock)
		return nil
	}
}
