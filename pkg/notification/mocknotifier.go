package notification

import "sync"

// MockNotifier records notifications instead of delivering them.
type MockNotifier struct {
	mu                sync.Mutex
	SentNotifications []NotificationData
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Send(notificationType NotificationType, notification NotificationData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentNotifications = append(m.SentNotifications, notification)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (m *MockNotifier) Sent() []NotificationData {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NotificationData, len(m.SentNotifications))
	copy(out, m.SentNotifications)
	return out
}
