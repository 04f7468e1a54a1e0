package twofa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tendant/simple-cred/pkg/notification"
	"golang.org/x/exp/slog"
)

const (
	// TwoFactorTypeEmail delivers passcodes over email.
	TwoFactorTypeEmail = "email"

	// PERIOD is the passcode validity window in seconds. Email delivery
	// is slow, so the window is much wider than an authenticator app's.
	PERIOD = 300

	// SKEW is the number of adjacent periods accepted during validation.
	SKEW = 1
)

// TwoFactorService manages second-factor enrollment and passcode exchange.
type TwoFactorService interface {
	EnableTwoFactor(ctx context.Context, loginID uuid.UUID, twoFactorType string) error
	DisableTwoFactor(ctx context.Context, loginID uuid.UUID, twoFactorType string) error
	FindEnabledTwoFAs(ctx context.Context, loginID uuid.UUID) ([]string, error)
	SendPasscodeEmail(ctx context.Context, loginID uuid.UUID, email string) error
	ValidatePasscode(ctx context.Context, loginID uuid.UUID, passcode string) (bool, error)
}

// TwoFaService implements TwoFactorService on top of a TwoFARepository.
type TwoFaService struct {
	repository          TwoFARepository
	notificationManager *notification.NotificationManager
	deliverySystem      notification.NotificationSystem
	issuer              string
	now                 func() time.Time
}

// TwoFaServiceOption configures a TwoFaService.
type TwoFaServiceOption func(*TwoFaService)

// WithNotificationManager sets the notification manager used for passcode delivery.
func WithNotificationManager(manager *notification.NotificationManager) TwoFaServiceOption {
	return func(s *TwoFaService) {
		s.notificationManager = manager
	}
}

// WithDeliverySystem sets the notification system used for passcode delivery.
func WithDeliverySystem(system notification.NotificationSystem) TwoFaServiceOption {
	return func(s *TwoFaService) {
		s.deliverySystem = system
	}
}

// WithIssuer sets the issuer name embedded in generated TOTP secrets.
func WithIssuer(issuer string) TwoFaServiceOption {
	return func(s *TwoFaService) {
		s.issuer = issuer
	}
}

// NewTwoFaService creates a TwoFaService backed by the given repository.
func NewTwoFaService(repository TwoFARepository, opts ...TwoFaServiceOption) *TwoFaService {
	service := &TwoFaService{
		repository:     repository,
		deliverySystem: notification.EmailSystem,
		issuer:         "simple-cred",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// EnableTwoFactor enrolls a login in the given 2FA type, generating a new
// secret when no record exists yet.
func (s *TwoFaService) EnableTwoFactor(ctx context.Context, loginID uuid.UUID, twoFactorType string) error {
	_, err := s.repository.Get2FAByLoginID(ctx, loginID, twoFactorType)
	if err == nil {
		return s.repository.Enable2FA(ctx, loginID, twoFactorType)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: loginID.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to generate 2FA secret: %w", err)
	}

	_, err = s.repository.Create2FA(ctx, Create2FAParams{
		LoginID:         loginID,
		TwoFactorSecret: key.Secret(),
		TwoFactorType:   twoFactorType,
		Enabled:         true,
	})
	if err != nil {
		return fmt.Errorf("failed to create 2FA record: %w", err)
	}
	return nil
}

// DisableTwoFactor turns off the given 2FA type for a login.
func (s *TwoFaService) DisableTwoFactor(ctx context.Context, loginID uuid.UUID, twoFactorType string) error {
	return s.repository.Disable2FA(ctx, loginID, twoFactorType)
}

// FindEnabledTwoFAs returns the types of all enabled 2FA methods for a login.
func (s *TwoFaService) FindEnabledTwoFAs(ctx context.Context, loginID uuid.UUID) ([]string, error) {
	entities, err := s.repository.FindEnabledTwoFAs(ctx, loginID)
	if err != nil {
		return nil, fmt.Errorf("failed to find enabled 2FA methods: %w", err)
	}
	types := make([]string, 0, len(entities))
	for _, entity := range entities {
		types = append(types, entity.TwoFactorType)
	}
	return types, nil
}

// SendPasscodeEmail generates the current passcode for a login's email 2FA
// method and delivers it through the notification manager.
func (s *TwoFaService) SendPasscodeEmail(ctx context.Context, loginID uuid.UUID, email string) error {
	entity, err := s.repository.Get2FAByLoginID(ctx, loginID, TwoFactorTypeEmail)
	if err != nil {
		return err
	}
	if !entity.TwoFactorEnabled {
		return ErrTwoFADisabled
	}

	passcode, err := s.generatePasscode(entity.TwoFactorSecret)
	if err != nil {
		slog.Error("Failed to generate 2FA passcode", "loginID", loginID, "err", err)
		return fmt.Errorf("failed to generate passcode: %w", err)
	}

	if s.notificationManager == nil {
		return fmt.Errorf("no notification manager configured")
	}

	err = s.notificationManager.Send(notification.TwoFactorCodeNotification, s.deliverySystem, notification.NotificationData{
		To: email,
		Data: map[string]string{
			"TwofaPasscode": passcode,
			"UserId":        loginID.String(),
		},
	})
	if err != nil {
		slog.Error("Failed to send 2FA passcode email", "loginID", loginID, "err", err)
		return fmt.Errorf("failed to send passcode email: %w", err)
	}
	return nil
}

// ValidatePasscode checks a submitted passcode against the login's email 2FA
// secret for the current validation window.
func (s *TwoFaService) ValidatePasscode(ctx context.Context, loginID uuid.UUID, passcode string) (bool, error) {
	entity, err := s.repository.Get2FAByLoginID(ctx, loginID, TwoFactorTypeEmail)
	if err != nil {
		return false, err
	}
	if !entity.TwoFactorEnabled {
		return false, ErrTwoFADisabled
	}

	valid, err := totp.ValidateCustom(passcode, entity.TwoFactorSecret, s.now().UTC(), totp.ValidateOpts{
		Period:    PERIOD,
		Skew:      SKEW,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate passcode: %w", err)
	}
	return valid, nil
}

func (s *TwoFaService) generatePasscode(secret string) (string, error) {
	return totp.GenerateCodeCustom(secret, s.now().UTC(), totp.ValidateOpts{
		Period:    PERIOD,
		Skew:      SKEW,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
