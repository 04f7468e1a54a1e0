// Package main walks the whole credential-security engine end to end with
// in-memory wiring: live password validation with async breach/reuse merging,
// two-factor passcode exchange, a gated recovery flow, and an authenticated
// change behind the session guard. No database or SMTP server is required;
// notifications land in a mock notifier and the change endpoint is faked
// in-process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-cred/auth"
	"github.com/tendant/simple-cred/pkg/breach"
	"github.com/tendant/simple-cred/pkg/change"
	"github.com/tendant/simple-cred/pkg/checker"
	"github.com/tendant/simple-cred/pkg/guard"
	"github.com/tendant/simple-cred/pkg/notification"
	"github.com/tendant/simple-cred/pkg/policy"
	"github.com/tendant/simple-cred/pkg/recovery"
	"github.com/tendant/simple-cred/pkg/reuse"
	"github.com/tendant/simple-cred/pkg/twofa"
)

type Config struct {
	JwtSecret    string `env:"JWT_SECRET" env-default:"demo-secret-change-in-production"`
	DemoEmail    string `env:"DEMO_EMAIL" env-default:"demo@example.com"`
	ResetBaseURL string `env:"RESET_BASE_URL" env-default:"http://localhost:3000/reset"`
	BreachCheck  bool   `env:"BREACH_CHECK" env-default:"false"`
}

// fakeChangeClient stands in for the external credential-change endpoint.
type fakeChangeClient struct{}

func (fakeChangeClient) ChangePassword(ctx context.Context, req change.ChangeRequest) (change.ChangeResponse, error) {
	if req.CurrentPassword != "OldSecret1!" {
		return change.ChangeResponse{StatusCode: 401}, nil
	}
	return change.ChangeResponse{StatusCode: 200}, nil
}

// twofaChangeAdapter exposes the passcode service through the orchestrator's
// TwoFactorClient interface.
type twofaChangeAdapter struct {
	service *twofa.TwoFaService
	email   string
}

func (a twofaChangeAdapter) SendCode(ctx context.Context, userID string) error {
	loginID, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	return a.service.SendPasscodeEmail(ctx, loginID, a.email)
}

func (a twofaChangeAdapter) VerifyCode(ctx context.Context, userID, code string) (bool, error) {
	loginID, err := uuid.Parse(userID)
	if err != nil {
		return false, err
	}
	return a.service.ValidatePasscode(ctx, loginID, code)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	mock := notification.NewMockNotifier()
	manager, err := buildNotificationManager(mock)
	if err != nil {
		slog.Error("Failed to build notification manager", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	runValidationDemo(ctx, config)
	passcode, twofaService, loginID := runTwofaDemo(ctx, manager, mock, config)
	runRecoveryDemo(ctx, manager, mock, config)
	runChangeDemo(ctx, config, twofaService, loginID, passcode)
}

func buildNotificationManager(mock *notification.MockNotifier) (*notification.NotificationManager, error) {
	manager, err := notification.NewNotificationManager(notification.WithMockNotifier(mock))
	if err != nil {
		return nil, err
	}
	err = manager.RegisterNotification(notification.PasswordRecoveryNotification, notification.MockSystem, notification.Template{
		Subject: "Reset your password",
		Body:    "Use this link to reset your password: {{.Link}}",
	})
	if err != nil {
		return nil, err
	}
	err = manager.RegisterNotification(notification.TwoFactorCodeNotification, notification.MockSystem, notification.Template{
		Subject: "Your verification code",
		Body:    "Your code is {{.TwofaPasscode}}. It expires in a few minutes.",
	})
	if err != nil {
		return nil, err
	}
	return manager, nil
}

func runValidationDemo(ctx context.Context, config Config) {
	fmt.Println("\n--- Password validation ---")

	hasher := reuse.NewBcryptHasher()
	oldHash, err := hasher.Hash("MyOldPassword1!")
	if err != nil {
		slog.Error("Failed to hash history entry", "err", err)
		return
	}

	merged := make(chan checker.Snapshot, 8)
	opts := []checker.SessionOption{
		checker.WithReuseChecker(reuse.NewChecker(hasher)),
		checker.WithHistory([]string{oldHash}),
		checker.WithOnUpdate(func(snap checker.Snapshot) { merged <- snap }),
	}
	if config.BreachCheck {
		opts = append(opts, checker.WithBreachChecker(breach.NewClient()))
	}

	session := checker.NewSession(policy.NewChecker(policy.DefaultPasswordPolicy()), opts...)
	defer session.Close()

	for _, candidate := range []string{"password123", "MyOldPassword1!", "Xk9$mP2!vLq7#wRt"} {
		snap := session.Update(ctx, candidate)
		fmt.Printf("%-20s score=%-3d label=%-12s valid=%v\n", candidate, snap.Score, snap.Label, snap.IsValid)
		for _, suggestion := range snap.Suggestions {
			fmt.Printf("  - %s\n", suggestion)
		}
		drainMerges(merged, candidate)
	}
}

func drainMerges(merged chan checker.Snapshot, input string) {
	for {
		select {
		case snap := <-merged:
			if snap.Input != input {
				continue
			}
			fmt.Printf("  async merge: breach=%s reused=%v valid=%v\n", snap.BreachStatus, snap.Reused, snap.IsValid)
		case <-time.After(300 * time.Millisecond):
			return
		}
	}
}

func runTwofaDemo(ctx context.Context, manager *notification.NotificationManager, mock *notification.MockNotifier, config Config) (string, *twofa.TwoFaService, uuid.UUID) {
	fmt.Println("\n--- Two-factor passcodes ---")

	service := twofa.NewTwoFaService(twofa.NewInMemTwoFARepository(),
		twofa.WithNotificationManager(manager),
		twofa.WithDeliverySystem(notification.MockSystem))

	loginID := uuid.New()
	if err := service.EnableTwoFactor(ctx, loginID, twofa.TwoFactorTypeEmail); err != nil {
		slog.Error("Failed to enable 2FA", "err", err)
		return "", service, loginID
	}
	if err := service.SendPasscodeEmail(ctx, loginID, config.DemoEmail); err != nil {
		slog.Error("Failed to send passcode", "err", err)
		return "", service, loginID
	}

	sent := mock.Sent()
	passcode := sent[len(sent)-1].Data["TwofaPasscode"]
	fmt.Printf("passcode delivered to %s: %s\n", config.DemoEmail, passcode)

	valid, err := service.ValidatePasscode(ctx, loginID, passcode)
	if err != nil {
		slog.Error("Failed to validate passcode", "err", err)
		return passcode, service, loginID
	}
	fmt.Printf("passcode validates: %v\n", valid)
	return passcode, service, loginID
}

func runRecoveryDemo(ctx context.Context, manager *notification.NotificationManager, mock *notification.MockNotifier, config Config) {
	fmt.Println("\n--- Recovery flow ---")

	sender := recovery.NewNotificationSender(manager, notification.MockSystem, config.ResetBaseURL)
	cfg := recovery.DefaultConfig()
	cfg.BaseDelay = 10 * time.Millisecond
	cfg.DeliveryStep = 10 * time.Millisecond

	service, err := recovery.NewService(cfg, sender)
	if err != nil {
		slog.Error("Failed to build recovery service", "err", err)
		return
	}
	defer service.Close()

	// A bot fills the hidden field: rejected without touching the window.
	result, _ := service.Submit(ctx, config.DemoEmail, "bot-filled-this")
	fmt.Printf("honeypot submit: state=%s\n", result.State)

	for i := 0; i < 6; i++ {
		result, err = service.Submit(ctx, config.DemoEmail, "")
		if err != nil {
			slog.Error("Recovery submit failed", "err", err)
			return
		}
		fmt.Printf("submit %d: state=%-10s captcha=%-5v remaining=%d\n",
			i+1, result.State, result.CaptchaRequired, result.AttemptsRemaining)
	}
	fmt.Printf("cooldown until: %s\n", result.CooldownUntil.Format(time.Kitchen))
	fmt.Printf("emails delivered to mock notifier: %d\n", len(mock.Sent()))
}

func runChangeDemo(ctx context.Context, config Config, twofaService *twofa.TwoFaService, loginID uuid.UUID, passcode string) {
	fmt.Println("\n--- Authenticated change ---")

	jwtSvc := auth.NewJwtServiceOptions(config.JwtSecret)
	token, err := jwtSvc.CreateAccessToken(map[string]interface{}{"login_id": loginID.String()})
	if err != nil {
		slog.Error("Failed to create session token", "err", err)
		return
	}

	sessionGuard, err := guard.NewGuard(guard.DefaultConfig(), jwtSvc,
		guard.WithLogoutCallback(func() { fmt.Println("logout fired") }))
	if err != nil {
		slog.Error("Failed to build session guard", "err", err)
		return
	}
	if err := sessionGuard.Start(token.Token); err != nil {
		slog.Error("Session rejected", "err", err)
		return
	}

	orchestrator, err := change.NewOrchestrator(change.DefaultConfig(), fakeChangeClient{},
		change.WithTwoFactorClient(twofaChangeAdapter{service: twofaService, email: config.DemoEmail}),
		change.WithSessionValidator(func() bool { return sessionGuard.Allow() == nil }),
		change.WithSessionInvalidCallback(func() { fmt.Println("session invalid, re-authentication required") }))
	if err != nil {
		slog.Error("Failed to build orchestrator", "err", err)
		return
	}
	defer orchestrator.Close()

	// Preconditions reject locally before anything is dispatched.
	result, _ := orchestrator.Submit(ctx, change.ChangeRequest{
		UserID:          loginID.String(),
		CurrentPassword: "OldSecret1!",
		NewPassword:     "NewSecret2@",
		ConfirmPassword: "does-not-match",
		TwoFactorCode:   passcode,
	})
	fmt.Printf("mismatched confirmation: outcome=%s fields=%v\n", result.Outcome, result.FieldErrors)

	if err := orchestrator.SendChallenge(ctx, loginID.String()); err != nil {
		slog.Error("Challenge send failed", "err", err)
		return
	}
	verified, err := orchestrator.VerifyChallenge(ctx, loginID.String(), passcode)
	if err != nil {
		slog.Error("Challenge verification failed", "err", err)
		return
	}
	fmt.Printf("challenge verified: %v (state=%s)\n", verified, orchestrator.Challenge())

	result, err = orchestrator.Submit(ctx, change.ChangeRequest{
		UserID:          loginID.String(),
		CurrentPassword: "OldSecret1!",
		NewPassword:     "NewSecret2@",
		ConfirmPassword: "NewSecret2@",
		TwoFactorCode:   passcode,
	})
	if err != nil {
		slog.Error("Change submit failed", "err", err)
		return
	}
	fmt.Printf("change submit: outcome=%s\n", result.Outcome)
}
