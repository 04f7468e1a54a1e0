package twofa

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TwoFAEntity represents a two-factor enrollment for one login.
type TwoFAEntity struct {
	ID               uuid.UUID
	LoginID          uuid.UUID
	TwoFactorSecret  string
	TwoFactorType    string
	TwoFactorEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Create2FAParams represents parameters for creating a 2FA record.
type Create2FAParams struct {
	LoginID         uuid.UUID
	TwoFactorSecret string
	TwoFactorType   string
	Enabled         bool
}

// TwoFARepository defines the interface for 2FA secret storage. Secrets live
// only for the duration of a session unless the caller plugs in something
// longer-lived.
type TwoFARepository interface {
	Create2FA(ctx context.Context, params Create2FAParams) (uuid.UUID, error)
	Get2FAByLoginID(ctx context.Context, loginID uuid.UUID, twoFactorType string) (TwoFAEntity, error)
	Enable2FA(ctx context.Context, loginID uuid.UUID, twoFactorType string) error
	Disable2FA(ctx context.Context, loginID uuid.UUID, twoFactorType string) error
	FindEnabledTwoFAs(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error)
}

// InMemTwoFARepository implements TwoFARepository with an in-memory map.
type InMemTwoFARepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]TwoFAEntity
	now     func() time.Time
}

// NewInMemTwoFARepository creates an empty in-memory 2FA repository.
func NewInMemTwoFARepository() *InMemTwoFARepository {
	return &InMemTwoFARepository{
		records: make(map[uuid.UUID][]TwoFAEntity),
		now:     time.Now,
	}
}

// Create2FA creates a new 2FA record for a login.
func (r *InMemTwoFARepository) Create2FA(ctx context.Context, params Create2FAParams) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entity := range r.records[params.LoginID] {
		if entity.TwoFactorType == params.TwoFactorType {
			return uuid.Nil, ErrTwoFAAlreadyExists{LoginID: params.LoginID, TwoFactorType: params.TwoFactorType}
		}
	}

	now := r.now()
	entity := TwoFAEntity{
		ID:               uuid.New(),
		LoginID:          params.LoginID,
		TwoFactorSecret:  params.TwoFactorSecret,
		TwoFactorType:    params.TwoFactorType,
		TwoFactorEnabled: params.Enabled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.records[params.LoginID] = append(r.records[params.LoginID], entity)

	return entity.ID, nil
}

// Get2FAByLoginID returns the 2FA record of the given type for a login.
func (r *InMemTwoFARepository) Get2FAByLoginID(ctx context.Context, loginID uuid.UUID, twoFactorType string) (TwoFAEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entity := range r.records[loginID] {
		if entity.TwoFactorType == twoFactorType {
			return entity, nil
		}
	}
	return TwoFAEntity{}, ErrTwoFANotFound{LoginID: loginID, TwoFactorType: twoFactorType}
}

// Enable2FA marks the record of the given type as enabled.
func (r *InMemTwoFARepository) Enable2FA(ctx context.Context, loginID uuid.UUID, twoFactorType string) error {
	return r.setEnabled(loginID, twoFactorType, true)
}

// Disable2FA marks the record of the given type as disabled.
func (r *InMemTwoFARepository) Disable2FA(ctx context.Context, loginID uuid.UUID, twoFactorType string) error {
	return r.setEnabled(loginID, twoFactorType, false)
}

func (r *InMemTwoFARepository) setEnabled(loginID uuid.UUID, twoFactorType string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entities := r.records[loginID]
	for i := range entities {
		if entities[i].TwoFactorType == twoFactorType {
			entities[i].TwoFactorEnabled = enabled
			entities[i].UpdatedAt = r.now()
			return nil
		}
	}
	return ErrTwoFANotFound{LoginID: loginID, TwoFactorType: twoFactorType}
}

// FindEnabledTwoFAs returns all enabled 2FA records for a login.
func (r *InMemTwoFARepository) FindEnabledTwoFAs(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var enabled []TwoFAEntity
	for _, entity := range r.records[loginID] {
		if entity.TwoFactorEnabled {
			enabled = append(enabled, entity)
		}
	}
	return enabled, nil
}
