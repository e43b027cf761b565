package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/tour-auth/pkg/domain"
)

// MemoryAccountsRepository keeps accounts in process memory.
// Records are copied on every read and write.
type MemoryAccountsRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
}

// NewMemoryAccountsRepository creates an empty in-memory repository.
func NewMemoryAccountsRepository() *MemoryAccountsRepository {
	return &MemoryAccountsRepository{accounts: make(map[uuid.UUID]*domain.Account)}
}

// Create inserts a new account.
func (r *MemoryAccountsRepository) Create(ctx context.Context, acct *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(acct); err != nil {
		return err
	}
	r.accounts[acct.ID] = cloneAccount(acct)
	return nil
}

// GetByID retrieves an account by ID.
func (r *MemoryAccountsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(acct), nil
}

// GetByEmail retrieves an account by email regardless of active state.
func (r *MemoryAccountsRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool {
		return strings.EqualFold(a.Email, email)
	})
}

// GetActiveByEmail retrieves an active account by email.
func (r *MemoryAccountsRepository) GetActiveByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool {
		return a.Active && strings.EqualFold(a.Email, email)
	})
}

// GetByGoogleID retrieves an account by its linked Google subject.
func (r *MemoryAccountsRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool {
		return a.GoogleID != nil && *a.GoogleID == googleID
	})
}

// Update replaces the stored account.
func (r *MemoryAccountsRepository) Update(ctx context.Context, acct *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[acct.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	if err := r.checkUnique(acct); err != nil {
		return err
	}
	r.accounts[acct.ID] = cloneAccount(acct)
	return nil
}

func (r *MemoryAccountsRepository) find(match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, acct := range r.accounts {
		if match(acct) {
			return cloneAccount(acct), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

// checkUnique must be called with the write lock held.
func (r *MemoryAccountsRepository) checkUnique(acct *domain.Account) error {
	for id, other := range r.accounts {
		if id == acct.ID {
			continue
		}
		if strings.EqualFold(other.Email, acct.Email) {
			return domain.ErrDuplicateEmail
		}
		if acct.GoogleID != nil && other.GoogleID != nil && *acct.GoogleID == *other.GoogleID {
			return domain.ErrIdentityConflict
		}
	}
	return nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.PasswordHash = cloneString(a.PasswordHash)
	c.GoogleID = cloneString(a.GoogleID)
	c.EmailVerificationOTP.ExpiresAt = cloneTime(a.EmailVerificationOTP.ExpiresAt)
	c.PasswordResetOTP.ExpiresAt = cloneTime(a.PasswordResetOTP.ExpiresAt)
	c.OTPBlockedUntil = cloneTime(a.OTPBlockedUntil)
	c.PasswordChangedAt = cloneTime(a.PasswordChangedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
