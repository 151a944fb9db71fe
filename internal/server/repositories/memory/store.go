// Package memory keeps accounts, failed logins and tokens in process memory.
// It backs the server when no database DSN is configured and serves as the
// store for service tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/google/uuid"
)

// Store is safe for concurrent use. Each method takes the store lock once,
// so every operation is atomic on its own.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	byEmail  map[string]string
	failures map[string][]time.Time
	tokens   map[string]*models.AccountToken
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*models.Account),
		byEmail:  make(map[string]string),
		failures: make(map[string][]time.Time),
		tokens:   make(map[string]*models.AccountToken),
	}
}

func (s *Store) Accounts() *AccountRepository { return &AccountRepository{s: s} }

func (s *Store) FailedLogins() *FailedLoginRepository { return &FailedLoginRepository{s: s} }

func (s *Store) Tokens() *TokenRepository { return &TokenRepository{s: s} }

type AccountRepository struct{ s *Store }

func (r *AccountRepository) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := strings.ToLower(account.Email)
	if _, ok := r.s.byEmail[key]; ok {
		return nil, common.ErrorAlreadyExists
	}

	account.ID = uuid.NewString()
	account.CreatedAt = time.Now()
	if account.Role == "" {
		account.Role = models.RoleUser
	}

	c := *account
	r.s.accounts[c.ID] = &c
	r.s.byEmail[key] = c.ID
	return account, nil
}

func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyAccount(r.s.accounts[id]), nil
}

func (r *AccountRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyAccount(a), nil
}

func (r *AccountRepository) ExtendLock(_ context.Context, id string, until time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil
	}
	if a.LockedUntil == nil || a.LockedUntil.Before(until) {
		u := until
		a.LockedUntil = &u
	}
	return nil
}

func (r *AccountRepository) ClearLock(_ context.Context, id string) error {
	return r.update(id, func(a *models.Account) bool {
		a.LockedUntil = nil
		return true
	})
}

func (r *AccountRepository) SetSessionToken(_ context.Context, id string, token string) error {
	return r.update(id, func(a *models.Account) bool {
		a.CurrentSessionToken = token
		return true
	})
}

func (r *AccountRepository) SetOTP(_ context.Context, id string, sealedSecret string, enabled bool) error {
	return r.update(id, func(a *models.Account) bool {
		a.OTPSecret = sealedSecret
		a.OTPEnabled = enabled
		return true
	})
}

func (r *AccountRepository) EnableOTP(_ context.Context, id string, sealedSecret string) error {
	return r.update(id, func(a *models.Account) bool {
		if a.OTPSecret != sealedSecret {
			return false
		}
		a.OTPEnabled = true
		return true
	})
}

func (r *AccountRepository) UpdatePasswordHash(_ context.Context, id string, hash string) error {
	return r.update(id, func(a *models.Account) bool {
		a.PasswordHash = hash
		return true
	})
}

func (r *AccountRepository) MarkEmailVerified(_ context.Context, id string) error {
	return r.update(id, func(a *models.Account) bool {
		a.EmailVerified = true
		return true
	})
}

// update applies fn under the lock. A missing row, or fn reporting that its
// condition did not match, yields common.ErrorNotFound like a zero-row UPDATE.
func (r *AccountRepository) update(id string, fn func(a *models.Account) bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok || !fn(a) {
		return common.ErrorNotFound
	}
	return nil
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	if a.LockedUntil != nil {
		u := *a.LockedUntil
		c.LockedUntil = &u
	}
	return &c
}

type FailedLoginRepository struct{ s *Store }

func (r *FailedLoginRepository) Append(_ context.Context, accountID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.failures[accountID] = append(r.s.failures[accountID], at)
	return nil
}

func (r *FailedLoginRepository) CountSince(_ context.Context, accountID string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, at := range r.s.failures[accountID] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *FailedLoginRepository) DeleteAll(_ context.Context, accountID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.failures, accountID)
	return nil
}

type TokenRepository struct{ s *Store }

func (r *TokenRepository) Replace(_ context.Context, accountID string, purpose models.TokenPurpose, hash string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for h, t := range r.s.tokens {
		if t.AccountID == accountID && t.Purpose == purpose && !t.Used {
			delete(r.s.tokens, h)
		}
	}
	r.s.tokens[hash] = &models.AccountToken{
		AccountID: accountID,
		Purpose:   purpose,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (r *TokenRepository) Claim(_ context.Context, hash string, purpose models.TokenPurpose, now time.Time) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[hash]
	if !ok || t.Purpose != purpose || !t.IsUsable(now) {
		return "", common.ErrorNotFound
	}
	t.Used = true
	return t.AccountID, nil
}
