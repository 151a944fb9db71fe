package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/auth"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/authz"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInvalidCredentials
	OutcomeLocked
	OutcomeNeedsOTP
	OutcomeEmailUnverified
	OutcomeInvalidOTP
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidCredentials:
		return "invalid_credentials"
	case OutcomeLocked:
		return "locked"
	case OutcomeNeedsOTP:
		return "needs_otp"
	case OutcomeEmailUnverified:
		return "email_unverified"
	case OutcomeInvalidOTP:
		return "invalid_otp"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Err maps a non-success outcome to its sentinel error.
func (o Outcome) Err() error {
	switch o {
	case OutcomeSuccess:
		return nil
	case OutcomeLocked:
		return common.ErrAccountLocked
	case OutcomeNeedsOTP:
		return common.ErrOTPRequired
	case OutcomeEmailUnverified:
		return common.ErrEmailUnverified
	case OutcomeInvalidOTP:
		return common.ErrInvalidOTP
	default:
		return common.ErrInvalidCredentials
	}
}

// LoginResult carries the account for Success and NeedsOTP, the new session
// for Success and the lock end for Locked.
type LoginResult struct {
	Outcome     Outcome
	Account     *models.Account
	Session     *models.Session
	LockedUntil *time.Time
}

const sessionTokenBytes = 32

// Authenticator drives login, the OTP step, logout and the account
// operations that need an authorized caller.
type Authenticator struct {
	repos   repomanager.RepositoryManager
	tx      dbx.Transactor
	lockout *LockoutTracker
	otp     *OTPManager
	reset   *ResetTokenManager
	log     logging.Logger
	now     func() time.Time
}

func NewAuthenticator(d Deps, lockout *LockoutTracker, otp *OTPManager, reset *ResetTokenManager) *Authenticator {
	return &Authenticator{
		repos:   d.Repos,
		tx:      d.Tx,
		lockout: lockout,
		otp:     otp,
		reset:   reset,
		log:     d.Log.With("module", "authenticator"),
		now:     d.clock(),
	}
}

// Login checks the password. The returned error is reserved for storage
// faults; every user-facing result is an Outcome.
func (s *Authenticator) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	a, err := s.repos.Accounts(s.tx.Conn()).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.BurnPasswordCheck(password)
			return &LoginResult{Outcome: OutcomeInvalidCredentials}, nil
		}
		return nil, persistence("load account", err)
	}

	if res, err := s.checkLock(ctx, a); res != nil || err != nil {
		return res, err
	}

	if !auth.VerifyPassword(password, a.PasswordHash) {
		return s.fail(ctx, a, OutcomeInvalidCredentials)
	}

	if !a.EmailVerified {
		return &LoginResult{Outcome: OutcomeEmailUnverified}, nil
	}
	// Failures stay on record until the second factor succeeds, so a known
	// password cannot reset the OTP guessing budget.
	if a.OTPEnabled {
		return &LoginResult{Outcome: OutcomeNeedsOTP, Account: a}, nil
	}

	if err := s.lockout.Clear(ctx, a.ID); err != nil {
		return nil, err
	}
	a.LockedUntil = nil
	return s.issueSession(ctx, a)
}

// CompleteOTP finishes a login that stopped at NeedsOTP. Wrong codes count
// toward the lockout like wrong passwords.
func (s *Authenticator) CompleteOTP(ctx context.Context, pendingAccountID, code string) (*LoginResult, error) {
	a, err := s.repos.Accounts(s.tx.Conn()).GetByID(ctx, pendingAccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return &LoginResult{Outcome: OutcomeInvalidOTP}, nil
		}
		return nil, persistence("load account", err)
	}

	if res, err := s.checkLock(ctx, a); res != nil || err != nil {
		return res, err
	}

	if !s.otp.Verify(a, code) {
		s.log.Warn(ctx, "invalid one-time code", "account_id", a.ID)
		return s.fail(ctx, a, OutcomeInvalidOTP)
	}

	if err := s.lockout.Clear(ctx, a.ID); err != nil {
		return nil, err
	}
	a.LockedUntil = nil
	return s.issueSession(ctx, a)
}

// Logout revokes the account's active session token and zeroes the caller's
// session.
func (s *Authenticator) Logout(ctx context.Context, p *models.Principal) error {
	if err := authz.RequireAuthenticated(p).Err(); err != nil {
		return err
	}

	err := s.repos.Accounts(s.tx.Conn()).SetSessionToken(ctx, p.AccountID(), "")
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return persistence("revoke session", err)
	}

	s.log.Info(ctx, "logged out", "account_id", p.AccountID())
	*p.Session = models.Session{}
	return nil
}

func (s *Authenticator) EnrollOTP(ctx context.Context, p *models.Principal) (*OTPEnrollment, error) {
	if err := authz.RequireAuthenticated(p).Err(); err != nil {
		return nil, err
	}
	return s.otp.Enroll(ctx, p.AccountID())
}

func (s *Authenticator) ConfirmOTP(ctx context.Context, p *models.Principal, code string) (bool, error) {
	if err := authz.RequireAuthenticated(p).Err(); err != nil {
		return false, err
	}
	return s.otp.ConfirmEnrollment(ctx, p.AccountID(), code)
}

func (s *Authenticator) DisableOTP(ctx context.Context, p *models.Principal) error {
	if err := authz.RequireAuthenticated(p).Err(); err != nil {
		return err
	}
	return s.otp.Disable(ctx, p.AccountID())
}

// UnlockAccount lifts a lock and forgets recorded failures. Admin only.
func (s *Authenticator) UnlockAccount(ctx context.Context, p *models.Principal, accountID string) error {
	if err := authz.RequireRole(p, models.RoleAdmin).Err(); err != nil {
		return err
	}
	if _, err := uuid.Parse(accountID); err != nil {
		return common.ErrorNotFound
	}

	if _, err := s.repos.Accounts(s.tx.Conn()).GetByID(ctx, accountID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return persistence("load account", err)
	}
	if err := s.lockout.Clear(ctx, accountID); err != nil {
		return err
	}

	s.log.Info(ctx, "account unlocked", "account_id", accountID, "by", p.AccountID())
	return nil
}

func (s *Authenticator) RequestPasswordReset(ctx context.Context, email string) error {
	return s.reset.RequestReset(ctx, email)
}

func (s *Authenticator) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	return s.reset.Consume(ctx, rawToken, newPassword)
}

// checkLock returns a Locked result for an active lock. A lock that has run
// out is purged together with the failures that caused it.
func (s *Authenticator) checkLock(ctx context.Context, a *models.Account) (*LoginResult, error) {
	if s.lockout.IsLocked(a) {
		s.log.Warn(ctx, "login attempt on locked account", "account_id", a.ID, "until", a.LockedUntil)
		return &LoginResult{Outcome: OutcomeLocked, LockedUntil: a.LockedUntil}, nil
	}
	if s.lockout.LockExpired(a) {
		if err := s.lockout.Clear(ctx, a.ID); err != nil {
			return nil, err
		}
		a.LockedUntil = nil
	}
	return nil, nil
}

func (s *Authenticator) fail(ctx context.Context, a *models.Account, outcome Outcome) (*LoginResult, error) {
	until, _, err := s.lockout.RegisterFailure(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if until != nil {
		return &LoginResult{Outcome: OutcomeLocked, LockedUntil: until}, nil
	}
	return &LoginResult{Outcome: outcome}, nil
}

// issueSession rotates the account's session token. The new token is stored
// before the session is returned, so the displaced browser sees the mismatch
// on its next request.
func (s *Authenticator) issueSession(ctx context.Context, a *models.Account) (*LoginResult, error) {
	token, err := common.MakeRandHexString(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	if err := s.repos.Accounts(s.tx.Conn()).SetSessionToken(ctx, a.ID, token); err != nil {
		return nil, persistence("store session token", err)
	}
	a.CurrentSessionToken = token

	now := s.now()
	s.log.Info(ctx, "login succeeded", "account_id", a.ID)
	return &LoginResult{
		Outcome: OutcomeSuccess,
		Account: a,
		Session: &models.Session{AccountID: a.ID, Token: token, CreatedAt: now, LastActivity: now},
	}, nil
}
