package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/auth"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/mail"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
)

const (
	resetSubject = "Reset your BuddiesFinder password"
	mailTimeout  = 30 * time.Second
)

// ResetTokenManager issues and redeems password-reset tokens.
type ResetTokenManager struct {
	repos    repomanager.RepositoryManager
	tx       dbx.Transactor
	sender   mail.Sender
	baseURL  string
	validity time.Duration
	log      logging.Logger
	now      func() time.Time
	inflight sync.WaitGroup
}

func NewResetTokenManager(d Deps, sender mail.Sender, baseURL string, validity time.Duration) *ResetTokenManager {
	return &ResetTokenManager{
		repos:    d.Repos,
		tx:       d.Tx,
		sender:   sender,
		baseURL:  baseURL,
		validity: validity,
		log:      d.Log.With("module", "reset"),
		now:      d.clock(),
	}
}

// RequestReset mails a reset link when the e-mail belongs to an account.
// Unknown addresses and mail delivery failures both return nil, so callers
// cannot tell whether an account exists.
func (m *ResetTokenManager) RequestReset(ctx context.Context, email string) error {
	a, err := m.repos.Accounts(m.tx.Conn()).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			m.log.Info(ctx, "password reset requested for unknown address")
			return nil
		}
		return persistence("load account", err)
	}

	var raw string
	err = m.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		raw, err = issueToken(ctx, m.repos, tx, a.ID, models.PurposePasswordReset, m.now().Add(m.validity))
		return err
	})
	if err != nil {
		return err
	}

	link := m.baseURL + "/reset-password?token=" + url.QueryEscape(raw)
	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>Use the link below to choose a new password. It expires in %d minutes.</p>"+
			"<p><a href=\"%s\">Reset password</a></p><p>If you did not ask for this, ignore this e-mail.</p>",
		html.EscapeString(a.Name), int(m.validity.Minutes()), link)

	m.log.Info(ctx, "password reset issued", "account_id", a.ID)
	m.deliver(ctx, a.ID, a.Email, body)
	return nil
}

// deliver hands the mail to the sender in the background. A slow relay must
// not make known addresses answer later than unknown ones.
func (m *ResetTokenManager) deliver(ctx context.Context, accountID, to, body string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer cancel()
		if err := m.sender.Send(ctx, to, resetSubject, body); err != nil {
			m.log.Error(ctx, "reset mail not sent", "account_id", accountID, "error", err)
		}
	}()
}

// Wait blocks until every reset mail handed off so far has been attempted.
func (m *ResetTokenManager) Wait() {
	m.inflight.Wait()
}

// Consume redeems rawToken and sets newPassword. The token claim and the
// password change commit together; a second redemption of the same token
// fails with common.ErrInvalidOrExpiredToken. Lockout state is cleared and
// every existing session is logged out.
func (m *ResetTokenManager) Consume(ctx context.Context, rawToken string, newPassword string) error {
	if rawToken == "" {
		return common.ErrInvalidOrExpiredToken
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var accountID string
	err = m.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		id, err := m.repos.Tokens(tx).Claim(ctx, common.HashToken(rawToken), models.PurposePasswordReset, m.now())
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return persistence("claim token", err)
		}
		accountID = id

		accounts := m.repos.Accounts(tx)
		if err := accounts.UpdatePasswordHash(ctx, id, hash); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return persistence("update password", err)
		}
		if err := m.repos.FailedLogins(tx).DeleteAll(ctx, id); err != nil {
			return persistence("delete failures", err)
		}
		if err := accounts.ClearLock(ctx, id); err != nil {
			return persistence("clear lock", err)
		}
		if err := accounts.SetSessionToken(ctx, id, ""); err != nil {
			return persistence("revoke session", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidOrExpiredToken) {
			m.log.Warn(ctx, "password reset with invalid or expired token")
		}
		return err
	}

	m.log.Info(ctx, "password reset completed", "account_id", accountID)
	return nil
}
