package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/auth"
	mailer "github.com/dmitrijs2005/buddiesfinder/internal/server/mail"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
)

const (
	verifySubject = "Confirm your BuddiesFinder e-mail"
	existsSubject = "Your BuddiesFinder account"
)

// Registration creates accounts and confirms their e-mail addresses.
type Registration struct {
	repos    repomanager.RepositoryManager
	tx       dbx.Transactor
	sender   mailer.Sender
	baseURL  string
	validity time.Duration
	log      logging.Logger
	now      func() time.Time
}

func NewRegistration(d Deps, sender mailer.Sender, baseURL string, validity time.Duration) *Registration {
	return &Registration{
		repos:    d.Repos,
		tx:       d.Tx,
		sender:   sender,
		baseURL:  baseURL,
		validity: validity,
		log:      d.Log.With("module", "registration"),
		now:      d.clock(),
	}
}

// Register creates an unverified user account and mails a verification link.
// For an address that already has an account it mails the owner a notice
// instead and returns common.ErrorAlreadyExists; both paths send one mail.
func (r *Registration) Register(ctx context.Context, name, email, password string) (*models.Account, error) {
	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, common.ErrInvalidEmail
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var (
		account *models.Account
		raw     string
	)
	err = r.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		a, err := r.repos.Accounts(tx).Create(ctx, &models.Account{
			Name:         strings.TrimSpace(name),
			Email:        email,
			PasswordHash: hash,
			Role:         models.RoleUser,
		})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return common.ErrorAlreadyExists
			}
			return persistence("create account", err)
		}
		account = a

		raw, err = issueToken(ctx, r.repos, tx, a.ID, models.PurposeEmailVerification, r.now().Add(r.validity))
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			r.log.Info(ctx, "registration attempt for existing address")
			r.sendExistingNotice(ctx, email)
		}
		return nil, err
	}

	r.log.Info(ctx, "account registered", "account_id", account.ID)
	r.sendVerification(ctx, account, raw)
	return account, nil
}

// VerifyEmail redeems a verification token.
func (r *Registration) VerifyEmail(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return common.ErrInvalidOrExpiredToken
	}

	var accountID string
	err := r.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		id, err := r.repos.Tokens(tx).Claim(ctx, common.HashToken(rawToken), models.PurposeEmailVerification, r.now())
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return persistence("claim token", err)
		}
		accountID = id
		if err := r.repos.Accounts(tx).MarkEmailVerified(ctx, id); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return persistence("mark verified", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info(ctx, "email verified", "account_id", accountID)
	return nil
}

func (r *Registration) sendVerification(ctx context.Context, a *models.Account, raw string) {
	link := r.baseURL + "/verify-email?token=" + url.QueryEscape(raw)
	body := fmt.Sprintf(
		"<p>Welcome %s!</p><p>Please confirm your e-mail address within %d hours.</p>"+
			"<p><a href=\"%s\">Confirm e-mail</a></p>",
		html.EscapeString(a.Name), int(r.validity.Hours()), link)

	if err := r.sender.Send(ctx, a.Email, verifySubject, body); err != nil {
		r.log.Error(ctx, "verification mail not sent", "account_id", a.ID, "error", err)
	}
}

func (r *Registration) sendExistingNotice(ctx context.Context, email string) {
	link := r.baseURL + "/forgot-password"
	body := fmt.Sprintf(
		"<p>Someone tried to create a BuddiesFinder account with this address, which is already registered.</p>"+
			"<p>If it was you, sign in or <a href=\"%s\">reset your password</a>. Otherwise ignore this e-mail.</p>",
		link)

	if err := r.sender.Send(ctx, email, existsSubject, body); err != nil {
		r.log.Error(ctx, "existing-account notice not sent", "error", err)
	}
}
