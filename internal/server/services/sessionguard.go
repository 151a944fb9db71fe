package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
)

type GuardAction int

const (
	// ActionAnonymous: no session was ever issued, pass through.
	ActionAnonymous GuardAction = iota
	// ActionContinue: the session is valid and its activity was refreshed.
	ActionContinue
	// ActionDestroy: the session must be dropped; Reason says why.
	ActionDestroy
)

// DestroyReason is shown to the user verbatim.
type DestroyReason string

const (
	ReasonExpired   DestroyReason = "session expired"
	ReasonIdle      DestroyReason = "session expired due to inactivity"
	ReasonDisplaced DestroyReason = "logged out: account accessed from another device"
)

type Verdict struct {
	Action  GuardAction
	Reason  DestroyReason
	Session *models.Session
	Account *models.Account
}

// SessionGuard enforces absolute and idle timeouts and the single active
// session per account.
type SessionGuard struct {
	repos    repomanager.RepositoryManager
	tx       dbx.Transactor
	absolute time.Duration
	idle     time.Duration
	log      logging.Logger
	now      func() time.Time
}

func NewSessionGuard(d Deps, absolute, idle time.Duration) *SessionGuard {
	return &SessionGuard{
		repos:    d.Repos,
		tx:       d.Tx,
		absolute: absolute,
		idle:     idle,
		log:      d.Log.With("module", "session_guard"),
		now:      d.clock(),
	}
}

// Check applies the rules in order: anonymous, absolute timeout, idle
// timeout, token mismatch. A surviving session gets LastActivity = now.
func (g *SessionGuard) Check(ctx context.Context, s *models.Session) (*Verdict, error) {
	if !s.IsAuthenticated() {
		return &Verdict{Action: ActionAnonymous}, nil
	}

	now := g.now()
	if now.Sub(s.CreatedAt) > g.absolute {
		return g.destroy(ctx, s, ReasonExpired), nil
	}
	if now.Sub(s.LastActivity) > g.idle {
		return g.destroy(ctx, s, ReasonIdle), nil
	}

	a, err := g.repos.Accounts(g.tx.Conn()).GetByID(ctx, s.AccountID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, persistence("load account", err)
	}
	if a == nil || !sameToken(a.CurrentSessionToken, s.Token) {
		return g.destroy(ctx, s, ReasonDisplaced), nil
	}

	refreshed := *s
	refreshed.LastActivity = now
	return &Verdict{Action: ActionContinue, Session: &refreshed, Account: a}, nil
}

func (g *SessionGuard) destroy(ctx context.Context, s *models.Session, reason DestroyReason) *Verdict {
	g.log.Warn(ctx, "session destroyed", "account_id", s.AccountID, "reason", string(reason))
	return &Verdict{Action: ActionDestroy, Reason: reason}
}

func sameToken(current, presented string) bool {
	if current == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(current), []byte(presented)) == 1
}
