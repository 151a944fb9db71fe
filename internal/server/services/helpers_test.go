package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/cryptox"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/auth"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/failedlogins"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

var errDB = errors.New("connection refused")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMail struct {
	to, subject, body string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{to, subject, body})
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// slowSender stands in for a relay that takes delay per message.
type slowSender struct {
	delay time.Duration
	sent  atomic.Int32
}

func (s *slowSender) Send(ctx context.Context, _, _, _ string) error {
	select {
	case <-time.After(s.delay):
		s.sent.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var tokenInLink = regexp.MustCompile(`token=([0-9a-f]+)`)

// lastToken pulls the raw token out of the most recent mail.
func (s *recordingSender) lastToken(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "no mail sent")
	m := tokenInLink.FindStringSubmatch(s.sent[len(s.sent)-1].body)
	require.Len(t, m, 2, "no token in mail body")
	return m[1]
}

// env wires every service over one in-memory store.
type env struct {
	clock   *fakeClock
	repos   *repomanager.MemoryRepositoryManager
	sender  *recordingSender
	deps    Deps
	lockout *LockoutTracker
	otp     *OTPManager
	reset   *ResetTokenManager
	reg     *Registration
	guard   *SessionGuard
	auth    *Authenticator
}

func newEnv(t *testing.T) *env {
	t.Helper()

	sealer, err := cryptox.NewSealer(cryptox.DeriveKey("test-otp-key"))
	require.NoError(t, err)

	e := &env{
		clock:  newFakeClock(),
		repos:  repomanager.NewMemoryRepositoryManager(),
		sender: &recordingSender{},
	}
	e.deps = Deps{
		Repos: e.repos,
		Tx:    dbx.NopTransactor{},
		Log:   logging.NewDiscardLogger(),
		Now:   e.clock.Now,
	}
	e.wire(sealer)
	return e
}

func (e *env) wire(sealer *cryptox.Sealer) {
	e.lockout = NewLockoutTracker(e.deps, DefaultLockoutPolicy())
	e.otp = NewOTPManager(e.deps, sealer, "BuddiesFinder")
	e.reset = NewResetTokenManager(e.deps, e.sender, "https://bf.test", time.Hour)
	e.reg = NewRegistration(e.deps, e.sender, "https://bf.test", 24*time.Hour)
	e.guard = NewSessionGuard(e.deps, 30*time.Minute, 15*time.Minute)
	e.auth = NewAuthenticator(e.deps, e.lockout, e.otp, e.reset)
}

// withRepos swaps the repository manager for every service.
func (e *env) withRepos(t *testing.T, rm repomanager.RepositoryManager) {
	t.Helper()
	e.deps.Repos = rm
	sealer, err := cryptox.NewSealer(cryptox.DeriveKey("test-otp-key"))
	require.NoError(t, err)
	e.wire(sealer)
}

func (e *env) accounts() accounts.Repository {
	return e.repos.Accounts(nil)
}

func (e *env) failures() failedlogins.Repository {
	return e.repos.FailedLogins(nil)
}

// seed creates a verified user with the given password.
func (e *env) seed(t *testing.T, email, password string) *models.Account {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	a, err := e.accounts().Create(context.Background(), &models.Account{
		Name:          "Test",
		Email:         email,
		PasswordHash:  hash,
		Role:          models.RoleUser,
		EmailVerified: true,
	})
	require.NoError(t, err)
	return a
}

// requestReset asks for a reset mail and waits until it was handed over.
func (e *env) requestReset(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, e.reset.RequestReset(context.Background(), email))
	e.reset.Wait()
}

func (e *env) reload(t *testing.T, id string) *models.Account {
	t.Helper()
	a, err := e.accounts().GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (e *env) failureCount(t *testing.T, id string) int {
	t.Helper()
	n, err := e.failures().CountSince(context.Background(), id, time.Time{})
	require.NoError(t, err)
	return n
}

func principalFor(a *models.Account, s *models.Session) *models.Principal {
	return &models.Principal{Account: a, Session: s}
}

// brokenRepos fails selected repository calls with errDB.
type brokenRepos struct {
	repomanager.RepositoryManager
	accounts bool
	failures bool
}

func (b *brokenRepos) Accounts(db dbx.DBTX) accounts.Repository {
	if b.accounts {
		return brokenAccounts{b.RepositoryManager.Accounts(db)}
	}
	return b.RepositoryManager.Accounts(db)
}

func (b *brokenRepos) FailedLogins(db dbx.DBTX) failedlogins.Repository {
	if b.failures {
		return brokenFailures{b.RepositoryManager.FailedLogins(db)}
	}
	return b.RepositoryManager.FailedLogins(db)
}

type brokenAccounts struct{ accounts.Repository }

func (brokenAccounts) GetByEmail(context.Context, string) (*models.Account, error) {
	return nil, errDB
}

func (brokenAccounts) GetByID(context.Context, string) (*models.Account, error) {
	return nil, errDB
}

type brokenFailures struct{ failedlogins.Repository }

func (brokenFailures) Append(context.Context, string, time.Time) error {
	return errDB
}
