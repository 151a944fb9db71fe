// Package server wires configuration, storage, services and the HTTP API
// together and runs them until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/buddiesfinder/internal/cryptox"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/auth"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/config"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/httpapi"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/mail"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	reset  *services.ResetTokenManager
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger(slog.LevelInfo)

	repos, tx, db, err := openStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	sealer, err := cryptox.NewSealer(cryptox.DeriveKey(cfg.OTPEncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("otp sealer: %w", err)
	}

	var sender mail.Sender
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		sender = mail.NewLogSender(logger)
	}

	deps := services.Deps{Repos: repos, Tx: tx, Log: logger}

	lockout := services.NewLockoutTracker(deps, services.LockoutPolicy{
		Threshold: cfg.LockoutThreshold,
		Window:    cfg.LockoutWindow,
		Duration:  cfg.LockoutDuration,
	})
	otp := services.NewOTPManager(deps, sealer, cfg.OTPIssuer)
	reset := services.NewResetTokenManager(deps, sender, cfg.BaseURL, cfg.ResetTokenValidity)

	svc := httpapi.Services{
		Auth:         services.NewAuthenticator(deps, lockout, otp, reset),
		Registration: services.NewRegistration(deps, sender, cfg.BaseURL, cfg.VerificationTokenValidity),
		Guard:        services.NewSessionGuard(deps, cfg.SessionAbsoluteTimeout, cfg.SessionIdleTimeout),
		OTP:          otp,
	}

	srv := httpapi.NewServer(httpapi.Options{
		Addr:               cfg.HTTPAddr,
		SessionMaxAge:      cfg.SessionAbsoluteTimeout,
		PendingOTPValidity: cfg.PendingOTPValidity,
		LoginRatePerSecond: cfg.LoginRatePerSecond,
		LoginRateBurst:     cfg.LoginRateBurst,
		SecureCookies:      cfg.SecureCookies,
	}, svc, auth.NewCookieCodec([]byte(cfg.SecretKey)), logger)

	return &App{config: cfg, logger: logger, db: db, http: srv, reset: reset}, nil
}

// openStorage connects to PostgreSQL and migrates it, or falls back to the
// in-memory store when no DSN is configured.
func openStorage(cfg *config.Config) (repomanager.RepositoryManager, dbx.Transactor, *sql.DB, error) {
	if cfg.DatabaseDSN == "" {
		return repomanager.NewMemoryRepositoryManager(), dbx.NopTransactor{}, nil, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("migrations: %w", err)
	}

	return rm, dbx.NewSQLTransactor(db, nil), db, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.reset.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err)
		}
	}
}
