// Package httpapi exposes the authentication core as JSON endpoints over gin.
// Sessions travel in a signed HttpOnly cookie and are checked by the session
// guard on every request.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/auth"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/services"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout  = 10 * time.Second
	limiterPruneTick = time.Minute
	limiterIdle      = 10 * time.Minute
)

type Services struct {
	Auth         *services.Authenticator
	Registration *services.Registration
	Guard        *services.SessionGuard
	OTP          *services.OTPManager
}

type Options struct {
	Addr string
	// SecureCookies sets the Secure attribute; enable behind HTTPS.
	SecureCookies      bool
	SessionMaxAge      time.Duration
	PendingOTPValidity time.Duration
	LoginRatePerSecond float64
	LoginRateBurst     int
}

type Server struct {
	opts    Options
	svc     Services
	cookies *auth.CookieCodec
	limiter *ipLimiter
	engine  *gin.Engine
	log     logging.Logger
}

func NewServer(opts Options, svc Services, cookies *auth.CookieCodec, l logging.Logger) *Server {
	s := &Server{
		opts:    opts,
		svc:     svc,
		cookies: cookies,
		limiter: newIPLimiter(rate.Limit(opts.LoginRatePerSecond), opts.LoginRateBurst),
		log:     l.With("module", "http_server"),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog(), s.sessionGuard())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		limited := api.Group("", s.rateLimit())
		limited.POST("/register", s.handleRegister)
		limited.POST("/verify-email", s.handleVerifyEmail)
		limited.POST("/login", s.handleLogin)
		limited.POST("/login/otp", s.handleLoginOTP)
		limited.POST("/password/forgot", s.handleForgotPassword)
		limited.POST("/password/reset", s.handleResetPassword)

		authed := api.Group("", s.requireSession())
		authed.POST("/logout", s.handleLogout)
		authed.GET("/me", s.handleMe)
		authed.POST("/otp/enroll", s.handleOTPEnroll)
		authed.POST("/otp/confirm", s.handleOTPConfirm)
		authed.POST("/otp/disable", s.handleOTPDisable)
		authed.POST("/admin/accounts/:id/unlock", s.handleUnlock)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		t := time.NewTicker(limiterPruneTick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.limiter.Prune(limiterIdle)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.log.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error(shutdownCtx, "shutdown error", "error", err)
		}
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", s.opts.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
