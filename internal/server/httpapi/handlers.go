package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/services"
	"github.com/gin-gonic/gin"
)

const (
	resetRequestedMessage = "if the address is registered, a reset link has been sent"
	registeredMessage     = "check your inbox to finish signing up"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type accountResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	OTPState string `json:"otp_state"`
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

func (s *Server) accountView(a *models.Account) accountResponse {
	return accountResponse{
		ID:       a.ID,
		Name:     a.Name,
		Email:    a.Email,
		Role:     string(a.Role),
		OTPState: s.svc.OTP.State(a).String(),
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	// A taken address gets the same answer; its owner is told by e-mail.
	_, err := s.svc.Registration.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil && !errors.Is(err, common.ErrorAlreadyExists) {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": registeredMessage})
}

func (s *Server) handleVerifyEmail(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := s.svc.Registration.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := s.svc.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	switch res.Outcome {
	case services.OutcomeNeedsOTP:
		if err := s.setPendingCookie(c, res.Account.ID); err != nil {
			s.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "otp_required"})
	default:
		s.finishLogin(c, res)
	}
}

func (s *Server) handleLoginOTP(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	raw, err := c.Cookie(common.PendingOTPCookieName)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign in again"})
		return
	}
	accountID, err := s.cookies.DecodePending(raw)
	if err != nil {
		s.clearCookie(c, common.PendingOTPCookieName)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign in again"})
		return
	}

	res, err := s.svc.Auth.CompleteOTP(c.Request.Context(), accountID, req.Code)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if res.Outcome != services.OutcomeInvalidOTP {
		s.clearCookie(c, common.PendingOTPCookieName)
	}
	s.finishLogin(c, res)
}

// finishLogin writes the session cookie on success and the outcome's error
// otherwise.
func (s *Server) finishLogin(c *gin.Context, res *services.LoginResult) {
	if res.Outcome != services.OutcomeSuccess {
		status, msg := statusFor(res.Outcome.Err())
		body := gin.H{"error": msg}
		if res.Outcome == services.OutcomeLocked && res.LockedUntil != nil {
			body["locked_until"] = res.LockedUntil.UTC().Format(time.RFC3339)
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	if err := s.setSessionCookie(c, res.Session); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "account": s.accountView(res.Account)})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.svc.Auth.Logout(c.Request.Context(), principal(c)); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.clearCookie(c, common.SessionCookieName)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (s *Server) handleForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := s.svc.Auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": resetRequestedMessage})
}

func (s *Server) handleResetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := s.svc.Auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.clearCookie(c, common.SessionCookieName)
	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, s.accountView(principal(c).Account))
}

func (s *Server) handleOTPEnroll(c *gin.Context) {
	enr, err := s.svc.Auth.EnrollOTP(c.Request.Context(), principal(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": enr.Secret, "uri": enr.URI, "qr_code": enr.QRCode})
}

func (s *Server) handleOTPConfirm(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	ok, err := s.svc.Auth.ConfirmOTP(c.Request.Context(), principal(c), req.Code)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": common.ErrInvalidOTP.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "enabled"})
}

func (s *Server) handleOTPDisable(c *gin.Context) {
	if err := s.svc.Auth.DisableOTP(c.Request.Context(), principal(c)); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

func (s *Server) handleUnlock(c *gin.Context) {
	if err := s.svc.Auth.UnlockAccount(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}
