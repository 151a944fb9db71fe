package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{common.ErrInvalidCredentials, http.StatusUnauthorized},
	{common.ErrorUnauthorized, http.StatusUnauthorized},
	{common.ErrOTPRequired, http.StatusUnauthorized},
	{common.ErrInvalidOTP, http.StatusUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized},
	{common.ErrTokenExpired, http.StatusUnauthorized},
	{common.ErrForbidden, http.StatusForbidden},
	{common.ErrEmailUnverified, http.StatusForbidden},
	{common.ErrAccountLocked, http.StatusLocked},
	{common.ErrInvalidOrExpiredToken, http.StatusBadRequest},
	{common.ErrWeakPassword, http.StatusBadRequest},
	{common.ErrInvalidEmail, http.StatusBadRequest},
	{common.ErrorAlreadyExists, http.StatusConflict},
	{common.ErrNoSecretProvisioned, http.StatusConflict},
	{common.ErrOTPAlreadyEnabled, http.StatusConflict},
	{common.ErrorNotFound, http.StatusNotFound},
}

// statusFor maps a service error to a status code and a message safe to
// show. Anything unrecognised, persistence faults included, is a 500 with a
// generic message.
func statusFor(err error) (int, string) {
	if errors.Is(err, common.ErrPersistence) {
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error()
		}
	}
	return http.StatusInternalServerError, common.ErrorInternal.Error()
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
