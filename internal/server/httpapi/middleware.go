package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	principalKey = "principal"
	noticeKey    = "session_notice"
	requestIDKey = "request_id"
)

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(common.RequestIDHeaderName, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug(c.Request.Context(), "request",
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// sessionGuard builds the request principal. Invalid or destroyed sessions
// lose their cookie and continue anonymously; requireSession decides whether
// the route needs one.
func (s *Server) sessionGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := &models.Principal{Session: &models.Session{}}
		c.Set(principalKey, p)

		raw, err := c.Cookie(common.SessionCookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		sess, err := s.cookies.DecodeSession(raw)
		if err != nil {
			s.clearCookie(c, common.SessionCookieName)
			c.Next()
			return
		}

		v, err := s.svc.Guard.Check(c.Request.Context(), sess)
		if err != nil {
			s.abortWithError(c, err)
			return
		}

		switch v.Action {
		case services.ActionDestroy:
			s.clearCookie(c, common.SessionCookieName)
			c.Set(noticeKey, string(v.Reason))
		case services.ActionContinue:
			p.Account = v.Account
			p.Session = v.Session
			if err := s.setSessionCookie(c, v.Session); err != nil {
				s.abortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}

func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal(c).Session.IsAuthenticated() {
			c.Next()
			return
		}
		msg := c.GetString(noticeKey)
		if msg == "" {
			msg = "authentication required"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			s.log.Warn(c.Request.Context(), "rate limit exceeded", "ip", c.ClientIP(), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) *models.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*models.Principal); ok {
			return p
		}
	}
	return &models.Principal{Session: &models.Session{}}
}
