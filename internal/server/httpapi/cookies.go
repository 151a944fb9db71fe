package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) setSessionCookie(c *gin.Context, sess *models.Session) error {
	v, err := s.cookies.EncodeSession(sess)
	if err != nil {
		return err
	}
	s.setCookie(c, common.SessionCookieName, v, int(s.opts.SessionMaxAge.Seconds()))
	return nil
}

func (s *Server) setPendingCookie(c *gin.Context, accountID string) error {
	v, err := s.cookies.EncodePending(accountID, s.opts.PendingOTPValidity)
	if err != nil {
		return err
	}
	s.setCookie(c, common.PendingOTPCookieName, v, int(s.opts.PendingOTPValidity.Seconds()))
	return nil
}

func (s *Server) clearCookie(c *gin.Context, name string) {
	s.setCookie(c, name, "", -1)
}

func (s *Server) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", s.opts.SecureCookies, true)
}
