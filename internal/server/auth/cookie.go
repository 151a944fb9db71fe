package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	audienceSession    = "session"
	audiencePendingOTP = "pending_otp"
)

// SessionClaims is the signed payload of the session cookie. Timeouts are
// enforced by the session guard, so no exp claim is set.
type SessionClaims struct {
	jwt.RegisteredClaims
	Token        string `json:"tok"`
	LastActivity int64  `json:"act"`
}

// PendingClaims identifies an account that passed the password step and
// still owes a one-time code.
type PendingClaims struct {
	jwt.RegisteredClaims
}

// CookieCodec signs and verifies the session and pending-OTP cookies with
// HMAC-SHA256. The two kinds carry different audiences and cannot be
// swapped.
type CookieCodec struct {
	secret []byte
	now    func() time.Time
}

func NewCookieCodec(secret []byte) *CookieCodec {
	return &CookieCodec{secret: secret, now: time.Now}
}

func (c *CookieCodec) EncodeSession(s *models.Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  s.AccountID,
			Audience: jwt.ClaimStrings{audienceSession},
			IssuedAt: jwt.NewNumericDate(s.CreatedAt),
		},
		Token:        s.Token,
		LastActivity: s.LastActivity.Unix(),
	})
	return token.SignedString(c.secret)
}

func (c *CookieCodec) DecodeSession(value string) (*models.Session, error) {
	claims := &SessionClaims{}
	if err := c.parse(value, claims, audienceSession); err != nil {
		return nil, err
	}
	if claims.IssuedAt == nil || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return &models.Session{
		AccountID:    claims.Subject,
		Token:        claims.Token,
		CreatedAt:    claims.IssuedAt.Time,
		LastActivity: time.Unix(claims.LastActivity, 0),
	}, nil
}

func (c *CookieCodec) EncodePending(accountID string, validity time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, PendingClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Audience:  jwt.ClaimStrings{audiencePendingOTP},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	})
	return token.SignedString(c.secret)
}

// DecodePending returns the pending account id, or common.ErrTokenExpired
// once the pending window has passed.
func (c *CookieCodec) DecodePending(value string) (string, error) {
	claims := &PendingClaims{}
	if err := c.parse(value, claims, audiencePendingOTP); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

func (c *CookieCodec) parse(value string, claims jwt.Claims, audience string) error {
	_, err := jwt.ParseWithClaims(value, claims,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return common.ErrInvalidToken
	}
	return nil
}
