package models

import "time"

// Session is the state a browser carries between requests. A zero CreatedAt
// means the request is unauthenticated.
type Session struct {
	AccountID    string
	Token        string
	CreatedAt    time.Time
	LastActivity time.Time
}

// IsAuthenticated reports whether the session was ever issued.
func (s *Session) IsAuthenticated() bool {
	return s != nil && !s.CreatedAt.IsZero()
}

// Principal is the request-scoped identity, built once per request after the
// session guard has accepted the session and passed explicitly to every
// operation that needs to know who is calling.
type Principal struct {
	Account *Account
	Session *Session
}

// AccountID returns the caller's account id or "" for anonymous callers.
func (p *Principal) AccountID() string {
	if p == nil || p.Account == nil {
		return ""
	}
	return p.Account.ID
}
