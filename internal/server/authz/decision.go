// Package authz expresses access checks as values. Operations call a check
// at their top and return Decision.Err() when it denies.
package authz

import (
	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
)

const (
	ReasonNotAuthenticated = "not authenticated"
	ReasonForbidden        = "insufficient role"
)

type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err returns nil for an allowed decision. Unauthenticated denials map to
// common.ErrorUnauthorized, everything else to common.ErrForbidden.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonNotAuthenticated:
		return common.ErrorUnauthorized
	default:
		return common.ErrForbidden
	}
}

func RequireAuthenticated(p *models.Principal) Decision {
	if p == nil || p.Account == nil || !p.Session.IsAuthenticated() {
		return Deny(ReasonNotAuthenticated)
	}
	return Allow()
}

func RequireRole(p *models.Principal, role models.Role) Decision {
	return All(RequireAuthenticated(p), hasRole(p, role))
}

func hasRole(p *models.Principal, role models.Role) Decision {
	if p == nil || p.Account == nil || p.Account.Role != role {
		return Deny(ReasonForbidden)
	}
	return Allow()
}

// All returns the first denial, or Allow when every decision allows.
func All(ds ...Decision) Decision {
	for _, d := range ds {
		if !d.Allowed {
			return d
		}
	}
	return Allow()
}
