// Package services contains the authentication core: lockout tracking, TOTP
// two-factor, single-use e-mailed tokens, the session guard and the
// orchestrator that ties them into login and logout.
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Repos repomanager.RepositoryManager
	Tx    dbx.Transactor
	Log   logging.Logger
	// Now defaults to time.Now when nil.
	Now func() time.Time
}

func (d Deps) clock() func() time.Time {
	if d.Now == nil {
		return time.Now
	}
	return d.Now
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrPersistence, op, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
