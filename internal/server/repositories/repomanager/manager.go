package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/accounttokens"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/failedlogins"
)

// RepositoryManager vends repositories bound to a connection or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	FailedLogins(db dbx.DBTX) failedlogins.Repository
	Tokens(db dbx.DBTX) accounttokens.Repository
}
