package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/accounttokens"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/failedlogins"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/memory"
)

// MemoryRepositoryManager vends repositories over a shared in-process store.
// The DBTX argument is ignored; pair it with dbx.NopTransactor.
type MemoryRepositoryManager struct {
	store *memory.Store
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{store: memory.NewStore()}
}

func (m *MemoryRepositoryManager) Accounts(dbx.DBTX) accounts.Repository {
	return m.store.Accounts()
}

func (m *MemoryRepositoryManager) FailedLogins(dbx.DBTX) failedlogins.Repository {
	return m.store.FailedLogins()
}

func (m *MemoryRepositoryManager) Tokens(dbx.DBTX) accounttokens.Repository {
	return m.store.Tokens()
}

// RunMigrations is a no-op; the store has no schema.
func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}
