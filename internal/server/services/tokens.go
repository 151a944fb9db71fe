package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
)

const rawTokenBytes = 32

// issueToken stores the digest of a fresh random token, invalidating the
// account's earlier unused token of the same purpose, and returns the raw
// value for the e-mail link.
func issueToken(ctx context.Context, repos repomanager.RepositoryManager, db dbx.DBTX, accountID string, purpose models.TokenPurpose, expiresAt time.Time) (string, error) {
	raw, err := common.MakeRandHexString(rawTokenBytes)
	if err != nil {
		return "", err
	}
	if err := repos.Tokens(db).Replace(ctx, accountID, purpose, common.HashToken(raw), expiresAt); err != nil {
		return "", persistence("store token", err)
	}
	return raw, nil
}
