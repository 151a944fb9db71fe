package accountctl

import (
	"bytes"
	"context"
	"testing"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/auth"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	i := 0
	readPassword = func(int) ([]byte, error) {
		s := answers[i]
		i++
		return []byte(s), nil
	}
}

func TestParseOptions(t *testing.T) {
	o, err := ParseOptions([]string{"-d", "postgres://x", "-email", "root@x.com", "-name", "Root"})
	require.NoError(t, err)
	assert.Equal(t, &Options{DSN: "postgres://x", Email: "root@x.com", Name: "Root"}, o)

	t.Setenv("DATABASE_DSN", "")
	_, err = ParseOptions([]string{"-email", "root@x.com"})
	assert.Error(t, err)
}

func TestPromptPassword(t *testing.T) {
	var out bytes.Buffer

	stubPasswords(t, "pw1secret", "pw1secret")
	pw, err := promptPassword(&out)
	require.NoError(t, err)
	assert.Equal(t, "pw1secret", pw)
	assert.Contains(t, out.String(), "Repeat password")

	stubPasswords(t, "pw1secret", "other123")
	_, err = promptPassword(&out)
	assert.ErrorIs(t, err, errPasswordMismatch)
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	rm := repomanager.NewMemoryRepositoryManager()

	a, err := CreateAdmin(ctx, rm, nil, "Root", " Root@X.com ", "pw1secret")
	require.NoError(t, err)
	assert.Equal(t, "root@x.com", a.Email)

	stored, err := rm.Accounts(nil).GetByEmail(ctx, "root@x.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, stored.Role)
	assert.True(t, stored.EmailVerified)
	assert.True(t, auth.VerifyPassword("pw1secret", stored.PasswordHash))

	_, err = CreateAdmin(ctx, rm, nil, "", "root@x.com", "pw1secret")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = CreateAdmin(ctx, rm, nil, "", "weak@x.com", "short")
	assert.ErrorIs(t, err, common.ErrWeakPassword)
}
