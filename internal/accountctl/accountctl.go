// Package accountctl bootstraps administrator accounts from the command line.
package accountctl

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/auth"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

type Options struct {
	DSN   string
	Email string
	Name  string
}

func ParseOptions(args []string) (*Options, error) {
	o := &Options{}
	fs := flag.NewFlagSet("accountctl", flag.ContinueOnError)
	fs.StringVar(&o.DSN, "d", os.Getenv("DATABASE_DSN"), "database DSN")
	fs.StringVar(&o.Email, "email", "", "admin e-mail address")
	fs.StringVar(&o.Name, "name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.DSN == "" || o.Email == "" {
		return nil, errors.New("both -d and -email are required")
	}
	return o, nil
}

// promptPassword asks for the password twice without echo.
func promptPassword(w io.Writer) (string, error) {
	read := func(prompt string) (string, error) {
		if _, err := fmt.Fprint(w, prompt); err != nil {
			return "", err
		}
		pw, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(w)
		defer common.WipeByteArray(pw)
		return string(pw), err
	}

	first, err := read("Enter password: ")
	if err != nil {
		return "", err
	}
	second, err := read("Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPasswordMismatch
	}
	return first, nil
}

// CreateAdmin stores a verified account with the admin role.
func CreateAdmin(ctx context.Context, accounts repomanager.RepositoryManager, db dbx.DBTX, name, email, password string) (*models.Account, error) {
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return accounts.Accounts(db).Create(ctx, &models.Account{
		Name:          name,
		Email:         strings.ToLower(strings.TrimSpace(email)),
		PasswordHash:  hash,
		Role:          models.RoleAdmin,
		EmailVerified: true,
	})
}

func Run(ctx context.Context, args []string, w io.Writer) error {
	o, err := ParseOptions(args)
	if err != nil {
		return err
	}

	password, err := promptPassword(w)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", o.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	a, err := CreateAdmin(ctx, rm, db, o.Name, o.Email, password)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(w)
	fmt.Fprintf(out, "created admin %s (%s)\n", a.Email, a.ID)
	return out.Flush()
}
