package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN ("" selects the in-memory store)
//	-s string   session signing secret
//	-k string   OTP encryption passphrase
//	-u string   public base URL for e-mail links
//	-i int      session idle timeout, minutes
//	-x int      session absolute timeout, minutes
//	-l int      failed logins before lockout
//	-w int      failed-login window, minutes
//	-m int      lockout duration, minutes
//	-r int      reset token validity, minutes
//	-e string   SMTP host
//	-t          mark cookies Secure (use -t=false to turn off again)
//
// Duration flags are integer minutes. Unknown arguments are filtered out
// first with flagx.FilterArgs so other components may define their own.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-k", "-u", "-i", "-x", "-l", "-w", "-m", "-r", "-e", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session signing secret")
	fs.StringVar(&config.OTPEncryptionKey, "k", config.OTPEncryptionKey, "otp encryption key")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "public base URL")

	idle := fs.Int("i", int(config.SessionIdleTimeout.Minutes()), "session idle timeout (in minutes)")
	absolute := fs.Int("x", int(config.SessionAbsoluteTimeout.Minutes()), "session absolute timeout (in minutes)")
	fs.IntVar(&config.LockoutThreshold, "l", config.LockoutThreshold, "failed logins before lockout")
	window := fs.Int("w", int(config.LockoutWindow.Minutes()), "failed login window (in minutes)")
	lockout := fs.Int("m", int(config.LockoutDuration.Minutes()), "lockout duration (in minutes)")
	reset := fs.Int("r", int(config.ResetTokenValidity.Minutes()), "reset token validity (in minutes)")

	fs.StringVar(&config.SMTPHost, "e", config.SMTPHost, "SMTP host")
	fs.BoolVar(&config.SecureCookies, "t", config.SecureCookies, "mark cookies Secure (HTTPS only)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionIdleTimeout = time.Duration(*idle) * time.Minute
	config.SessionAbsoluteTimeout = time.Duration(*absolute) * time.Minute
	config.LockoutWindow = time.Duration(*window) * time.Minute
	config.LockoutDuration = time.Duration(*lockout) * time.Minute
	config.ResetTokenValidity = time.Duration(*reset) * time.Minute
}
