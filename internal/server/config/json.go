package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/flagx"
	"github.com/dmitrijs2005/buddiesfinder/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Duration fields accept
// "15m" style strings or integer nanoseconds. Absent keys leave the current
// value untouched.
type JsonConfig struct {
	HTTPAddr                  string         `json:"http_addr"`
	DatabaseDSN               *string        `json:"database_dsn"`
	SecretKey                 string         `json:"secret_key"`
	OTPEncryptionKey          string         `json:"otp_encryption_key"`
	OTPIssuer                 string         `json:"otp_issuer"`
	BaseURL                   string         `json:"base_url"`
	SessionAbsoluteTimeout    timex.Duration `json:"session_absolute_timeout"`
	SessionIdleTimeout        timex.Duration `json:"session_idle_timeout"`
	PendingOTPValidity        timex.Duration `json:"pending_otp_validity"`
	LockoutThreshold          int            `json:"lockout_threshold"`
	LockoutWindow             timex.Duration `json:"lockout_window"`
	LockoutDuration           timex.Duration `json:"lockout_duration"`
	ResetTokenValidity        timex.Duration `json:"reset_token_validity"`
	VerificationTokenValidity timex.Duration `json:"verification_token_validity"`
	LoginRatePerSecond        float64        `json:"login_rate_per_second"`
	LoginRateBurst            int            `json:"login_rate_burst"`
	SecureCookies             *bool          `json:"secure_cookies"`
	SMTPHost                  string         `json:"smtp_host"`
	SMTPPort                  int            `json:"smtp_port"`
	SMTPUser                  string         `json:"smtp_user"`
	SMTPPassword              string         `json:"smtp_password"`
	MailFrom                  string         `json:"mail_from"`
}

// parseJson overlays values from the file named by -c/-config. Without the
// flag nothing happens. An unreadable file or invalid JSON panics, since the
// server cannot start with a config it was told to use but cannot read.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	// database_dsn may be set to "" explicitly to select the in-memory store
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.OTPEncryptionKey, c.OTPEncryptionKey)
	setString(&config.OTPIssuer, c.OTPIssuer)
	setString(&config.BaseURL, c.BaseURL)
	setDuration(&config.SessionAbsoluteTimeout, c.SessionAbsoluteTimeout)
	setDuration(&config.SessionIdleTimeout, c.SessionIdleTimeout)
	setDuration(&config.PendingOTPValidity, c.PendingOTPValidity)
	setInt(&config.LockoutThreshold, c.LockoutThreshold)
	setDuration(&config.LockoutWindow, c.LockoutWindow)
	setDuration(&config.LockoutDuration, c.LockoutDuration)
	setDuration(&config.ResetTokenValidity, c.ResetTokenValidity)
	setDuration(&config.VerificationTokenValidity, c.VerificationTokenValidity)
	if c.LoginRatePerSecond > 0 {
		config.LoginRatePerSecond = c.LoginRatePerSecond
	}
	setInt(&config.LoginRateBurst, c.LoginRateBurst)
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
