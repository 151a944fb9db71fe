package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{
			"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-k", "otpkey", "-u", "https://example.org",
			"-i", "5", "-x", "20", "-l", "3", "-w", "4", "-m", "6", "-r", "30", "-e", "smtp.example.org", "-t",
		}, expectPanic: false,
			expected: &Config{
				HTTPAddr:               "127.0.0.1:9090",
				DatabaseDSN:            "db",
				SecretKey:              "secret",
				OTPEncryptionKey:       "otpkey",
				BaseURL:                "https://example.org",
				SessionIdleTimeout:     5 * time.Minute,
				SessionAbsoluteTimeout: 20 * time.Minute,
				LockoutThreshold:       3,
				LockoutWindow:          4 * time.Minute,
				LockoutDuration:        6 * time.Minute,
				ResetTokenValidity:     30 * time.Minute,
				SMTPHost:               "smtp.example.org",
				SecureCookies:          true,
			}},
		{name: "foreign flags ignored", args: []string{"-config", "x.json", "-z", "1"}, expectPanic: false,
			expected: &Config{}},
		{name: "bad integer", args: []string{"-i", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config, tt.args) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config, tt.args) })
			}
		})
	}
}
