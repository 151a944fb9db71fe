package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := totp.GenerateCode(secret, e.clock.Now())
	require.NoError(t, err)
	return c
}

func TestOTP_EnrollConfirmVerifyScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	enr, err := e.otp.Enroll(ctx, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, enr.Secret)
	assert.True(t, strings.HasPrefix(enr.URI, "otpauth://totp/"))
	assert.True(t, strings.HasPrefix(enr.QRCode, "data:image/png;base64,"))

	stored := e.reload(t, a.ID)
	assert.False(t, stored.OTPEnabled)
	assert.NotEmpty(t, stored.OTPSecret)
	assert.NotEqual(t, enr.Secret, stored.OTPSecret, "secret must be sealed at rest")
	assert.Equal(t, OTPPendingConfirmation, e.otp.State(stored))

	// a valid code for an unconfirmed secret is still rejected at login
	assert.False(t, e.otp.Verify(stored, e.code(t, enr.Secret)))

	ok, err := e.otp.ConfirmEnrollment(ctx, a.ID, e.code(t, enr.Secret))
	require.NoError(t, err)
	assert.True(t, ok)

	stored = e.reload(t, a.ID)
	assert.True(t, stored.OTPEnabled)
	assert.Equal(t, OTPEnabled, e.otp.State(stored))
	assert.True(t, e.otp.Verify(stored, e.code(t, enr.Secret)))
}

func TestOTP_ConfirmWrongCodeMutatesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	_, err := e.otp.Enroll(ctx, a.ID)
	require.NoError(t, err)
	before := e.reload(t, a.ID)

	ok, err := e.otp.ConfirmEnrollment(ctx, a.ID, "000000")
	require.NoError(t, err)
	assert.False(t, ok)

	after := e.reload(t, a.ID)
	assert.Equal(t, before.OTPSecret, after.OTPSecret)
	assert.False(t, after.OTPEnabled)
}

func TestOTP_ConfirmWithoutEnrollment(t *testing.T) {
	e := newEnv(t)
	a := e.seed(t, "a@x.com", "pw1secret")

	_, err := e.otp.ConfirmEnrollment(context.Background(), a.ID, "123456")
	assert.ErrorIs(t, err, common.ErrNoSecretProvisioned)
}

func TestOTP_EnrollUnknownAccount(t *testing.T) {
	e := newEnv(t)

	_, err := e.otp.Enroll(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestOTP_EnrollWhileEnabledIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	enr, err := e.otp.Enroll(ctx, a.ID)
	require.NoError(t, err)
	ok, err := e.otp.ConfirmEnrollment(ctx, a.ID, e.code(t, enr.Secret))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.otp.Enroll(ctx, a.ID)
	assert.ErrorIs(t, err, common.ErrOTPAlreadyEnabled)
}

func TestOTP_ReEnrollReplacesPendingSecret(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	first, err := e.otp.Enroll(ctx, a.ID)
	require.NoError(t, err)
	second, err := e.otp.Enroll(ctx, a.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	ok, err := e.otp.ConfirmEnrollment(ctx, a.ID, e.code(t, first.Secret))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.otp.ConfirmEnrollment(ctx, a.ID, e.code(t, second.Secret))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTP_DisableClearsSecret(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	enr, err := e.otp.Enroll(ctx, a.ID)
	require.NoError(t, err)
	_, err = e.otp.ConfirmEnrollment(ctx, a.ID, e.code(t, enr.Secret))
	require.NoError(t, err)

	require.NoError(t, e.otp.Disable(ctx, a.ID))

	stored := e.reload(t, a.ID)
	assert.False(t, stored.OTPEnabled)
	assert.Empty(t, stored.OTPSecret)
	assert.Equal(t, OTPNotEnrolled, e.otp.State(stored))
	assert.False(t, e.otp.Verify(stored, e.code(t, enr.Secret)))

	assert.ErrorIs(t, e.otp.Disable(ctx, "missing"), common.ErrorNotFound)
}

func TestOTP_VerifyToleratesOneStepSkew(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	enr, err := e.otp.Enroll(ctx, a.ID)
	require.NoError(t, err)
	_, err = e.otp.ConfirmEnrollment(ctx, a.ID, e.code(t, enr.Secret))
	require.NoError(t, err)
	stored := e.reload(t, a.ID)

	code := e.code(t, enr.Secret)
	e.clock.Advance(30 * time.Second)
	assert.True(t, e.otp.Verify(stored, code))

	e.clock.Advance(time.Minute)
	assert.False(t, e.otp.Verify(stored, code))
}

func TestOTP_VerifyWithNilAccount(t *testing.T) {
	e := newEnv(t)
	assert.False(t, e.otp.Verify(nil, "123456"))
}

func TestOTPState_String(t *testing.T) {
	assert.Equal(t, "not_enrolled", OTPNotEnrolled.String())
	assert.Equal(t, "pending_confirmation", OTPPendingConfirmation.String())
	assert.Equal(t, "enabled", OTPEnabled.String())
}
