package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/cryptox"
	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

type OTPState int

const (
	OTPNotEnrolled OTPState = iota
	OTPPendingConfirmation
	OTPEnabled
)

func (s OTPState) String() string {
	switch s {
	case OTPPendingConfirmation:
		return "pending_confirmation"
	case OTPEnabled:
		return "enabled"
	default:
		return "not_enrolled"
	}
}

// OTPEnrollment is handed to the user once. QRCode is a PNG data URL of URI.
type OTPEnrollment struct {
	Secret string
	URI    string
	QRCode string
}

var otpValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

const qrSize = 200

// OTPManager owns the TOTP secret lifecycle. Secrets are stored sealed.
type OTPManager struct {
	repos  repomanager.RepositoryManager
	tx     dbx.Transactor
	sealer *cryptox.Sealer
	issuer string
	log    logging.Logger
	now    func() time.Time
}

func NewOTPManager(d Deps, sealer *cryptox.Sealer, issuer string) *OTPManager {
	return &OTPManager{
		repos:  d.Repos,
		tx:     d.Tx,
		sealer: sealer,
		issuer: issuer,
		log:    d.Log.With("module", "otp"),
		now:    d.clock(),
	}
}

func (m *OTPManager) State(a *models.Account) OTPState {
	switch {
	case a.OTPSecret == "":
		return OTPNotEnrolled
	case !a.OTPEnabled:
		return OTPPendingConfirmation
	default:
		return OTPEnabled
	}
}

// Enroll stores a fresh unconfirmed secret, replacing any earlier pending
// one. An account with OTP enabled must disable it first.
func (m *OTPManager) Enroll(ctx context.Context, accountID string) (*OTPEnrollment, error) {
	a, err := m.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.OTPEnabled {
		return nil, common.ErrOTPAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: a.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}

	sealed, err := m.sealer.Seal(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("seal totp secret: %w", err)
	}
	if err := m.repos.Accounts(m.tx.Conn()).SetOTP(ctx, a.ID, sealed, false); err != nil {
		return nil, persistence("store otp secret", err)
	}

	qr, err := qrDataURL(key)
	if err != nil {
		return nil, err
	}

	m.log.Info(ctx, "otp enrollment started", "account_id", a.ID)
	return &OTPEnrollment{Secret: key.Secret(), URI: key.URL(), QRCode: qr}, nil
}

// ConfirmEnrollment enables OTP when code matches the pending secret. A wrong
// code changes nothing.
func (m *OTPManager) ConfirmEnrollment(ctx context.Context, accountID string, code string) (bool, error) {
	a, err := m.account(ctx, accountID)
	if err != nil {
		return false, err
	}
	if a.OTPSecret == "" {
		return false, common.ErrNoSecretProvisioned
	}
	if a.OTPEnabled {
		return m.validate(ctx, a, code), nil
	}

	if !m.validate(ctx, a, code) {
		m.log.Warn(ctx, "otp confirmation failed", "account_id", a.ID)
		return false, nil
	}

	err = m.repos.Accounts(m.tx.Conn()).EnableOTP(ctx, a.ID, a.OTPSecret)
	if errors.Is(err, common.ErrorNotFound) {
		// a newer enrollment replaced the secret this code was checked against
		return false, nil
	}
	if err != nil {
		return false, persistence("enable otp", err)
	}

	m.log.Info(ctx, "otp enabled", "account_id", a.ID)
	return true, nil
}

// Verify checks a login code. It is false whenever OTP is not enabled.
func (m *OTPManager) Verify(a *models.Account, code string) bool {
	if a == nil || !a.OTPEnabled || a.OTPSecret == "" {
		return false
	}
	return m.validate(context.Background(), a, code)
}

// Disable turns OTP off and drops the secret, returning the account to the
// not-enrolled state.
func (m *OTPManager) Disable(ctx context.Context, accountID string) error {
	if err := m.repos.Accounts(m.tx.Conn()).SetOTP(ctx, accountID, "", false); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return persistence("disable otp", err)
	}
	m.log.Info(ctx, "otp disabled", "account_id", accountID)
	return nil
}

func (m *OTPManager) validate(ctx context.Context, a *models.Account, code string) bool {
	secret, err := m.sealer.Open(a.OTPSecret)
	if err != nil {
		m.log.Error(ctx, "cannot open otp secret", "account_id", a.ID, "error", err)
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, m.now(), otpValidateOpts)
	return err == nil && ok
}

func (m *OTPManager) account(ctx context.Context, accountID string) (*models.Account, error) {
	a, err := m.repos.Accounts(m.tx.Conn()).GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, persistence("load account", err)
	}
	return a, nil
}

func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
