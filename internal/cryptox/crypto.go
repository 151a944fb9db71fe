// Package cryptox seals small secrets (TOTP seeds) for storage at rest with
// AES-256-GCM. The nonce is prepended to the ciphertext and the result is
// hex encoded so it fits a TEXT column.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"golang.org/x/crypto/argon2"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// keySalt is fixed so the same passphrase always opens existing rows.
var keySalt = []byte("buddiesfinder/otp-secrets")

// DeriveKey stretches an operator-supplied passphrase into an AES-256 key.
func DeriveKey(passphrase string) []byte {
	return argon2.IDKey([]byte(passphrase), keySalt, 1, 64*1024, 4, 32)
}

// Sealer encrypts and decrypts strings with a fixed key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer. The key must be 16, 24 or 32 bytes long.
func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aesgcm}, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := common.GenerateRandByteArray(s.aead.NonceSize())
	// nonce is used as the dst prefix so one string carries both
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(out), nil
}

// Open reverses Seal. Tampered data or a wrong key yield an error.
func (s *Sealer) Open(sealed string) (string, error) {
	data, err := hex.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return "", ErrCiphertextTooShort
	}
	plaintext, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
