package cardnumber

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the minimum length of the master secret.
const MinSecretLength = 32

// Cipher encrypts card numbers and derives lookup fingerprints from them.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Fingerprint(plain string) string
}

// AESCipher is a Cipher using AES-256-GCM for encryption and HMAC-SHA256 for fingerprints.
// Both keys are derived from a single master secret.
type AESCipher struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewAESCipher derives encryption and fingerprint keys from secret.
func NewAESCipher(secret string) (*AESCipher, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("card encryption key must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}

	encKey, err := deriveKey(secret, "card-number-encryption")
	if err != nil {
		return nil, err
	}
	macKey, err := deriveKey(secret, "card-number-fingerprint")
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	return &AESCipher{aead: aead, macKey: macKey}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (c *AESCipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("input data is empty")
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *AESCipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}

	plain, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}

// Fingerprint returns the hex HMAC-SHA256 of the normalized number.
func (c *AESCipher) Fingerprint(plain string) string {
	h := hmac.New(sha256.New, c.macKey)
	h.Write([]byte(Normalize(plain)))
	return hex.EncodeToString(h.Sum(nil))
}
