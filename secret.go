package main

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const encryptionKeySize = 32

// ErrInvalidToken is returned when a sealed token is malformed,
// forged, or was sealed under a different key.
var ErrInvalidToken = errors.New("invalid secret token")

// SecretCodec seals the hidden target number so it can ride through
// client-visible session storage without being readable or forgeable.
// AES-256-GCM, nonce prefixed to the ciphertext, base64url on the wire.
type SecretCodec struct {
	aead cipher.AEAD
}

// NewSecretCodec builds a codec from a 32-byte key.
func NewSecretCodec(key []byte) (*SecretCodec, error) {
	if len(key) != encryptionKeySize {
		return nil, fmt.Errorf("invalid encryption key size: got %d, want %d", len(key), encryptionKeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &SecretCodec{aead: aead}, nil
}

// Seal encrypts the target number into an opaque token.
func (sc *SecretCodec) Seal(n int) (string, error) {
	nonce := make([]byte, sc.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	plaintext := []byte(strconv.Itoa(n))
	sealed := sc.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unseal decrypts and verifies a token produced by Seal. Any
// malformed, truncated or tampered input yields ErrInvalidToken.
func (sc *SecretCodec) Unseal(token string) (int, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrInvalidToken
	}
	if len(sealed) < sc.aead.NonceSize() {
		return 0, ErrInvalidToken
	}
	nonce, ciphertext := sealed[:sc.aead.NonceSize()], sealed[sc.aead.NonceSize():]
	plaintext, err := sc.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return 0, ErrInvalidToken
	}
	n, err := strconv.Atoi(string(plaintext))
	if err != nil {
		return 0, ErrInvalidToken
	}
	return n, nil
}

// randomKey returns a fresh 32-byte key from the system CSPRNG.
func randomKey() []byte {
	key := make([]byte, encryptionKeySize)
	if _, err := rand.Read(key); err != nil {
		logger.Fatal().Err(err).Msg("generating random key")
	}
	return key
}
