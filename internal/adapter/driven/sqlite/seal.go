package sqlite

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealer encrypts credential values with XChaCha20-Poly1305. The stored form
// is base64(nonce || ciphertext || tag).
type sealer struct {
	key []byte // 32 bytes; nil when sealing is disabled.
}

func (s sealer) enabled() bool {
	return s.key != nil
}

func (s sealer) seal(plaintext string, additionalData []byte) (string, error) {
	if s.key == nil {
		return "", errEncryptionKeyNotSet
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("chacha20poly1305.NewX: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), additionalData)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s sealer) open(encoded string, additionalData []byte) (string, error) {
	if s.key == nil {
		return "", errEncryptionKeyNotSet
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("chacha20poly1305.NewX: %w", err)
	}

	if len(data) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return "", fmt.Errorf("aead open: %w", err)
	}
	return string(plaintext), nil
}
