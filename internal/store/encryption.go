package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	nonceSize     = 12
	keySize       = 32
	keyIterations = 100000
	deriveSalt    = "wagateway-document-store-v1"

	// Encrypted bodies are prefixed so plaintext documents written before
	// encryption was enabled remain readable
	sealedPrefix = "wgv1:"
)

type encryptor struct {
	gcm cipher.AEAD
}

func newEncryptor() (*encryptor, error) {
	if !encryptionEnabled() {
		return &encryptor{}, nil
	}

	key, err := deriveKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) Encrypt(body []byte) ([]byte, error) {
	if e.gcm == nil || len(body) == 0 {
		return body, nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.gcm.Seal(nil, nonce, body, nil)
	out := make([]byte, 0, len(sealedPrefix)+nonceSize+len(sealed))
	out = append(out, sealedPrefix...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (e *encryptor) Decrypt(body []byte) ([]byte, error) {
	if len(body) < len(sealedPrefix) || string(body[:len(sealedPrefix)]) != sealedPrefix {
		return body, nil
	}
	if e.gcm == nil {
		return nil, fmt.Errorf("document is encrypted but encryption is disabled")
	}

	data := body[len(sealedPrefix):]
	if len(data) < nonceSize {
		return nil, fmt.Errorf("sealed document too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plain, err := e.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plain, nil
}

func deriveKey() ([]byte, error) {
	secret := os.Getenv("WAGATEWAY_ENCRYPTION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("WAGATEWAY_ENCRYPTION_SECRET environment variable is required when encryption is enabled")
	}

	if len(secret) < 32 {
		return nil, fmt.Errorf("encryption secret must be at least 32 characters long")
	}

	return pbkdf2.Key([]byte(secret), []byte(deriveSalt), keyIterations, keySize, sha256.New), nil
}

func encryptionEnabled() bool {
	return os.Getenv("WAGATEWAY_ENABLE_ENCRYPTION") == "true"
}
