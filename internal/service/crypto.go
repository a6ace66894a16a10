package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

// MinKeyLength is the shortest DBSEED_KEY accepted.
const MinKeyLength = 32

// SecretBox seals short secrets such as database passwords with AES-256-GCM
// so they can sit in a .env file.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox derives the AES-256 key from keyStr with SHA-256.
func NewSecretBox(keyStr string) (*SecretBox, error) {
	if len(keyStr) < MinKeyLength {
		return nil, errors.New("key must be at least 32 characters")
	}
	key := sha256.Sum256([]byte(keyStr))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &SecretBox{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext).
func (b *SecretBox) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (b *SecretBox) Open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}

	nonceSize := b.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
