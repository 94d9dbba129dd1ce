// Package crypto шифрование секретов аккаунтов маркетплейсов.
//
// Формат шифротекста: base64(nonce || ciphertext || tag), где nonce
// 24 байта XChaCha20-Poly1305. Ключ выводится из секрета конфигурации через HKDF-SHA256.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	minSecretLength = 16
	hkdfInfo        = "platform-credentials"
)

var (
	ErrWeakSecret       = errors.New("encryption key must be at least 16 characters long")
	ErrMalformedPayload = errors.New("malformed encrypted payload")
)

// SecretBox шифрует и расшифровывает секреты учетных данных
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox выводит ключ из секрета и соли конфигурации
func NewSecretBox(secret, salt string) (*SecretBox, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("ошибка вывода ключа: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации шифра: %w", err)
	}

	return &SecretBox{aead: aead}, nil
}

// Encrypt шифрует строку; additionalData привязывает шифротекст к записи (например, ID учетных данных)
func (b *SecretBox) Encrypt(plainText, additionalData string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plainText)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plainText), []byte(additionalData))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt расшифровывает строку, полученную от Encrypt
func (b *SecretBox) Decrypt(payload, additionalData string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(raw) < b.aead.NonceSize()+b.aead.Overhead() {
		return "", ErrMalformedPayload
	}

	nonce, ciphertext := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, ciphertext, []byte(additionalData))
	if err != nil {
		return "", fmt.Errorf("ошибка расшифровки: %w", err)
	}
	return string(plain), nil
}
