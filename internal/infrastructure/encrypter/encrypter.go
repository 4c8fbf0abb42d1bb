// Package encrypter seals short strings (cookies, signed tokens, one-off secrets) with the
// application key.
package encrypter

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrDecrypt is returned for payloads that were tampered with or sealed with another key.
	ErrDecrypt = errors.New("encrypter: unable to decrypt payload")
	// ErrInvalidKey is returned when the key does not decode to 32 bytes.
	ErrInvalidKey = errors.New("encrypter: key must be 32 bytes of base64")
)

// Encrypter seals data with XChaCha20-Poly1305.
type Encrypter struct {
	key []byte
}

// New creates an encrypter from a base64 (standard or URL) encoded 32 byte key.
func New(encodedKey string) (*Encrypter, error) {
	key, err := decodeKey(encodedKey)
	if err != nil {
		return nil, err
	}
	return &Encrypter{key: key}, nil
}

// GenerateKey returns a fresh random key encoded for New.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func decodeKey(encoded string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil && len(key) == chacha20poly1305.KeySize {
			return key, nil
		}
	}
	return nil, ErrInvalidKey
}

// Encrypt seals plain and returns URL safe base64 of nonce||ciphertext.
func (e *Encrypter) Encrypt(plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encrypter: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a payload produced by Encrypt.
func (e *Encrypter) Decrypt(payload string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrDecrypt
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrDecrypt
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
