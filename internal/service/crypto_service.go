package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrIntegrity indicates ciphertext that is malformed, was encrypted under a
// different key, or was tampered with. Callers must abort the operation —
// never substitute default data.
var ErrIntegrity = errors.New("integrity error: malformed or corrupted ciphertext")

// CryptoService encrypts exam content and submissions at rest (AES-256-CBC,
// fresh random IV per call) and fingerprints plaintext with SHA-256.
// All methods are stateless and safe for concurrent use.
type CryptoService struct {
	key []byte
}

// NewCryptoService creates a CryptoService from a 32-byte AES key.
// Key validation happens at config load; this only guards the length
// so a misconstructed service cannot exist.
func NewCryptoService(key []byte) (*CryptoService, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &CryptoService{key: key}, nil
}

// Encrypt serializes v as JSON and encrypts it under the service key.
// The returned string is hex(iv) + ":" + hex(ciphertext); the colon cannot
// occur inside hex output, so the split on decrypt is unambiguous.
func (s *CryptoService) Encrypt(v interface{}) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize plaintext: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt into dst (a pointer). Any structural problem —
// bad format, bad hex, wrong block alignment, invalid padding, or JSON that
// no longer parses — is reported as ErrIntegrity.
func (s *CryptoService) Decrypt(encrypted string, dst interface{}) error {
	ivHex, ctHex, found := strings.Cut(encrypted, ":")
	if !found {
		return ErrIntegrity
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return ErrIntegrity
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return ErrIntegrity
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return ErrIntegrity
	}

	if err := json.Unmarshal(plaintext, dst); err != nil {
		return ErrIntegrity
	}
	return nil
}

// Hash returns the SHA-256 hex digest of v's JSON serialization.
// Used for tamper evidence, not secrecy — no key involved.
func (s *CryptoService) Hash(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize for hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyIntegrity recomputes the digest of v and compares it to expected.
// Exact match only; the digest is not a secret so timing is not a concern.
func (s *CryptoService) VerifyIntegrity(v interface{}, expected string) (bool, error) {
	computed, err := s.Hash(v)
	if err != nil {
		return false, err
	}
	return computed == expected, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("invalid padding length")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}
