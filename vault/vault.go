// Package vault encrypts stored signing credentials at rest. The key is
// derived from a server-held secret; ciphertexts and IVs travel as base64 so
// they can live in text columns.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var ErrDecryptionFailed = errors.New("vault: decryption failed")

type Vault struct {
	key []byte
}

// New derives a 256-bit AES key from the server secret. The secret is the
// same configuration value that signs session tokens; it never touches the
// database.
func New(secret string) *Vault {
	key := sha256.Sum256([]byte(secret))
	return &Vault{key: key[:]}
}

// Encrypt encrypts plaintext with AES-256-CBC under a fresh random IV and
// returns both as base64. Every call gets its own IV; callers encrypting
// multiple fields of one record store one IV per field.
func (v *Vault) Encrypt(plaintext []byte) (ciphertextB64, ivB64 string, err error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt reverses Encrypt. Wrong key material or corrupted input surfaces as
// ErrDecryptionFailed, never as silently wrong plaintext.
func (v *Vault) Decrypt(ciphertextB64, ivB64 string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecryptionFailed
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpad(plaintext, aes.BlockSize)
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrDecryptionFailed
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrDecryptionFailed
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrDecryptionFailed
		}
	}
	return data[:len(data)-n], nil
}
