// Package crypto seals secrets at rest with AES-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// KeyEnv names the environment variable holding the AES key.
const KeyEnv = "INSIGHTS_ENC_KEY"

func keyBytes() ([]byte, error) {
	k := os.Getenv(KeyEnv)
	if len(k) == 0 {
		return nil, fmt.Errorf("%s not set", KeyEnv)
	}
	b := []byte(k)
	if l := len(b); l != 16 && l != 24 && l != 32 {
		return nil, fmt.Errorf("invalid key length %d", l)
	}
	return b, nil
}

// CheckEnv validates the encryption key without using it.
func CheckEnv() error {
	_, err := keyBytes()
	return err
}

func gcm() (cipher.AEAD, error) {
	key, err := keyBytes()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plain with a random nonce prepended to the ciphertext.
func Encrypt(plain []byte) ([]byte, error) {
	g, err := gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, g.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return g.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(ciphertext []byte) ([]byte, error) {
	g, err := gcm()
	if err != nil {
		return nil, err
	}
	n := g.NonceSize()
	if len(ciphertext) < n {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return g.Open(nil, ciphertext[:n], ciphertext[n:], nil)
}

// EncryptString is Encrypt for text columns; the result is base64.
func EncryptString(s string) (string, error) {
	b, err := Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecryptString reverses EncryptString.
func DecryptString(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	p, err := Decrypt(b)
	if err != nil {
		return "", err
	}
	return string(p), nil
}
