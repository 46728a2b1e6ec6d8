package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// ErrCryptoFailure marks a blob that is malformed or failed authentication.
// Callers treat it as "reconnect required" for the credential record.
var ErrCryptoFailure = errors.New("crypto_failure")

const (
	keyLen  = 32
	ivLen   = 16
	tagLen  = 16
	keySalt = "salt"
)

// Vault performs AES-256-GCM encryption of stored credentials. The key is
// derived once from the process-wide secret; the instance is read-only
// after construction and safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
}

func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault: empty encryption key")
	}
	key, err := scrypt.Key([]byte(secret), []byte(keySalt), 16384, 8, 1, keyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt returns the blob as "iv:tag:ciphertext" with hex-encoded parts.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagLen], sealed[len(sealed)-tagLen:]
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt rejects any blob that does not split into exactly three hex
// parts, and any blob whose auth tag does not verify. It never returns
// garbage plaintext.
func (v *Vault) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: blob has %d parts, want 3", ErrCryptoFailure, len(parts))
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLen {
		return "", fmt.Errorf("%w: bad iv", ErrCryptoFailure)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLen {
		return "", fmt.Errorf("%w: bad auth tag", ErrCryptoFailure)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrCryptoFailure)
	}
	plain, err := v.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrCryptoFailure)
	}
	return string(plain), nil
}
