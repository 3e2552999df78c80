package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	keySalt   = "lan-gateway-allowlist-v1"
	keyLength = 32
	ivSize    = 16
	tagSize   = 16

	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

var errShortFile = errors.New("encrypted file too short")

// deriveKey turns the installation path into the store key. The key is never
// written anywhere, so moving the data directory orphans existing files.
func deriveKey(installationPath string) ([]byte, error) {
	return scrypt.Key([]byte(installationPath), []byte(keySalt), scryptN, scryptR, scryptP, keyLength)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// seal returns IV || tag || ciphertext.
func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	// Seal appends the tag after the ciphertext; the file keeps it up front.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, ivSize+tagSize+len(ct))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

func open(key, data []byte) ([]byte, error) {
	if len(data) < ivSize+tagSize {
		return nil, errShortFile
	}
	gcm, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	iv := data[:ivSize]
	tag := data[ivSize : ivSize+tagSize]
	ct := data[ivSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}
