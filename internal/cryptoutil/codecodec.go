package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
)

// ErrInvalidGrant is returned by OpenCode for every failure mode — decode
// error, authentication failure, malformed JSON, or expiry — per spec §4.2
// and §7: decryption failure must be indistinguishable from tampering.
var ErrInvalidGrant = errors.New("invalid_grant")

// maxGrantSize bounds the plaintext a sealed code may decrypt to, guarding
// against memory abuse from an oversized ciphertext (spec §5).
const maxGrantSize = 64 * 1024

const nonceSize = 12

// deriveKey derives a 32-byte AES-256-GCM key from the server secret by
// hashing it with SHA-256. This lets operators supply any ≥32-byte base64
// secret without a separate KDF step (spec §4.2 rationale).
func deriveKey(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:]
}

// SealCode implements spec §4.2 Seal: canonical-JSON-encode grant, derive
// the AEAD key from secret, draw a fresh random nonce, AES-256-GCM encrypt,
// and emit base64url_no_pad(nonce || ciphertext_with_tag).
func SealCode(grant *Grant, secret []byte) (string, error) {
	plaintext, err := json.Marshal(grant)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	sealed := append(nonce, ciphertext...)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// OpenCode implements spec §4.2 Open: base64url-decode, split the nonce,
// AEAD-decrypt, deserialize, and reject an expired grant. Every failure
// collapses to ErrInvalidGrant, never revealing which step failed.
func OpenCode(code string, secret []byte, now int64) (*Grant, error) {
	raw, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return nil, ErrInvalidGrant
	}
	if len(raw) > maxGrantSize {
		return nil, ErrInvalidGrant
	}
	if len(raw) < nonceSize {
		return nil, ErrInvalidGrant
	}

	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, ErrInvalidGrant
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrInvalidGrant
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidGrant
	}
	if len(plaintext) > maxGrantSize {
		return nil, ErrInvalidGrant
	}

	var grant Grant
	if err := json.Unmarshal(plaintext, &grant); err != nil {
		return nil, ErrInvalidGrant
	}

	if grant.Exp <= now {
		return nil, ErrInvalidGrant
	}

	return &grant, nil
}
