package cryptoutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidState is returned by VerifyState for every failure mode —
// malformed encoding, MAC mismatch, or expiry — so callers cannot branch on
// the failure reason (spec §4.3, §7).
var ErrInvalidState = errors.New("invalid_state")

// SignState implements spec §4.3 Sign: emit
// base64url_no_pad(payload) + "." + base64url_no_pad(HMAC_SHA256(payload, secret)).
func SignState(payload interface{}, secret []byte) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payloadBytes)
	tag := mac.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(payloadBytes) + "." +
		base64.RawURLEncoding.EncodeToString(tag), nil
}

// VerifyState implements spec §4.3 Verify: split at the last ".", decode
// both halves, recompute the MAC over the decoded payload bytes, compare in
// constant time, decode the payload JSON, and reject an expired payload.
// out must be a pointer to the destination payload type.
func VerifyState(state string, secret []byte, now int64, out interface{}) error {
	idx := strings.LastIndex(state, ".")
	if idx < 0 {
		return ErrInvalidState
	}

	payloadB64, tagB64 := state[:idx], state[idx+1:]

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return ErrInvalidState
	}
	tag, err := base64.RawURLEncoding.DecodeString(tagB64)
	if err != nil {
		return ErrInvalidState
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payloadBytes)
	expectedTag := mac.Sum(nil)

	if subtle.ConstantTimeCompare(tag, expectedTag) != 1 {
		return ErrInvalidState
	}

	if err := json.Unmarshal(payloadBytes, out); err != nil {
		return ErrInvalidState
	}

	exp, ok := expiryOf(out)
	if ok && exp <= now {
		return ErrInvalidState
	}

	return nil
}

// expiryOf extracts the expiry from a decoded state payload through its
// ExpiresAt() int64 method, so VerifyState stays generic over payload shape.
// A payload without that method is never treated as expired.
func expiryOf(v interface{}) (int64, bool) {
	e, ok := v.(interface{ ExpiresAt() int64 })
	if !ok {
		return 0, false
	}
	return e.ExpiresAt(), true
}
