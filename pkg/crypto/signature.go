package crypto

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
)

// Signature computes the platform callback signature: the parts are sorted
// lexicographically, concatenated and SHA1-digested, and the digest is
// returned hex-encoded.
func Signature(parts ...string) string {
	sorted := make([]string, len(parts))
	copy(sorted, parts)
	sort.Strings(sorted)

	h := sha1.New()
	for _, part := range sorted {
		io.WriteString(h, part)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a callback signature against the configured token.
// For encrypted-mode callbacks the ciphertext is passed as extra so it is
// covered by the signature. Returns ErrInvalidSignature on mismatch; any
// other error indicates malformed input.
func VerifySignature(token, timestamp, nonce, signature string, extra ...string) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}
	if timestamp == "" || nonce == "" {
		return fmt.Errorf("timestamp and nonce are required")
	}
	if signature == "" {
		return fmt.Errorf("signature is required")
	}

	parts := append([]string{token, timestamp, nonce}, extra...)
	if Signature(parts...) != signature {
		return ErrInvalidSignature
	}

	return nil
}
