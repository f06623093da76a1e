// Package identity computes content identities for media assets.
//
// An identity is the lowercase hex SHA-256 digest of the asset's bytes. It is
// the primary key for the asset's processed-state record and never changes
// when the file is moved or renamed. The short form (first 8 characters) is
// used wherever the token becomes part of a human-visible name, most notably
// the deterministic fallback base names substituted when the naming service
// fails.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// ShortLength is the number of identity characters used in fallback names.
const ShortLength = 8

const fallbackPrefix = "generic-media"

// FromBytes returns the content identity for the given bytes.
func FromBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FromReader streams r through the hash and returns the content identity.
func FromReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// FromFile returns the content identity of the file at path.
func FromFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return FromReader(file)
}

// Valid reports whether token looks like a content identity produced by this
// package: 64 lowercase hex characters.
func Valid(token string) bool {
	if len(token) != sha256.Size*2 {
		return false
	}
	for _, r := range token {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// Short returns the leading characters of token used in fallback names. Short
// tokens are returned unchanged.
func Short(token string) string {
	if len(token) <= ShortLength {
		return token
	}
	return token[:ShortLength]
}

// Fallback derives a deterministic substitute base name from an identity and a
// failure reason tag, e.g. "generic-media-script-failed-3a7bd3e2". The same
// identity and reason always produce the same name, so retried runs reuse the
// derivative files written under it. An empty reason yields
// "generic-media-<short>".
func Fallback(token, reason string) string {
	reason = strings.Trim(strings.TrimSpace(reason), "-")
	if reason == "" {
		return fallbackPrefix + "-" + Short(token)
	}
	return fallbackPrefix + "-" + reason + "-" + Short(token)
}
