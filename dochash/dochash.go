// Package dochash computes the canonical content fingerprint of a signable
// document. The digest doubles as the public validation token, so the field
// canonicalization must stay stable across releases.
package dochash

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// TimeLayout is the canonical timestamp encoding used inside hash input.
// RFC 3339 with nanoseconds keeps the round trip lossless regardless of how
// the timestamp was stored or parsed.
const TimeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// Sum digests the given fields in order, concatenated as UTF-8 with no
// separators, and returns the lowercase hex SHA-256.
func Sum(fields []string) string {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FormatTime canonicalizes a timestamp for use as a hash field.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Valid reports whether s has the shape of a document hash: 64 lowercase hex
// characters. Used to cheaply reject garbage before hitting storage.
func Valid(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
