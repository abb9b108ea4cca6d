package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for changing the hashed shape later.
const (
	DomainDescriptor = "nodegraph/descriptor/v1"
	DomainSubgraph   = "nodegraph/subgraph/v1"
	DomainPlan       = "nodegraph/plan/v1"
)

// HashWithDomain computes SHA256(domain || 0x00 || data) as lowercase hex.
// The null separator keeps domain and data from running into each other.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashCanonical canonicalizes v and hashes it under domain.
func HashCanonical(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashWithDomain(domain, data), nil
}

// MustHashCanonical is HashCanonical that panics on error.
// Use only in tests or with values known to be valid.
func MustHashCanonical(domain string, v any) string {
	h, err := HashCanonical(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
