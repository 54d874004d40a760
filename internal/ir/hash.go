package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainLayout = "triggersim/layout/v1"
	DomainTrace  = "triggersim/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LayoutHash computes the content hash of a layout. Two layouts hash equal
// exactly when their canonical JSON is identical, so order matters.
func LayoutHash(snapshots []TriggerSnapshot) (string, error) {
	if snapshots == nil {
		snapshots = []TriggerSnapshot{}
	}
	canonical, err := MarshalCanonical(snapshots)
	if err != nil {
		return "", fmt.Errorf("LayoutHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLayout, canonical), nil
}

// TraceHash computes the content hash of a trace. Replaying the same layout
// and stimuli must yield the same hash.
func TraceHash(entries []TraceEntry) (string, error) {
	if entries == nil {
		entries = []TraceEntry{}
	}
	canonical, err := MarshalCanonical(entries)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustLayoutHash is like LayoutHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustLayoutHash(snapshots []TriggerSnapshot) string {
	h, err := LayoutHash(snapshots)
	if err != nil {
		panic(err)
	}
	return h
}
