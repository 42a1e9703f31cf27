// Package hashing produces the integrity anchors of a verification record:
// per-artifact SHA-256 digests, their Merkle root, and scoped hashes of the
// document number and user id. Everything here is pure and deterministic.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// EmptyMerkleSentinel is hashed to produce the root of an empty leaf set.
const EmptyMerkleSentinel = "kyc:empty-merkle-root"

// HashBytes returns the lowercase hex SHA-256 digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashString hashes the UTF-8 bytes of s.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// HashDocumentNumber scopes the number by its document type so the same
// digits under two types never collide.
func HashDocumentNumber(number, documentType string) string {
	return HashString(documentType + ":" + number)
}

// HashUserID hashes the canonical string form of a user id.
func HashUserID(userID string) string {
	return HashString(userID)
}

// MerkleRoot folds hex leaves pairwise, hashing the concatenation of each
// adjacent pair and carrying an odd tail by pairing it with itself.
// A single leaf is its own root.
func MerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return HashString(EmptyMerkleSentinel)
	}

	level := append([]string(nil), leaves...)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, HashString(level[i]+level[i+1]))
		}
		level = next
	}
	return level[0]
}

// Keccak256 returns the 0x-prefixed Keccak-256 digest used for on-chain values.
func Keccak256(b []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// VerificationHash commits to a payload by hashing its JSON encoding.
// encoding/json sorts map keys, so equal payloads hash equally.
func VerificationHash(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode verification payload: %w", err)
	}
	return Keccak256(raw), nil
}

// Bytes32 decodes a 64-char hex digest (optionally 0x-prefixed) into a fixed array.
func Bytes32(hexDigest string) ([32]byte, error) {
	var out [32]byte
	if len(hexDigest) >= 2 && hexDigest[:2] == "0x" {
		hexDigest = hexDigest[2:]
	}
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return out, fmt.Errorf("decode digest: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("digest has %d bytes, want 32", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
