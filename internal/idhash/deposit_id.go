// Package idhash computes deterministic identifiers for crediting.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeDepositID computes the deterministic dedup key for a deposit using SHA256.
// Formula: SHA256(method|tx_hash), tx hash lowercased so the key is stable across
// checksum-cased and lowercase hash spellings.
// Returns hex-encoded hash (64 characters).
func ComputeDepositID(method, txHash string) string {
	data := fmt.Sprintf("%s|%s", method, strings.ToLower(txHash))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
