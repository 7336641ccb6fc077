package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"signal-sweep-lab/internal/domain"
)

// ComputeOutcomeID computes a deterministic outcome id using SHA256.
// Formula: SHA256(signal_id|sl|activation|callback)
// Returns hex-encoded hash (64 characters).
//
// The id is the persistence key for (signal, parameter set), making
// re-simulation idempotent.
func ComputeOutcomeID(signalID int64, params domain.ParameterSet) string {
	data := fmt.Sprintf("%d|%.4f|%.4f|%.4f",
		signalID,
		params.StopLossPct,
		params.TrailingActivationPct,
		params.TrailingCallbackPct,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
