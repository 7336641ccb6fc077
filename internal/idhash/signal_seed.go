package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// ComputeSignalSeed derives a deterministic 32-bit RNG seed for a signal.
// Formula: SHA256("signal_id_<id>"), first 8 bytes big-endian, mod 2^32.
//
// The same signal always resolves tie-breaks identically across repeated
// runs and across parameter sets, while distinct signals are statistically
// independent.
func ComputeSignalSeed(signalID int64) uint32 {
	data := fmt.Sprintf("signal_id_%d", signalID)

	hash := sha256.Sum256([]byte(data))
	v := binary.BigEndian.Uint64(hash[:8])
	return uint32(v % (1 << 32))
}
