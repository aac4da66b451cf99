package processing

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// ContentFingerprint hashes a record's identity-bearing fields: description,
// version name, protocol number, and max players. It is intentionally
// coarse: dynamic decoration (online count, player sample) is excluded so
// the same logical response hashes identically across probes, which is what
// repeat detection across ports needs.
func ContentFingerprint(r *Record) uint64 {
	h := blake3.New()
	_, _ = h.WriteString(r.Description)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(r.VersionName)
	_, _ = h.Write([]byte{0})

	var nums [8]byte
	binary.LittleEndian.PutUint32(nums[:4], uint32(r.Protocol))
	binary.LittleEndian.PutUint32(nums[4:], uint32(r.MaxPlayers))
	_, _ = h.Write(nums[:])

	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}
