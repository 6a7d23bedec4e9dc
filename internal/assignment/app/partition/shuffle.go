package partition

import (
	"encoding/binary"
	"math/rand"

	"golang.org/x/crypto/blake2b"
)

// seededShuffle returns a new slice containing items in a deterministic
// pseudo-random order derived from seedInput. Two calls with the same
// seedInput (e.g. the same group prefix and sorted snapshot) always produce
// the same order. Using a cryptographic hash rather than summing bytes
// avoids clustering for snapshots that differ only by a small suffix (the
// common case: one partition added to a large topic).
func seededShuffle(items []string, seedInput string) []string {
	out := make([]string, len(items))
	copy(out, items)

	sum := blake2b.Sum256([]byte(seedInput))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	r := rand.New(rand.NewSource(seed))

	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
