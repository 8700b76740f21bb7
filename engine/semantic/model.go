package semantic

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hit is a single vector index hit. Distance is a dissimilarity in [0, 2]
// derived from the cosine score (smaller = more similar).
type Hit struct {
	ID       string         `json:"id"`
	Distance float32        `json:"distance"`
	Document string         `json:"document"`
	Payload  map[string]any `json:"payload"`
}

// VectorRecord is a single point to store.
type VectorRecord struct {
	ID        string
	Document  string
	Embedding []float32
	Payload   map[string]any
}

// DeterministicID maps an arbitrary key to a stable UUID-shaped point ID.
// Re-indexing the same key overwrites the previous point, which is how the
// one-live-profile-per-user invariant is enforced.
func DeterministicID(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:16])
	// Stamp version/variant nibbles so Qdrant accepts it as a UUID.
	b := []byte(h[:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32])
	b[14] = '5'
	b[19] = '8'
	return string(b)
}
