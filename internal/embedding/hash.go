package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"docsearch/internal/config"
)

// HashEmbedder is a deterministic offline provider: each token hashes to a
// fixed pseudo-random direction and the document vector is their normalized
// sum. Overlapping token sets therefore produce higher cosine similarity,
// which is enough signal for tests and for builds with no API access. It is
// not a semantic model.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash embedder of the given dimension.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = config.DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (h *HashEmbedder) Dimension() int { return h.dimensions }

// Embed returns the normalized sum of per-token hash directions.
func (h *HashEmbedder) Embed(text string) ([]float32, error) {
	out := make([]float32, h.dimensions)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h.addToken(out, tok)
	}
	normalize(out)
	return out, nil
}

// EmbedBatch embeds each text independently; it cannot fail.
func (h *HashEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := h.Embed(t)
		out[i] = v
	}
	return out, nil
}

// addToken accumulates the token's hash direction into v. The SHA-256 of the
// token seeds a splitmix64 stream so every component is determined by the
// token alone.
func (h *HashEmbedder) addToken(v []float32, token string) {
	sum := sha256.Sum256([]byte(token))
	state := binary.LittleEndian.Uint64(sum[:8])
	for i := range v {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		// Map to [-1, 1].
		v[i] += float32(int64(z)) / float32(math.MaxInt64)
	}
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
