package ai

import "math"

// FallbackEmbedding derives a pseudo-vector from a rolling 32-bit hash of
// the text. It carries no semantic meaning but is pure and deterministic:
// identical input always yields an identical vector, and it never fails, so
// the ingestion and query paths always have a usable fixed-size vector even
// when the remote embedding service is down or out of quota.
func FallbackEmbedding(text string, dimension int) []float32 {
	var hash int32
	for _, ch := range []byte(text) {
		hash = (hash << 5) - hash + int32(ch)
	}

	vector := make([]float32, dimension)
	for i := range vector {
		vector[i] = float32(math.Sin(float64(hash)+float64(i)) * 0.5)
	}
	return vector
}
