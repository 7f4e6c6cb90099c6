// Package vecmath provides small vector math helpers shared by the
// retrieval index implementations.
package vecmath

import "math"

// CosineSimilarity returns the cosine similarity between a and b in [-1, 1].
// Returns 0 for mismatched lengths, empty vectors, or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
