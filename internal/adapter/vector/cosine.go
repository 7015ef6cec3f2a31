// Package vector holds the brute-force similarity search shared by the
// embedded stores.
package vector

import (
	"math"
	"sort"

	"alsrag/internal/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopK scores every chunk accepted by filter against query and returns the k
// best, most similar first. Ties keep the order of chunks. Chunks stored with a
// zero embedding report similarity 0 but rank after every other chunk.
func TopK(query []float32, chunks []domain.Chunk, k int, filter domain.Filter) []domain.ScoredChunk {
	if k <= 0 {
		return nil
	}

	type ranked struct {
		domain.ScoredChunk
		rank float64
	}
	all := make([]ranked, 0, len(chunks))
	for _, c := range chunks {
		if !filter.Matches(c) {
			continue
		}
		sim := Cosine(query, c.Embedding)
		rank := sim
		if IsZero(c.Embedding) {
			rank = math.Inf(-1)
		}
		all = append(all, ranked{ScoredChunk: domain.ScoredChunk{Chunk: c, Similarity: sim}, rank: rank})
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].rank > all[j].rank
	})

	if k < len(all) {
		all = all[:k]
	}
	scored := make([]domain.ScoredChunk, len(all))
	for i, r := range all {
		scored[i] = r.ScoredChunk
	}
	return scored
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
