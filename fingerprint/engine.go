// Package fingerprint derives fixed-length numeric vectors from text for cheap
// approximate similarity scoring. The vectors are deterministic hash-bucket
// token histograms, not learned embeddings; two texts sharing vocabulary score
// close to each other under cosine similarity.
package fingerprint

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Dimensions is the fixed length of every generated vector.
const Dimensions = 128

// Generate returns the fingerprint vector for the given text. The same input
// always yields the same vector. Empty or token-free input yields a zero vector.
func Generate(text string) []float64 {
	vector := make([]float64, Dimensions)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vector
	}

	for _, token := range tokens {
		vector[bucket(token)]++
	}

	var norm float64
	for _, value := range vector {
		norm += value * value
	}
	if norm == 0 {
		return vector
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}

// Cosine returns the cosine similarity of two vectors. Mismatched lengths or a
// zero vector on either side yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) > 2 {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func bucket(token string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(token))
	return int(hasher.Sum32() % Dimensions)
}
