package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministic(t *testing.T) {
	first := Generate("neural networks learn distributed representations")
	second := Generate("neural networks learn distributed representations")

	require.Len(t, first, Dimensions)
	assert.Equal(t, first, second)
}

func TestGenerateEmptyTextYieldsZeroVector(t *testing.T) {
	vector := Generate("   \n\t ")
	require.Len(t, vector, Dimensions)
	for _, value := range vector {
		assert.Zero(t, value)
	}
}

func TestGenerateIgnoresShortTokens(t *testing.T) {
	assert.Equal(t, Generate("a an to of"), Generate(""))
}

func TestCosineIdenticalTextsScoreOne(t *testing.T) {
	a := Generate("graph clustering with bridge edges")
	b := Generate("graph clustering with bridge edges")

	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)
}

func TestCosineDisjointVocabularyScoresLow(t *testing.T) {
	a := Generate("quantum entanglement physics experiment")
	b := Generate("sourdough bread baking hydration")

	assert.Less(t, Cosine(a, b), 0.3)
}

func TestCosineHandlesDegenerateInput(t *testing.T) {
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine(Generate("something"), Generate("")))
	assert.Zero(t, Cosine([]float64{1, 0}, []float64{1, 0, 0}))
}

func TestRelatedTextsScoreHigherThanUnrelated(t *testing.T) {
	query := Generate("machine learning model training")
	related := Generate("training a machine learning model on labeled data")
	unrelated := Generate("mediterranean travel itinerary recommendations")

	assert.Greater(t, Cosine(query, related), Cosine(query, unrelated))
}
