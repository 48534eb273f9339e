package embed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

func TestNormalizeVector_UnitLength(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})

	assert.InDelta(t, 1.0, magnitude(v), 1e-6)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
}

func TestNormalizeVector_ZeroVector(t *testing.T) {
	v := NormalizeVector([]float32{0, 0, 0})

	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestNormalizeVector_Empty(t *testing.T) {
	assert.Empty(t, NormalizeVector(nil))
}

func TestNormalizeVector_DoesNotMutateInput(t *testing.T) {
	original := []float32{3, 4}
	_ = NormalizeVector(original)

	assert.Equal(t, []float32{3, 4}, original)
}
