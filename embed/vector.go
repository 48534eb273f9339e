package embed

import "math"

// NormalizeVector scales v to unit length so stored document vectors can be
// compared with a plain dot product. The input is left untouched; a zero or
// empty vector comes back as an equal-length zero vector.
func NormalizeVector(v []float32) []float32 {
	out := make([]float32, len(v))

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}

	inv := float32(1 / math.Sqrt(sum))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
