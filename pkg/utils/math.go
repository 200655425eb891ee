package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm and reports whether it could.
// A zero or non-finite norm leaves the slice unchanged and returns false.
func NormalizeL2(x []float32) bool {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
		return false
	}
	inv := 1 / math.Sqrt(sum)
	for i := range x {
		x[i] = float32(float64(x[i]) * inv)
	}
	return true
}
