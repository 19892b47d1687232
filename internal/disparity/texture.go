// Texture confidence test
package disparity

// textureAmbiguous reports whether the cost curve around the winner is too
// flat: second - best < threshold*best. The test is cross-multiplied so a
// perfect match (best == 0) never divides and is always kept. A pixel without
// a second candidate is kept as well.
func textureAmbiguous[A accumulator](best, second A, threshold float64) bool {
	if threshold <= 0 || best == 0 || second < 0 {
		return false
	}
	return float64(second-best) < threshold*float64(best)
}

// TextureAmbiguous exposes the test for callers holding raw costs. A negative
// second cost means there is no second candidate.
func TextureAmbiguous(best, second, threshold float64) bool {
	return textureAmbiguous(best, second, threshold)
}
