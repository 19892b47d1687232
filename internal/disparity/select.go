// Winner-take-all disparity selection over streamed cost planes
package disparity

import "math"

// Disparity is the output sample type: int32 for integer maps, float32 for
// sub-pixel maps.
type Disparity interface {
	int32 | float32
}

// candidate is the per-pixel selection state. Candidates arrive in
// increasing disparity order, so a strict comparison keeps the smallest
// disparity among equal costs.
//
// second tracks the lowest cost among candidates that are not adjacent to the
// current winner. Candidate d is folded into it one step late (when d+1
// arrives), so a new winner at d+1 can still exclude it.
type candidate[A accumulator] struct {
	best   A
	lower  A // cost at bestD-1
	upper  A // cost at bestD+1
	second A
	bestD  int32
}

func newCandidates[A accumulator](n int) []candidate[A] {
	s := make([]candidate[A], n)
	for i := range s {
		s[i] = candidate[A]{best: infeasible, lower: infeasible, upper: infeasible, second: infeasible, bestD: -1}
	}
	return s
}

// update consumes cost c of candidate d; prev is the same pixel's cost at d-1.
func (s *candidate[A]) update(d int32, c, prev A) {
	switch {
	case c < 0:
		s.fold(d-1, prev)
	case s.bestD < 0 || c < s.best:
		// the old winner and its neighbours stop being excluded, except d-1
		// which borders the new winner
		if s.bestD >= 0 {
			s.keepSecond(s.lower)
			if s.bestD <= d-2 {
				s.keepSecond(s.best)
			}
			if s.bestD+1 <= d-2 {
				s.keepSecond(s.upper)
			}
		}
		s.best, s.bestD, s.lower, s.upper = c, d, prev, infeasible
	default:
		s.fold(d-1, prev)
		if d == s.bestD+1 {
			s.upper = c
		}
	}
}

// fold offers candidate d to the second best unless it neighbours the winner
func (s *candidate[A]) fold(d int32, c A) {
	if s.bestD >= 0 && d >= s.bestD-1 && d <= s.bestD+1 {
		return
	}
	s.keepSecond(c)
}

func (s *candidate[A]) keepSecond(c A) {
	if c < 0 {
		return
	}
	if s.second < 0 || c < s.second {
		s.second = c
	}
}

// accumulateRow feeds one row of a cost plane to the selection states of
// columns lo..hi. shift selects the reference image: 0 reads plane column x
// (left reference), 1 reads column x+d (right reference, whose pixel x
// matches left pixel x+d). A nil cur means every candidate is infeasible,
// which flushes the pending fold after the last disparity.
func accumulateRow[A accumulator](states []candidate[A], cur, prev []A, d, shift, lo, hi int) {
	for x := lo; x <= hi; x++ {
		j := x + shift*d
		var c, p A = infeasible, infeasible
		if j < len(cur) {
			c = cur[j]
		}
		if jp := j - shift; jp >= 0 && jp < len(prev) {
			p = prev[jp]
		}
		states[x].update(int32(d), c, p)
	}
}

// integerWinner reports the winning candidate as is
func integerWinner[A accumulator](s *candidate[A], _ int) int32 {
	return s.bestD
}

// subpixelWinner fits a parabola through the costs at d*-1, d*, d*+1 and
// returns its vertex. Winners at the ends of [0, maxDisparity], or with an
// infeasible neighbour, are reported as integers.
func subpixelWinner[A accumulator](s *candidate[A], maxDisparity int) float32 {
	d := s.bestD
	if d < 1 || int(d) > maxDisparity-1 || s.lower < 0 || s.upper < 0 {
		return float32(d)
	}
	c0, c1, c2 := float64(s.lower), float64(s.best), float64(s.upper)
	den := 2 * (c0 - 2*c1 + c2)
	if den == 0 {
		return float32(d)
	}
	offset := (c0 - c2) / den
	offset = math.Max(-1, math.Min(1, offset))
	return float32(float64(d) + offset)
}

// exceedsCeiling is the absolute match quality test
func exceedsCeiling[A accumulator](best A, ceiling float64) bool {
	return float64(best) > ceiling
}
