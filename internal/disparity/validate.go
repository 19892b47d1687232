// Right to left consistency validation
package disparity

import "fmt"

// validateRightToLeft clears valid[x] when the winner found from the other
// reference image disagrees by more than tolerance. primary and secondary hold
// integer winners per column, -1 where none exists. direction is -1 when
// primary is the left reference (left x matches right x-d) and +1 when it is
// the right reference (right x matches left x+d).
func validateRightToLeft(primary, secondary []int32, tolerance, direction int, valid []bool) {
	if tolerance <= 0 {
		return
	}
	for x, d := range primary {
		if d < 0 || !valid[x] {
			continue
		}
		j := x + direction*int(d)
		if j < 0 || j >= len(secondary) || secondary[j] < 0 {
			valid[x] = false
			continue
		}
		diff := int(secondary[j] - d)
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			valid[x] = false
		}
	}
}

// ValidateRightToLeft compares a left reference map against a right
// reference map of the same pair. The returned mask is true where the left
// cell holds a disparity that passes the check; a tolerance of zero or less
// only reports which cells are valid.
func ValidateRightToLeft(leftRef, rightRef *Map[int32], tolerance int) ([]bool, error) {
	if leftRef == nil || rightRef == nil {
		return nil, fmt.Errorf("%w: nil disparity map", ErrNilImage)
	}
	if leftRef.W != rightRef.W || leftRef.H != rightRef.H {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, leftRef.W, leftRef.H, rightRef.W, rightRef.H)
	}

	w := leftRef.W
	mask := make([]bool, w*leftRef.H)
	primary := make([]int32, w)
	secondary := make([]int32, w)
	for y := 0; y < leftRef.H; y++ {
		for x := 0; x < w; x++ {
			primary[x], secondary[x] = leftRef.winner(x, y), rightRef.winner(x, y)
			mask[y*w+x] = primary[x] >= 0
		}
		validateRightToLeft(primary, secondary, tolerance, -1, mask[y*w:(y+1)*w])
	}
	return mask, nil
}
