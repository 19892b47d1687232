// Incremental sum of absolute differences over rectangular regions
package disparity

import "stereo-disparity/internal/core"

// accumulator is the widened type SAD costs are summed in
type accumulator interface {
	int32 | float64
}

// infeasible marks plane columns whose shifted window leaves the image.
// Real costs are never negative.
const infeasible = -1

// costAggregator computes one disparity's cost plane over a band of rows.
// It owns scratch buffers and must not be shared between goroutines.
type costAggregator[S core.Sample, A accumulator] struct {
	left, right *core.Gray[S]
	rx, ry      int

	// ring holds the 2*ry+1 absolute difference rows inside the vertical window
	ring [][]A
	// cols holds, per left column, the vertical window sum of ring
	cols []A
}

func newCostAggregator[S core.Sample, A accumulator](left, right *core.Gray[S], rx, ry int) *costAggregator[S, A] {
	ring := make([][]A, 2*ry+1)
	for i := range ring {
		ring[i] = make([]A, left.W)
	}
	return &costAggregator[S, A]{
		left:  left,
		right: right,
		rx:    rx,
		ry:    ry,
		ring:  ring,
		cols:  make([]A, left.W),
	}
}

// compute fills dst with cost(x, y, d) for rows y0 <= y < y1, one row of
// image width per output row. Rows must lie in [ry, height-1-ry]. Columns whose
// window leaves the left image, or whose shifted window leaves the right image,
// are set to infeasible.
func (c *costAggregator[S, A]) compute(d, y0, y1 int, dst []A) {
	w := c.left.W
	for i := range dst {
		dst[i] = infeasible
	}
	// left column x pairs with right column x-d, so only x >= d can contribute
	n := w - d
	if n <= 2*c.rx || y0 >= y1 {
		return
	}

	cols := c.cols[:n]
	for i := range cols {
		cols[i] = 0
	}
	for j := range c.ring {
		row := c.ring[j][:n]
		c.diffRow(row, y0-c.ry+j, d)
		for i, v := range row {
			cols[i] += v
		}
	}

	head := 0
	for y := y0; y < y1; y++ {
		if y > y0 {
			// slide the vertical window down one row, recycling the oldest buffer
			row := c.ring[head][:n]
			for i, v := range row {
				cols[i] -= v
			}
			c.diffRow(row, y+c.ry, d)
			for i, v := range row {
				cols[i] += v
			}
			head = (head + 1) % len(c.ring)
		}
		c.horizontal(dst[(y-y0)*w:(y-y0+1)*w], d)
	}
}

// diffRow writes |left(d+i, y) - right(i, y)| for every i < len(dst)
func (c *costAggregator[S, A]) diffRow(dst []A, y, d int) {
	l := c.left.Row(y)[d:]
	r := c.right.Row(y)
	for i := range dst {
		v := A(l[i]) - A(r[i])
		if v < 0 {
			v = -v
		}
		dst[i] = v
	}
}

// horizontal slides the window along one row of column sums. cols[i] belongs
// to left column d+i.
func (c *costAggregator[S, A]) horizontal(out []A, d int) {
	first := d + c.rx
	last := len(out) - 1 - c.rx
	if first > last {
		return
	}
	cols := c.cols

	var sum A
	for i := 0; i <= 2*c.rx; i++ {
		sum += cols[i]
	}
	out[first] = nonNegative(sum)
	for x := first + 1; x <= last; x++ {
		sum += cols[x+c.rx-d] - cols[x-c.rx-1-d]
		out[x] = nonNegative(sum)
	}
}

// nonNegative absorbs rounding drift of floating point sliding sums
func nonNegative[A accumulator](v A) A {
	if v < 0 {
		return 0
	}
	return v
}

// CostPlane returns cost(x, y, d) for the whole image, infeasible cells set to
// -1. It is the reference entry point for inspecting matching costs; the
// engine itself never materialises more than two planes per band.
func CostPlane[S core.Sample](left, right *core.Gray[S], d, rx, ry int) ([]float64, error) {
	if left == nil || right == nil {
		return nil, ErrNilImage
	}
	if !left.SameSize(right) {
		return nil, ErrSizeMismatch
	}
	cfg := Config{MaxDisparity: d, RegionRadiusX: rx, RegionRadiusY: ry}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	_, integer := any(left).(*core.Gray[uint8])
	if integer {
		if err := cfg.checkIntegerWindow(); err != nil {
			return nil, err
		}
	}
	if err := cfg.fits(left.W, left.H); err != nil {
		return nil, err
	}
	for _, img := range []*core.Gray[S]{left, right} {
		if err := core.ValidateImage(img); err != nil {
			return nil, err
		}
		if err := checkFinite(img); err != nil {
			return nil, err
		}
	}

	out := make([]float64, left.W*left.H)
	for i := range out {
		out[i] = infeasible
	}
	y0, y1 := ry, left.H-ry
	band := make([]float64, (y1-y0)*left.W)
	if integer {
		plane := make([]int32, len(band))
		newCostAggregator[S, int32](left, right, rx, ry).compute(d, y0, y1, plane)
		for i, v := range plane {
			band[i] = float64(v)
		}
	} else {
		newCostAggregator[S, float64](left, right, rx, ry).compute(d, y0, y1, band)
	}
	copy(out[y0*left.W:], band)
	return out, nil
}
