package disparity

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"stereo-disparity/internal/core"
)

// TestCostPlaneMatchesBruteForce checks the incremental aggregation against a
// direct window sum for every cell and several disparities.
func TestCostPlaneMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	left := randomU8(t, rng, 23, 17)
	right := randomU8(t, rng, 23, 17)

	for _, tc := range []struct{ d, rx, ry int }{
		{0, 1, 1}, {3, 1, 2}, {5, 2, 0}, {0, 0, 0}, {19, 1, 1}, {30, 1, 1},
	} {
		plane, err := CostPlane(left, right, tc.d, tc.rx, tc.ry)
		require.NoError(t, err)
		for y := 0; y < left.H; y++ {
			for x := 0; x < left.W; x++ {
				want := bruteCost(left, right, x, y, tc.d, tc.rx, tc.ry)
				require.Equalf(t, want, plane[y*left.W+x], "d=%d r=%dx%d at (%d,%d)", tc.d, tc.rx, tc.ry, x, y)
			}
		}
	}
}

// TestCostPlaneFloatMatchesBruteForce runs the same comparison with floating
// point samples, allowing for summation order.
func TestCostPlaneFloatMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	left := toF32(t, randomU8(t, rng, 20, 15))
	right := toF32(t, randomU8(t, rng, 20, 15))
	for i := range left.Pix {
		left.Pix[i] *= 0.37
		right.Pix[i] *= 0.37
	}

	plane, err := CostPlane(left, right, 4, 2, 1)
	require.NoError(t, err)
	for y := 0; y < left.H; y++ {
		for x := 0; x < left.W; x++ {
			want := bruteCost(left, right, x, y, 4, 2, 1)
			if want < 0 {
				require.Equal(t, -1.0, plane[y*left.W+x])
				continue
			}
			require.InDelta(t, want, plane[y*left.W+x], 1e-6)
		}
	}
}

// TestCostPlaneInfeasibleIsNotZero makes sure identical images still report
// infeasible cells as -1 rather than a perfect zero.
func TestCostPlaneInfeasibleIsNotZero(t *testing.T) {
	img, err := core.NewGrayU8(8, 5)
	require.NoError(t, err)

	plane, err := CostPlane(img, img, 2, 1, 1)
	require.NoError(t, err)
	for y := 1; y <= 3; y++ {
		require.Equal(t, -1.0, plane[y*8+0])
		require.Equal(t, -1.0, plane[y*8+2]) // x-rx-d < 0
		require.Equal(t, 0.0, plane[y*8+3])
		require.Equal(t, 0.0, plane[y*8+6])
		require.Equal(t, -1.0, plane[y*8+7])
	}
	for x := 0; x < 8; x++ {
		require.Equal(t, -1.0, plane[x])
		require.Equal(t, -1.0, plane[4*8+x])
	}
}

func TestCostPlaneArguments(t *testing.T) {
	a, _ := core.NewGrayU8(5, 5)
	b, _ := core.NewGrayU8(6, 5)

	_, err := CostPlane(a, b, 0, 1, 1)
	require.ErrorIs(t, err, ErrSizeMismatch)

	_, err = CostPlane(a, a, -1, 1, 1)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = CostPlane(a, a, 0, 3, 1)
	require.ErrorIs(t, err, ErrRegionTooLarge)

	_, err = CostPlane[uint8](nil, a, 0, 1, 1)
	require.ErrorIs(t, err, ErrNilImage)
}

// TestCostAggregatorBands checks that splitting rows into bands does not
// change the costs.
func TestCostAggregatorBands(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	left := randomU8(t, rng, 16, 20)
	right := randomU8(t, rng, 16, 20)
	const rx, ry, d = 2, 2, 3
	w := left.W

	whole := make([]int32, (left.H-2*ry)*w)
	newCostAggregator[uint8, int32](left, right, rx, ry).compute(d, ry, left.H-ry, whole)

	agg := newCostAggregator[uint8, int32](left, right, rx, ry)
	for y0 := ry; y0 < left.H-ry; y0 += 5 {
		y1 := min(y0+5, left.H-ry)
		band := make([]int32, (y1-y0)*w)
		agg.compute(d, y0, y1, band)
		require.Equal(t, whole[(y0-ry)*w:(y1-ry)*w], band)
	}
}

func TestCostPlaneRejectsNonFinite(t *testing.T) {
	left, _ := core.NewGrayF32(12, 6)
	right, _ := core.NewGrayF32(12, 6)

	plane, err := CostPlane(left, right, 0, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 0.0, plane[4*12+9])

	left.Put(1, 1, float32(math.NaN()))
	_, err = CostPlane(left, right, 0, 1, 1)
	require.ErrorIs(t, err, ErrNonFinite)

	left.Put(1, 1, float32(math.Inf(-1)))
	_, err = CostPlane(right, left, 0, 1, 1)
	require.ErrorIs(t, err, ErrNonFinite)
}

// TestCostPlaneIntegerWindow applies the engine's int32 overflow bound to
// 8-bit planes; floating point planes accumulate in float64.
func TestCostPlaneIntegerWindow(t *testing.T) {
	a, _ := core.NewGrayU8(5, 5)
	_, err := CostPlane(a, a, 0, 1500, 1500)
	require.ErrorIs(t, err, ErrWindowTooLarge)

	f, _ := core.NewGrayF32(5, 5)
	_, err = CostPlane(f, f, 0, 1500, 1500)
	require.ErrorIs(t, err, ErrRegionTooLarge)
}
