package disparity

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"stereo-disparity/internal/core"
)

// randomU8 fills a width×height image with reproducible noise
func randomU8(t *testing.T, rng *rand.Rand, width, height int) *core.Gray[uint8] {
	t.Helper()
	img, err := core.NewGrayU8(width, height)
	require.NoError(t, err)
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

// shiftedU8 returns right with right(x, y) = left(x+k, y), padding the
// columns that run off the left image with noise.
func shiftedU8(t *testing.T, rng *rand.Rand, left *core.Gray[uint8], k int) *core.Gray[uint8] {
	t.Helper()
	right, err := core.NewGrayU8(left.W, left.H)
	require.NoError(t, err)
	for y := 0; y < left.H; y++ {
		for x := 0; x < left.W; x++ {
			if x+k < left.W {
				right.Put(x, y, left.Get(x+k, y))
			} else {
				right.Put(x, y, uint8(rng.Intn(256)))
			}
		}
	}
	return right
}

func toF32(t *testing.T, src *core.Gray[uint8]) *core.Gray[float32] {
	t.Helper()
	dst, err := core.NewGrayF32(src.W, src.H)
	require.NoError(t, err)
	for i, v := range src.Pix {
		dst.Pix[i] = float32(v)
	}
	return dst
}

// bruteCost evaluates the SAD window directly, -1 when infeasible
func bruteCost[S core.Sample](left, right *core.Gray[S], x, y, d, rx, ry int) float64 {
	if x-rx-d < 0 || x-rx < 0 || x+rx >= left.W || y-ry < 0 || y+ry >= left.H {
		return -1
	}
	sum := 0.0
	for j := -ry; j <= ry; j++ {
		for i := -rx; i <= rx; i++ {
			sum += math.Abs(float64(left.Get(x+i, y+j)) - float64(right.Get(x+i-d, y+j)))
		}
	}
	return sum
}

// guardsOff disables the ceiling, consistency and texture tests
func guardsOff(maxDisparity, rx, ry int) Config {
	return Config{
		MaxDisparity:     maxDisparity,
		RegionRadiusX:    rx,
		RegionRadiusY:    ry,
		MaxPerPixelError: -1,
	}
}

// randomLevels fills an image with noise drawn from a few grey levels, so
// equal costs and ties are common
func randomLevels(t *testing.T, rng *rand.Rand, width, height, levels int) *core.Gray[uint8] {
	t.Helper()
	img, err := core.NewGrayU8(width, height)
	require.NoError(t, err)
	step := 255 / max(1, levels-1)
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(levels) * step)
	}
	return img
}

// bruteCandidate picks the winner of one pixel's cost curve directly: the
// smallest cost with the smallest d, its neighbours, and the smallest cost
// not adjacent to it.
func bruteCandidate(costs []float64) candidate[float64] {
	s := candidate[float64]{best: -1, lower: -1, upper: -1, second: -1, bestD: -1}
	for d, c := range costs {
		if c >= 0 && (s.bestD < 0 || c < s.best) {
			s.best, s.bestD = c, int32(d)
		}
	}
	if s.bestD < 0 {
		return s
	}
	if s.bestD > 0 {
		s.lower = costs[s.bestD-1]
	}
	if int(s.bestD) < len(costs)-1 {
		s.upper = costs[s.bestD+1]
	}
	for d, c := range costs {
		if c < 0 || (d >= int(s.bestD)-1 && d <= int(s.bestD)+1) {
			continue
		}
		if s.second < 0 || c < s.second {
			s.second = c
		}
	}
	return s
}

// bruteMap evaluates every pixel from bruteCost with the ceiling, texture and
// right to left tests applied. Invalid cells hold -1.
func bruteMap[S core.Sample](left, right *core.Gray[S], cfg Config, ref Reference, subpixel bool) []float64 {
	w, h := left.W, left.H
	rx, ry := cfg.RegionRadiusX, cfg.RegionRadiusY
	area := float64(cfg.RegionWidth() * cfg.RegionHeight())

	curve := func(x, y int, r Reference) []float64 {
		costs := make([]float64, cfg.MaxDisparity+1)
		for d := range costs {
			if r == ReferenceLeft {
				costs[d] = bruteCost(left, right, x, y, d, rx, ry)
			} else {
				costs[d] = bruteCost(left, right, x+d, y, d, rx, ry)
			}
		}
		return costs
	}

	out := make([]float64, w*h)
	for i := range out {
		out[i] = -1
	}
	for y := ry; y < h-ry; y++ {
		states := make([]candidate[float64], w)
		others := make([]int32, w)
		for x := range others {
			states[x].bestD, others[x] = -1, -1
		}
		other := ReferenceRight
		if ref == ReferenceRight {
			other = ReferenceLeft
		}
		for x := rx; x <= w-1-rx; x++ {
			states[x] = bruteCandidate(curve(x, y, ref))
			others[x] = bruteCandidate(curve(x, y, other)).bestD
		}

		for x := rx; x <= w-1-rx; x++ {
			s := states[x]
			if s.bestD < 0 {
				continue
			}
			if cfg.MaxPerPixelError >= 0 && s.best > math.Floor(area*cfg.MaxPerPixelError) {
				continue
			}
			if cfg.Texture > 0 && s.best > 0 && s.second >= 0 && s.second-s.best < cfg.Texture*s.best {
				continue
			}
			if cfg.ValidateRtoL > 0 {
				j := x - int(s.bestD)
				if ref == ReferenceRight {
					j = x + int(s.bestD)
				}
				if j < 0 || j >= w || others[j] < 0 {
					continue
				}
				if diff := math.Abs(float64(others[j] - s.bestD)); diff > float64(cfg.ValidateRtoL) {
					continue
				}
			}
			if subpixel {
				out[y*w+x] = float64(subpixelWinner(&s, cfg.MaxDisparity))
			} else {
				out[y*w+x] = float64(s.bestD)
			}
		}
	}
	return out
}

// requireMapEqual compares a computed map against bruteMap output
func requireMapEqual(t *testing.T, want []float64, got Result, msg string) {
	t.Helper()
	w := got.Width()
	for i, v := range want {
		x, y := i%w, i/w
		gv, ok := got.Value(x, y)
		if v < 0 {
			require.Falsef(t, ok, "%s: (%d,%d) = %v, want invalid", msg, x, y, gv)
			continue
		}
		require.Truef(t, ok, "%s: (%d,%d) invalid, want %v", msg, x, y, v)
		require.Equalf(t, v, gv, "%s: at (%d,%d)", msg, x, y)
	}
}
