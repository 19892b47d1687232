// Concrete implementations of disparity metrics
package metrics

import (
	"fmt"
	"math"

	"stereo-disparity/internal/core"
	"stereo-disparity/internal/disparity"
)

func checkTruth(result disparity.Result, truth *core.Gray[float32]) error {
	if result == nil {
		return fmt.Errorf("%w: nil disparity map", ErrSizeMismatch)
	}
	if truth == nil {
		return ErrNoTruth
	}
	if result.Width() != truth.W || result.Height() != truth.H {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch,
			result.Width(), result.Height(), truth.W, truth.H)
	}
	return nil
}

// eachPair calls fn with the estimate and truth of every pixel that has both
func eachPair(result disparity.Result, truth *core.Gray[float32], fn func(est, want float64)) int {
	n := 0
	for y := 0; y < truth.H; y++ {
		row := truth.Row(y)
		for x, t := range row {
			if t <= 0 {
				continue
			}
			est, ok := result.Value(x, y)
			if !ok {
				continue
			}
			fn(est, float64(t))
			n++
		}
	}
	return n
}

// Coverage is the fraction of pixels holding a valid disparity. With ground
// truth, only pixels that have truth are counted.
type Coverage struct{}

func NewCoverage() *Coverage {
	return &Coverage{}
}

func (c *Coverage) Calculate(result disparity.Result, truth *core.Gray[float32]) (float64, error) {
	if result == nil {
		return 0, fmt.Errorf("%w: nil disparity map", ErrSizeMismatch)
	}
	w, h := result.Width(), result.Height()
	if truth == nil {
		if w*h == 0 {
			return 0, ErrNoOverlap
		}
		return 1 - float64(result.InvalidCount())/float64(w*h), nil
	}
	if err := checkTruth(result, truth); err != nil {
		return 0, err
	}

	known, valid := 0, 0
	for y := 0; y < h; y++ {
		for x, t := range truth.Row(y) {
			if t <= 0 {
				continue
			}
			known++
			if _, ok := result.Value(x, y); ok {
				valid++
			}
		}
	}
	if known == 0 {
		return 0, ErrNoOverlap
	}
	return float64(valid) / float64(known), nil
}

func (c *Coverage) GetName() string              { return "Coverage" }
func (c *Coverage) GetDescription() string       { return "Fraction of pixels with a valid disparity" }
func (c *Coverage) GetRange() (float64, float64) { return 0, 1 }
func (c *Coverage) IsHigherBetter() bool         { return true }

// BadPixel is the fraction of matched pixels whose error exceeds Threshold
type BadPixel struct {
	Threshold float64
}

func NewBadPixel(threshold float64) *BadPixel {
	return &BadPixel{Threshold: threshold}
}

func (b *BadPixel) Calculate(result disparity.Result, truth *core.Gray[float32]) (float64, error) {
	if err := checkTruth(result, truth); err != nil {
		return 0, err
	}
	bad := 0
	n := eachPair(result, truth, func(est, want float64) {
		if math.Abs(est-want) > b.Threshold {
			bad++
		}
	})
	if n == 0 {
		return 0, ErrNoOverlap
	}
	return float64(bad) / float64(n), nil
}

func (b *BadPixel) GetName() string { return fmt.Sprintf("Bad %.1f", b.Threshold) }
func (b *BadPixel) GetDescription() string {
	return fmt.Sprintf("Fraction of matched pixels off by more than %g px", b.Threshold)
}
func (b *BadPixel) GetRange() (float64, float64) { return 0, 1 }
func (b *BadPixel) IsHigherBetter() bool         { return false }

// MAE is the mean absolute disparity error over matched pixels
type MAE struct{}

func NewMAE() *MAE {
	return &MAE{}
}

func (m *MAE) Calculate(result disparity.Result, truth *core.Gray[float32]) (float64, error) {
	if err := checkTruth(result, truth); err != nil {
		return 0, err
	}
	sum := 0.0
	n := eachPair(result, truth, func(est, want float64) {
		sum += math.Abs(est - want)
	})
	if n == 0 {
		return 0, ErrNoOverlap
	}
	return sum / float64(n), nil
}

func (m *MAE) GetName() string              { return "MAE" }
func (m *MAE) GetDescription() string       { return "Mean absolute disparity error in pixels" }
func (m *MAE) GetRange() (float64, float64) { return 0, math.Inf(1) }
func (m *MAE) IsHigherBetter() bool         { return false }

// RMSE is the root mean squared disparity error over matched pixels
type RMSE struct{}

func NewRMSE() *RMSE {
	return &RMSE{}
}

func (r *RMSE) Calculate(result disparity.Result, truth *core.Gray[float32]) (float64, error) {
	if err := checkTruth(result, truth); err != nil {
		return 0, err
	}
	sum := 0.0
	n := eachPair(result, truth, func(est, want float64) {
		d := est - want
		sum += d * d
	})
	if n == 0 {
		return 0, ErrNoOverlap
	}
	return math.Sqrt(sum / float64(n)), nil
}

func (r *RMSE) GetName() string              { return "RMSE" }
func (r *RMSE) GetDescription() string       { return "Root mean squared disparity error in pixels" }
func (r *RMSE) GetRange() (float64, float64) { return 0, math.Inf(1) }
func (r *RMSE) IsHigherBetter() bool         { return false }
