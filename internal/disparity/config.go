// Matcher configuration and argument errors
package disparity

import (
	"errors"
	"fmt"
	"math"

	"stereo-disparity/internal/core"
)

var (
	ErrInvalidConfig  = errors.New("disparity: invalid configuration")
	ErrNilImage       = errors.New("disparity: nil image")
	ErrSizeMismatch   = errors.New("disparity: left and right image sizes differ")
	ErrKindMismatch   = errors.New("disparity: left and right sample kinds differ")
	ErrRegionTooLarge = errors.New("disparity: matching region does not fit in the image")
	ErrWindowTooLarge = errors.New("disparity: matching region too large for integer accumulation")
	ErrNonFinite      = errors.New("disparity: image holds a non-finite sample")
)

// Config is the immutable parameter set of one matcher.
//
// MaxPerPixelError is converted into an absolute ceiling on the window cost,
// (2*RegionRadiusX+1)*(2*RegionRadiusY+1)*MaxPerPixelError; a negative or
// infinite value disables the ceiling. ValidateRtoL is the largest tolerated
// difference, in pixels, between the left and right reference winners; zero or
// less disables the check. Texture is the fractional margin the second best
// cost must keep above the best; zero or less disables the check.
type Config struct {
	MaxDisparity     int
	RegionRadiusX    int
	RegionRadiusY    int
	MaxPerPixelError float64
	ValidateRtoL     int
	Texture          float64
}

// DefaultConfig mirrors the defaults exposed by the matcher parameters
func DefaultConfig() Config {
	return Config{
		MaxDisparity:     64,
		RegionRadiusX:    3,
		RegionRadiusY:    3,
		MaxPerPixelError: 30,
		ValidateRtoL:     2,
		Texture:          0.1,
	}
}

// Validate rejects configurations that cannot describe a search
func (c Config) Validate() error {
	if c.MaxDisparity < 0 {
		return fmt.Errorf("%w: max disparity %d < 0", ErrInvalidConfig, c.MaxDisparity)
	}
	if c.MaxDisparity > core.MaxDimension {
		return fmt.Errorf("%w: max disparity %d exceeds %d", ErrInvalidConfig, c.MaxDisparity, core.MaxDimension)
	}
	if c.RegionRadiusX < 0 || c.RegionRadiusY < 0 {
		return fmt.Errorf("%w: region radius %dx%d must not be negative",
			ErrInvalidConfig, c.RegionRadiusX, c.RegionRadiusY)
	}
	if c.RegionRadiusX > core.MaxDimension || c.RegionRadiusY > core.MaxDimension {
		return fmt.Errorf("%w: region radius %dx%d exceeds %d",
			ErrInvalidConfig, c.RegionRadiusX, c.RegionRadiusY, core.MaxDimension)
	}
	if math.IsNaN(c.MaxPerPixelError) {
		return fmt.Errorf("%w: max per pixel error is NaN", ErrInvalidConfig)
	}
	if math.IsNaN(c.Texture) || math.IsInf(c.Texture, 0) {
		return fmt.Errorf("%w: texture threshold %v", ErrInvalidConfig, c.Texture)
	}
	return nil
}

func (c Config) RegionWidth() int  { return 2*c.RegionRadiusX + 1 }
func (c Config) RegionHeight() int { return 2*c.RegionRadiusY + 1 }

// MaxError is the absolute cost ceiling, truncated to a whole number for
// every sample kind, +Inf when disabled
func (c Config) MaxError() float64 {
	if c.MaxPerPixelError < 0 || math.IsInf(c.MaxPerPixelError, 1) {
		return math.Inf(1)
	}
	return math.Floor(float64(c.RegionWidth()) * float64(c.RegionHeight()) * c.MaxPerPixelError)
}

// checkIntegerWindow guards the int32 accumulator used for 8-bit samples
func (c Config) checkIntegerWindow() error {
	area := int64(c.RegionWidth()) * int64(c.RegionHeight())
	if area*math.MaxUint8 > math.MaxInt32 {
		return fmt.Errorf("%w: %dx%d", ErrWindowTooLarge, c.RegionWidth(), c.RegionHeight())
	}
	return nil
}

// checkFinite rejects floating point images holding NaN or infinite samples,
// which would poison every sliding window sum they enter
func checkFinite[S core.Sample](g *core.Gray[S]) error {
	pix, ok := any(g.Pix).([]float32)
	if !ok {
		return nil
	}
	for y := 0; y < g.H; y++ {
		row := pix[y*g.Stride : y*g.Stride+g.W]
		for x, v := range row {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return fmt.Errorf("%w: %v at (%d,%d)", ErrNonFinite, v, x, y)
			}
		}
	}
	return nil
}

// fits reports whether a full window fits inside a width×height image
func (c Config) fits(width, height int) error {
	if c.RegionWidth() > width || c.RegionHeight() > height {
		return fmt.Errorf("%w: region %dx%d, image %dx%d",
			ErrRegionTooLarge, c.RegionWidth(), c.RegionHeight(), width, height)
	}
	return nil
}
