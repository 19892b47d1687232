// Core single-band pixel buffers shared by the matcher, loaders and metrics
package core

import (
	"errors"
	"fmt"
)

// Kind identifies the sample storage of an image
type Kind int

const (
	KindU8 Kind = iota
	KindF32
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindF32:
		return "f32"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reasonable size limit, same bound the loaders enforce
const MaxDimension = 16384

var (
	ErrInvalidDimensions = errors.New("core: invalid image dimensions")
	ErrOutOfBounds       = errors.New("core: pixel index out of bounds")
)

// Sample is the set of supported pixel sample types
type Sample interface {
	uint8 | float32
}

// Image is the kind-erased view of a Gray buffer
type Image interface {
	Width() int
	Height() int
	Kind() Kind
}

// Gray is a row-major single-band image. Rows may be padded: pixel (x, y)
// lives at Pix[y*Stride+x].
type Gray[S Sample] struct {
	Pix    []S
	Stride int
	W, H   int
}

// NewGray allocates a zeroed width×height image
func NewGray[S Sample](width, height int) (*Gray[S], error) {
	if err := ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	return &Gray[S]{
		Pix:    make([]S, width*height),
		Stride: width,
		W:      width,
		H:      height,
	}, nil
}

// NewGrayU8 allocates an 8-bit image
func NewGrayU8(width, height int) (*Gray[uint8], error) {
	return NewGray[uint8](width, height)
}

// NewGrayF32 allocates a floating point image
func NewGrayF32(width, height int) (*Gray[float32], error) {
	return NewGray[float32](width, height)
}

// WrapGray builds an image around existing samples without copying them
func WrapGray[S Sample](pix []S, width, height, stride int) (*Gray[S], error) {
	if err := ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	if stride < width {
		return nil, fmt.Errorf("%w: stride %d < width %d", ErrInvalidDimensions, stride, width)
	}
	if len(pix) < (height-1)*stride+width {
		return nil, fmt.Errorf("%w: %d samples cannot hold %dx%d (stride %d)",
			ErrInvalidDimensions, len(pix), width, height, stride)
	}
	return &Gray[S]{Pix: pix, Stride: stride, W: width, H: height}, nil
}

func (g *Gray[S]) Width() int  { return g.W }
func (g *Gray[S]) Height() int { return g.H }

// Kind reports the sample storage of the image
func (g *Gray[S]) Kind() Kind {
	var zero S
	switch any(zero).(type) {
	case float32:
		return KindF32
	default:
		return KindU8
	}
}

// InBounds reports whether (x, y) addresses a pixel
func (g *Gray[S]) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.W && y < g.H
}

// At returns the sample at (x, y)
func (g *Gray[S]) At(x, y int) (S, error) {
	if !g.InBounds(x, y) {
		var zero S
		return zero, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, g.W, g.H)
	}
	return g.Pix[y*g.Stride+x], nil
}

// Set writes the sample at (x, y)
func (g *Gray[S]) Set(x, y int, v S) error {
	if !g.InBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, g.W, g.H)
	}
	g.Pix[y*g.Stride+x] = v
	return nil
}

// Unsafe accessors, no bounds checking beyond the slice's own.
func (g *Gray[S]) Get(x, y int) S    { return g.Pix[y*g.Stride+x] }
func (g *Gray[S]) Put(x, y int, v S) { g.Pix[y*g.Stride+x] = v }
func (g *Gray[S]) Row(y int) []S     { return g.Pix[y*g.Stride : y*g.Stride+g.W] }

// SameSize reports whether o has the same dimensions
func (g *Gray[S]) SameSize(o Image) bool { return g.W == o.Width() && g.H == o.Height() }

// Clone returns a compact deep copy
func (g *Gray[S]) Clone() *Gray[S] {
	out := &Gray[S]{Pix: make([]S, g.W*g.H), Stride: g.W, W: g.W, H: g.H}
	for y := 0; y < g.H; y++ {
		copy(out.Row(y), g.Row(y))
	}
	return out
}

// FlipHorizontal returns a mirrored copy
func (g *Gray[S]) FlipHorizontal() *Gray[S] {
	out := &Gray[S]{Pix: make([]S, g.W*g.H), Stride: g.W, W: g.W, H: g.H}
	for y := 0; y < g.H; y++ {
		src, dst := g.Row(y), out.Row(y)
		for x := range src {
			dst[g.W-1-x] = src[x]
		}
	}
	return out
}

// ValidateDimensions checks width and height against the supported range
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: image too large: %dx%d (max: %d)", ErrInvalidDimensions, width, height, MaxDimension)
	}
	return nil
}

// ValidateImage validates a buffer for basic requirements
func ValidateImage[S Sample](g *Gray[S]) error {
	if g == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidDimensions)
	}
	if err := ValidateDimensions(g.W, g.H); err != nil {
		return err
	}
	if g.Stride < g.W || len(g.Pix) < (g.H-1)*g.Stride+g.W {
		return fmt.Errorf("%w: buffer of %d samples (stride %d) too small for %dx%d",
			ErrInvalidDimensions, len(g.Pix), g.Stride, g.W, g.H)
	}
	return nil
}
