// Sample kind dispatch
package disparity

import (
	"fmt"

	"stereo-disparity/internal/core"
)

// Mode selects integer or sub-pixel output
type Mode int

const (
	ModeInteger Mode = iota
	ModeSubpixel
)

func (m Mode) String() string {
	if m == ModeSubpixel {
		return "subpixel"
	}
	return "integer"
}

// Compute picks the engine matching the images' sample kind and runs it.
// Both images must share size and kind.
func Compute(cfg Config, mode Mode, left, right core.Image, opts ...Option) (Result, error) {
	if left == nil || right == nil {
		return nil, ErrNilImage
	}
	if left.Kind() != right.Kind() {
		return nil, fmt.Errorf("%w: %s vs %s", ErrKindMismatch, left.Kind(), right.Kind())
	}
	if left.Width() != right.Width() || left.Height() != right.Height() {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d",
			ErrSizeMismatch, left.Width(), left.Height(), right.Width(), right.Height())
	}

	switch l := left.(type) {
	case *core.Gray[uint8]:
		r, ok := right.(*core.Gray[uint8])
		if !ok {
			return nil, fmt.Errorf("%w: right image is %T", ErrKindMismatch, right)
		}
		if mode == ModeSubpixel {
			e, err := NewRegionSubpixelWTAU8(cfg, opts...)
			if err != nil {
				return nil, err
			}
			return wrap(e.Process(l, r))
		}
		e, err := NewRegionWTAU8(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return wrap(e.Process(l, r))

	case *core.Gray[float32]:
		r, ok := right.(*core.Gray[float32])
		if !ok {
			return nil, fmt.Errorf("%w: right image is %T", ErrKindMismatch, right)
		}
		if mode == ModeSubpixel {
			e, err := NewRegionSubpixelWTAF32(cfg, opts...)
			if err != nil {
				return nil, err
			}
			return wrap(e.Process(l, r))
		}
		e, err := NewRegionWTAF32(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return wrap(e.Process(l, r))

	default:
		return nil, fmt.Errorf("%w: unsupported image type %T", ErrKindMismatch, left)
	}
}

// wrap keeps a nil map from turning into a non-nil Result
func wrap[D Disparity](m *Map[D], err error) (Result, error) {
	if err != nil {
		return nil, err
	}
	return m, nil
}
