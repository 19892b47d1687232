package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrayDimensions(t *testing.T) {
	for _, tc := range []struct{ w, h int }{{0, 4}, {4, 0}, {-1, 3}, {MaxDimension + 1, 1}} {
		_, err := NewGrayU8(tc.w, tc.h)
		require.ErrorIs(t, err, ErrInvalidDimensions, "%dx%d", tc.w, tc.h)
	}

	g, err := NewGrayF32(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Width())
	assert.Equal(t, 2, g.Height())
	assert.Equal(t, 3, g.Stride)
	assert.Len(t, g.Pix, 6)
	assert.Equal(t, KindF32, g.Kind())
	assert.Equal(t, "f32", g.Kind().String())
}

func TestGrayBoundsChecked(t *testing.T) {
	g, err := NewGrayU8(4, 3)
	require.NoError(t, err)

	require.NoError(t, g.Set(3, 2, 7))
	v, err := g.At(3, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), v)
	assert.Equal(t, uint8(7), g.Pix[2*4+3])

	_, err = g.At(4, 0)
	require.ErrorIs(t, err, ErrOutOfBounds)
	require.ErrorIs(t, g.Set(0, -1, 1), ErrOutOfBounds)
	assert.False(t, g.InBounds(-1, 0))
}

func TestWrapGrayStride(t *testing.T) {
	pix := []uint8{
		1, 2, 3, 0xff,
		4, 5, 6, 0xff,
	}
	g, err := WrapGray(pix, 3, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint8{4, 5, 6}, g.Row(1))
	assert.Equal(t, uint8(5), g.Get(1, 1))
	require.NoError(t, ValidateImage(g))

	c := g.Clone()
	assert.Equal(t, 3, c.Stride)
	assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6}, c.Pix)

	f := g.FlipHorizontal()
	assert.Equal(t, []uint8{3, 2, 1, 6, 5, 4}, f.Pix)

	_, err = WrapGray(pix, 3, 2, 2)
	require.ErrorIs(t, err, ErrInvalidDimensions)
	_, err = WrapGray(pix[:6], 3, 2, 4)
	require.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestValidateImage(t *testing.T) {
	require.ErrorIs(t, ValidateImage[uint8](nil), ErrInvalidDimensions)
	require.ErrorIs(t, ValidateImage(&Gray[float32]{Pix: make([]float32, 5), Stride: 3, W: 3, H: 2}), ErrInvalidDimensions)

	a, _ := NewGrayU8(3, 2)
	b, _ := NewGrayF32(3, 2)
	assert.True(t, a.SameSize(b))
}
