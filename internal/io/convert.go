// Conversion between gocv Mats and core images
package io

import (
	"fmt"

	"gocv.io/x/gocv"

	"stereo-disparity/internal/core"
)

func ensureSingleChannel(input gocv.Mat) gocv.Mat {
	if input.Channels() == 1 {
		return input
	}
	gray := gocv.NewMat()
	gocv.CvtColor(input, &gray, gocv.ColorBGRToGray)
	return gray
}

// MatToImage copies a Mat into a new image of the requested kind. Colour
// input is converted to gray; other depths are converted with saturation.
func MatToImage(mat gocv.Mat, kind core.Kind) (core.Image, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("%w: empty Mat", ErrLoadFailed)
	}

	gray := ensureSingleChannel(mat)
	defer func() {
		if gray.Ptr() != mat.Ptr() {
			gray.Close()
		}
	}()

	switch kind {
	case core.KindU8:
		if gray.Type() == gocv.MatTypeCV8UC1 {
			return asImage(toGray[uint8](gray))
		}
		converted := gocv.NewMat()
		defer converted.Close()
		gray.ConvertTo(&converted, gocv.MatTypeCV8U)
		return asImage(toGray[uint8](converted))

	case core.KindF32:
		if gray.Type() == gocv.MatTypeCV32FC1 {
			return asImage(toGray[float32](gray))
		}
		converted := gocv.NewMat()
		defer converted.Close()
		gray.ConvertTo(&converted, gocv.MatTypeCV32F)
		return asImage(toGray[float32](converted))

	default:
		return nil, fmt.Errorf("%w: sample kind %s", ErrUnsupportedFormat, kind)
	}
}

// asImage keeps a nil image from turning into a non-nil interface
func asImage[S core.Sample](img *core.Gray[S], err error) (core.Image, error) {
	if err != nil {
		return nil, err
	}
	return img, nil
}

// toGray copies a single channel Mat whose depth matches S
func toGray[S core.Sample](mat gocv.Mat) (*core.Gray[S], error) {
	if !mat.IsContinuous() {
		c := mat.Clone()
		defer c.Close()
		mat = c
	}

	img, err := core.NewGray[S](mat.Cols(), mat.Rows())
	if err != nil {
		return nil, err
	}

	var src []S
	switch any(img.Pix).(type) {
	case []uint8:
		data, err := mat.DataPtrUint8()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		src = any(data).([]S)
	case []float32:
		data, err := mat.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		src = any(data).([]S)
	}
	if len(src) < len(img.Pix) {
		return nil, fmt.Errorf("%w: Mat holds %d samples, want %d", ErrLoadFailed, len(src), len(img.Pix))
	}
	copy(img.Pix, src)
	return img, nil
}

// ImageToMat copies an image into a new single channel Mat. The caller owns
// the returned Mat.
func ImageToMat(img core.Image) (gocv.Mat, error) {
	switch g := img.(type) {
	case *core.Gray[uint8]:
		return fromGray(g, gocv.MatTypeCV8UC1)
	case *core.Gray[float32]:
		return fromGray(g, gocv.MatTypeCV32FC1)
	default:
		return gocv.NewMat(), fmt.Errorf("%w: image type %T", ErrUnsupportedFormat, img)
	}
}

func fromGray[S core.Sample](g *core.Gray[S], mt gocv.MatType) (gocv.Mat, error) {
	if err := core.ValidateImage(g); err != nil {
		return gocv.NewMat(), err
	}
	mat := gocv.NewMatWithSize(g.H, g.W, mt)

	var dst []S
	switch any(g.Pix).(type) {
	case []uint8:
		data, err := mat.DataPtrUint8()
		if err != nil {
			mat.Close()
			return gocv.NewMat(), err
		}
		dst = any(data).([]S)
	case []float32:
		data, err := mat.DataPtrFloat32()
		if err != nil {
			mat.Close()
			return gocv.NewMat(), err
		}
		dst = any(data).([]S)
	}
	for y := 0; y < g.H; y++ {
		copy(dst[y*g.W:(y+1)*g.W], g.Row(y))
	}
	return mat, nil
}
