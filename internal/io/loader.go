// Image loading and saving for rectified pairs, ground truth and disparity maps
package io

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"stereo-disparity/internal/core"
	"stereo-disparity/internal/disparity"
)

var (
	ErrUnsupportedFormat = errors.New("io: unsupported image format")
	ErrLoadFailed        = errors.New("io: failed to load image")
	ErrSaveFailed        = errors.New("io: failed to save image")
)

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp", ".pgm", ".ppm", ".pfm"}

// ImageLoader handles image file operations
type ImageLoader struct {
	logger *logrus.Logger
}

func NewImageLoader(logger *logrus.Logger) *ImageLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImageLoader{
		logger: logger,
	}
}

// LoadGrayscale reads a file as a single channel 8-bit Mat. The caller owns
// the returned Mat.
func (il *ImageLoader) LoadGrayscale(path string) (gocv.Mat, error) {
	return il.load(path, gocv.IMReadGrayScale)
}

func (il *ImageLoader) load(path string, flags gocv.IMReadFlag) (gocv.Mat, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	if !il.isSupportedImageFormat(path) {
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	mat := gocv.IMRead(path, flags)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrLoadFailed, path)
	}
	if err := core.ValidateDimensions(mat.Cols(), mat.Rows()); err != nil {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%s: %w", path, err)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Info("Image loaded successfully")

	return mat, nil
}

// LoadGray reads a file into an image of the given sample kind
func (il *ImageLoader) LoadGray(path string, kind core.Kind) (core.Image, error) {
	mat, err := il.LoadGrayscale(path)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	return MatToImage(mat, kind)
}

// LoadPair reads a rectified left/right pair, which must share one size
func (il *ImageLoader) LoadPair(leftPath, rightPath string, kind core.Kind) (core.Image, core.Image, error) {
	left, err := il.LoadGray(leftPath, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("left: %w", err)
	}
	right, err := il.LoadGray(rightPath, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("right: %w", err)
	}
	if left.Width() != right.Width() || left.Height() != right.Height() {
		return nil, nil, fmt.Errorf("%w: %dx%d vs %dx%d", disparity.ErrSizeMismatch,
			left.Width(), left.Height(), right.Width(), right.Height())
	}
	return left, right, nil
}

// LoadTruth reads a ground truth disparity image and divides it by scale, so
// 16-bit files stored at 256 per pixel load with scale 256. Zero and
// non-finite values mark pixels without ground truth and load as 0.
func (il *ImageLoader) LoadTruth(path string, scale float64) (*core.Gray[float32], error) {
	if scale <= 0 {
		return nil, fmt.Errorf("%w: ground truth scale %v must be positive", ErrLoadFailed, scale)
	}

	mat, err := il.load(path, gocv.IMReadUnchanged)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := ensureSingleChannel(mat)
	defer func() {
		if gray.Ptr() != mat.Ptr() {
			gray.Close()
		}
	}()

	scaled := gocv.NewMat()
	defer scaled.Close()
	gray.ConvertToWithParams(&scaled, gocv.MatTypeCV32F, float32(1/scale), 0)

	truth, err := toGray[float32](scaled)
	if err != nil {
		return nil, err
	}
	for i, v := range truth.Pix {
		if math.IsNaN(float64(v)) || v > maxTruth || v < 0 {
			truth.Pix[i] = 0
		}
	}
	return truth, nil
}

// maxTruth bounds plausible disparities, larger values are infinities
const maxTruth = float32(core.MaxDimension)

// SaveImage writes a Mat to disk, the format following the extension
func (il *ImageLoader) SaveImage(mat gocv.Mat, path string) error {
	il.logger.WithField("filepath", path).Debug("Saving image")

	if mat.Empty() {
		return fmt.Errorf("%w: cannot save empty image", ErrSaveFailed)
	}

	if !il.isSupportedImageFormat(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("%w: %s", ErrSaveFailed, path)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Info("Image saved successfully")

	return nil
}

// SaveDisparity writes a colour mapped rendering of a disparity map. Valid
// disparities span the jet colour map from 0 to the map's range; invalid
// pixels are black.
func (il *ImageLoader) SaveDisparity(path string, result disparity.Result) error {
	vis, err := RenderDisparity(result)
	if err != nil {
		return err
	}
	defer vis.Close()

	return il.SaveImage(vis, path)
}

// RenderDisparity builds the 3-channel colour rendering used by SaveDisparity
func RenderDisparity(result disparity.Result) (gocv.Mat, error) {
	if result == nil {
		return gocv.NewMat(), fmt.Errorf("%w: nil disparity map", ErrSaveFailed)
	}
	w, h := result.Width(), result.Height()
	scale := 255.0
	if result.Range() > 0 {
		scale = 255.0 / float64(result.Range())
	}

	levels, err := core.NewGrayU8(w, h)
	if err != nil {
		return gocv.NewMat(), err
	}
	valid := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v, ok := result.Value(x, y)
			if !ok {
				continue
			}
			valid[y*w+x] = true
			levels.Put(x, y, uint8(min(255, v*scale+0.5)))
		}
	}

	gray, err := ImageToMat(levels)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer gray.Close()

	colour := gocv.NewMat()
	defer colour.Close()
	gocv.ApplyColorMap(gray, &colour, gocv.ColormapJet)
	if colour.Empty() || colour.Channels() != 3 {
		return gocv.NewMat(), fmt.Errorf("%w: colour map failed", ErrSaveFailed)
	}

	bgr := colour.ToBytes()
	for i, ok := range valid {
		if !ok {
			bgr[3*i], bgr[3*i+1], bgr[3*i+2] = 0, 0, 0
		}
	}
	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, bgr)
}

func (il *ImageLoader) isSupportedImageFormat(path string) bool {
	return slices.Contains(supportedFormats, strings.ToLower(filepath.Ext(path)))
}

func (il *ImageLoader) GetSupportedFormats() []string {
	return []string{"JPEG", "PNG", "TIFF", "BMP", "PGM", "PPM", "PFM"}
}

func (il *ImageLoader) ValidateImageFile(path string) error {
	if !il.isSupportedImageFormat(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer mat.Close()

	if mat.Empty() {
		return fmt.Errorf("%w: invalid or corrupted image file %s", ErrLoadFailed, path)
	}

	return core.ValidateDimensions(mat.Cols(), mat.Rows())
}
