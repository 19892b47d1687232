// Prefilters applied to each image of a pair before matching
package algorithms

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ensureGrayscale returns input itself when it already has one channel
func ensureGrayscale(input gocv.Mat) gocv.Mat {
	if input.Channels() == 1 {
		return input
	}
	gray := gocv.NewMat()
	gocv.CvtColor(input, &gray, gocv.ColorBGRToGray)
	return gray
}

// prepare rejects empty input and converts colour input to a single channel.
// release must be called once the returned Mat is no longer needed.
func prepare(input gocv.Mat) (gray gocv.Mat, release func(), err error) {
	if input.Empty() {
		return gocv.NewMat(), func() {}, ErrEmptyInput
	}
	gray = ensureGrayscale(input)
	release = func() {
		if gray.Ptr() != input.Ptr() {
			gray.Close()
		}
	}
	return gray, release, nil
}

// filtered reports a filter that produced nothing
func filtered(name string, output gocv.Mat) (gocv.Mat, error) {
	if output.Empty() {
		output.Close()
		return gocv.NewMat(), fmt.Errorf("%s produced an empty image", name)
	}
	return output, nil
}

// GaussianFilter implements Gaussian blur filter
type GaussianFilter struct{}

// NewGaussianFilter creates a new Gaussian filter algorithm
func NewGaussianFilter() *GaussianFilter {
	return &GaussianFilter{}
}

func (g *GaussianFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	gray, release, err := prepare(input)
	if err != nil {
		return gray, err
	}
	defer release()

	kernelSize := oddKernel(intParam(params, "kernel_size", 5))
	sigmaX := floatParam(params, "sigma_x", 1.0)
	sigmaY := floatParam(params, "sigma_y", 1.0)

	output := gocv.NewMat()
	gocv.GaussianBlur(gray, &output, image.Pt(kernelSize, kernelSize), sigmaX, sigmaY, borderType(params))

	return filtered("gaussian", output)
}

func (g *GaussianFilter) GetDefaultParams() map[string]interface{} {
	return defaultsOf(g.GetParameterInfo())
}

func (g *GaussianFilter) GetName() string {
	return "Gaussian Filter"
}

func (g *GaussianFilter) GetDescription() string {
	return "Gaussian blur to suppress sensor noise before matching"
}

func (g *GaussianFilter) Validate(params map[string]interface{}) error {
	return validateParams(g.GetParameterInfo(), params)
}

func (g *GaussianFilter) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "kernel_size",
			Type:        "int",
			Min:         3.0,
			Max:         21.0,
			Default:     5.0,
			Description: "Size of the Gaussian kernel (must be odd)",
		},
		{
			Name:        "sigma_x",
			Type:        "float",
			Min:         0.1,
			Max:         10.0,
			Default:     1.0,
			Description: "Standard deviation in X direction",
		},
		{
			Name:        "sigma_y",
			Type:        "float",
			Min:         0.1,
			Max:         10.0,
			Default:     1.0,
			Description: "Standard deviation in Y direction",
		},
		borderParam(),
	}
}

// MedianFilter implements median filter
type MedianFilter struct{}

// NewMedianFilter creates a new median filter algorithm
func NewMedianFilter() *MedianFilter {
	return &MedianFilter{}
}

func (m *MedianFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	gray, release, err := prepare(input)
	if err != nil {
		return gray, err
	}
	defer release()

	kernelSize := oddKernel(intParam(params, "kernel_size", 5))
	// OpenCV only supports 3 and 5 for floating point samples
	if gray.Type() == gocv.MatTypeCV32FC1 && kernelSize > 5 {
		return gocv.NewMat(), fmt.Errorf("%w: kernel_size %d > 5 on floating point input", ErrInvalidParameter, kernelSize)
	}

	output := gocv.NewMat()
	gocv.MedianBlur(gray, &output, kernelSize)

	return filtered("median", output)
}

func (m *MedianFilter) GetDefaultParams() map[string]interface{} {
	return defaultsOf(m.GetParameterInfo())
}

func (m *MedianFilter) GetName() string {
	return "Median Filter"
}

func (m *MedianFilter) GetDescription() string {
	return "Median filter to remove salt-and-pepper noise"
}

func (m *MedianFilter) Validate(params map[string]interface{}) error {
	return validateParams(m.GetParameterInfo(), params)
}

func (m *MedianFilter) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "kernel_size",
			Type:        "int",
			Min:         3.0,
			Max:         15.0,
			Default:     5.0,
			Description: "Size of the median filter kernel (must be odd)",
		},
	}
}

// BilateralFilter implements bilateral filter
type BilateralFilter struct{}

// NewBilateralFilter creates a new bilateral filter algorithm
func NewBilateralFilter() *BilateralFilter {
	return &BilateralFilter{}
}

func (b *BilateralFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	gray, release, err := prepare(input)
	if err != nil {
		return gray, err
	}
	defer release()

	d := intParam(params, "d", 9)
	sigmaColor := floatParam(params, "sigma_color", 75.0)
	sigmaSpace := floatParam(params, "sigma_space", 75.0)

	output := gocv.NewMat()
	gocv.BilateralFilter(gray, &output, d, sigmaColor, sigmaSpace)

	return filtered("bilateral", output)
}

func (b *BilateralFilter) GetDefaultParams() map[string]interface{} {
	return defaultsOf(b.GetParameterInfo())
}

func (b *BilateralFilter) GetName() string {
	return "Bilateral Filter"
}

func (b *BilateralFilter) GetDescription() string {
	return "Bilateral filter for edge-preserving smoothing"
}

func (b *BilateralFilter) Validate(params map[string]interface{}) error {
	return validateParams(b.GetParameterInfo(), params)
}

func (b *BilateralFilter) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "d",
			Type:        "int",
			Min:         3.0,
			Max:         15.0,
			Default:     9.0,
			Description: "Diameter of each pixel neighborhood",
		},
		{
			Name:        "sigma_color",
			Type:        "float",
			Min:         10.0,
			Max:         200.0,
			Default:     75.0,
			Description: "Filter sigma in the intensity space",
		},
		{
			Name:        "sigma_space",
			Type:        "float",
			Min:         10.0,
			Max:         200.0,
			Default:     75.0,
			Description: "Filter sigma in the coordinate space",
		},
	}
}

// SobelX replaces intensities by their horizontal derivative. Matching on
// gradients is insensitive to a brightness offset between the two cameras.
// The output is always 32-bit floating point.
type SobelX struct{}

func NewSobelX() *SobelX {
	return &SobelX{}
}

func (s *SobelX) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	gray, release, err := prepare(input)
	if err != nil {
		return gray, err
	}
	defer release()

	kernelSize := oddKernel(intParam(params, "kernel_size", 3))
	scale := floatParam(params, "scale", 1.0)

	output := gocv.NewMat()
	gocv.Sobel(gray, &output, gocv.MatTypeCV32F, 1, 0, kernelSize, scale, 0, borderType(params))

	return filtered("sobel_x", output)
}

func (s *SobelX) GetDefaultParams() map[string]interface{} {
	return defaultsOf(s.GetParameterInfo())
}

func (s *SobelX) GetName() string {
	return "Horizontal Sobel"
}

func (s *SobelX) GetDescription() string {
	return "Horizontal intensity derivative, robust to exposure differences"
}

func (s *SobelX) Validate(params map[string]interface{}) error {
	return validateParams(s.GetParameterInfo(), params)
}

func (s *SobelX) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "kernel_size",
			Type:        "int",
			Min:         1.0,
			Max:         7.0,
			Default:     3.0,
			Description: "Aperture of the derivative kernel (1, 3, 5 or 7)",
		},
		{
			Name:        "scale",
			Type:        "float",
			Min:         0.01,
			Max:         100.0,
			Default:     1.0,
			Description: "Factor applied to the derivative",
		},
		borderParam(),
	}
}

// BoxFilter averages each pixel's neighbourhood
type BoxFilter struct{}

func NewBoxFilter() *BoxFilter {
	return &BoxFilter{}
}

func (b *BoxFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	gray, release, err := prepare(input)
	if err != nil {
		return gray, err
	}
	defer release()

	kernelSize := intParam(params, "kernel_size", 3)

	output := gocv.NewMat()
	gocv.Blur(gray, &output, image.Pt(kernelSize, kernelSize))

	return filtered("box", output)
}

func (b *BoxFilter) GetDefaultParams() map[string]interface{} {
	return defaultsOf(b.GetParameterInfo())
}

func (b *BoxFilter) GetName() string {
	return "Box Filter"
}

func (b *BoxFilter) GetDescription() string {
	return "Normalized box blur"
}

func (b *BoxFilter) Validate(params map[string]interface{}) error {
	return validateParams(b.GetParameterInfo(), params)
}

func (b *BoxFilter) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "kernel_size",
			Type:        "int",
			Min:         1.0,
			Max:         31.0,
			Default:     3.0,
			Description: "Width and height of the averaging window",
		},
	}
}
