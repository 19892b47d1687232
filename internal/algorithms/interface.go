// Algorithm registry for prefilters and disparity matchers
package algorithms

import (
	"errors"
	"fmt"
	"sort"

	"gocv.io/x/gocv"

	"stereo-disparity/internal/core"
	"stereo-disparity/internal/disparity"
)

var (
	ErrUnknownAlgorithm = errors.New("algorithms: unknown algorithm")
	ErrInvalidParameter = errors.New("algorithms: invalid parameter")
	ErrEmptyInput       = errors.New("algorithms: input image is empty")
)

// Descriptor is the metadata every registered algorithm exposes
type Descriptor interface {
	GetDefaultParams() map[string]interface{}
	GetName() string
	GetDescription() string
	Validate(params map[string]interface{}) error
	GetParameterInfo() []ParameterInfo
}

// Filter is a single image prefilter applied before matching
type Filter interface {
	Descriptor
	Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error)
}

// Matcher computes a disparity map from a rectified pair
type Matcher interface {
	Descriptor
	Match(left, right core.Image, params map[string]interface{}, opts ...disparity.Option) (disparity.Result, error)
}

// ParameterInfo describes a parameter for flag and help generation
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "int", "float", "bool", "string", "enum"
	Min         interface{} `json:"min,omitempty"`
	Max         interface{} `json:"max,omitempty"`
	Default     interface{} `json:"default"`
	Description string      `json:"description"`
	Options     []string    `json:"options,omitempty"` // For enum type
}

const (
	CategoryPrefilter = "Prefilter"
	CategoryMatcher   = "Matcher"
)

var (
	filters  = make(map[string]Filter)
	matchers = make(map[string]Matcher)
)

func RegisterFilter(name string, filter Filter) {
	filters[name] = filter
}

func RegisterMatcher(name string, matcher Matcher) {
	matchers[name] = matcher
}

func GetFilter(name string) (Filter, bool) {
	filter, exists := filters[name]
	return filter, exists
}

func GetMatcher(name string) (Matcher, bool) {
	matcher, exists := matchers[name]
	return matcher, exists
}

// Get looks a name up among filters and matchers
func Get(name string) (Descriptor, bool) {
	if f, ok := filters[name]; ok {
		return f, true
	}
	if m, ok := matchers[name]; ok {
		return m, true
	}
	return nil, false
}

// ApplyFilter validates params and runs the named prefilter. The caller owns
// the returned Mat.
func ApplyFilter(name string, input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	filter, exists := filters[name]
	if !exists {
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
	if err := filter.Validate(params); err != nil {
		return gocv.NewMat(), err
	}

	return filter.Apply(input, params)
}

// Match validates params and runs the named matcher
func Match(name string, left, right core.Image, params map[string]interface{}, opts ...disparity.Option) (disparity.Result, error) {
	matcher, exists := matchers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
	if err := matcher.Validate(params); err != nil {
		return nil, err
	}

	return matcher.Match(left, right, params, opts...)
}

func ValidateParameters(name string, params map[string]interface{}) error {
	algorithm, exists := Get(name)
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}

	return algorithm.Validate(params)
}

func IsValidAlgorithm(name string) bool {
	_, exists := Get(name)
	return exists
}

func GetAllAlgorithms() map[string]Descriptor {
	result := make(map[string]Descriptor, len(filters)+len(matchers))
	for name, filter := range filters {
		result[name] = filter
	}
	for name, matcher := range matchers {
		result[name] = matcher
	}
	return result
}

func GetAlgorithmsByCategory() map[string][]string {
	return map[string][]string{
		CategoryPrefilter: sortedKeys(filters),
		CategoryMatcher:   sortedKeys(matchers),
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	// Register prefilters
	RegisterFilter("gaussian", NewGaussianFilter())
	RegisterFilter("median", NewMedianFilter())
	RegisterFilter("bilateral", NewBilateralFilter())
	RegisterFilter("sobel_x", NewSobelX())
	RegisterFilter("box", NewBoxFilter())

	// Register matchers
	RegisterMatcher("region_wta", NewRegionWTA())
	RegisterMatcher("region_subpixel_wta", NewRegionSubpixelWTA())
}
