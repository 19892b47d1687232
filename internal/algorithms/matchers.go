// Disparity matchers built on the region block matching engine
package algorithms

import (
	"fmt"

	"stereo-disparity/internal/core"
	"stereo-disparity/internal/disparity"
)

// matcherParameters describes the parameters shared by both matchers
func matcherParameters() []ParameterInfo {
	def := disparity.DefaultConfig()
	return []ParameterInfo{
		{
			Name:        "max_disparity",
			Type:        "int",
			Min:         0.0,
			Max:         float64(core.MaxDimension),
			Default:     float64(def.MaxDisparity),
			Description: "Largest disparity searched, in pixels",
		},
		{
			Name:        "radius_x",
			Type:        "int",
			Min:         0.0,
			Max:         64.0,
			Default:     float64(def.RegionRadiusX),
			Description: "Horizontal radius of the matching region",
		},
		{
			Name:        "radius_y",
			Type:        "int",
			Min:         0.0,
			Max:         64.0,
			Default:     float64(def.RegionRadiusY),
			Description: "Vertical radius of the matching region",
		},
		{
			Name:        "max_error",
			Type:        "float",
			Min:         -1.0,
			Default:     def.MaxPerPixelError,
			Description: "Largest average per pixel error of a match, negative disables",
		},
		{
			Name:        "rtol",
			Type:        "int",
			Min:         -1.0,
			Max:         float64(core.MaxDimension),
			Default:     float64(def.ValidateRtoL),
			Description: "Right to left consistency tolerance in pixels, zero or less disables",
		},
		{
			Name:        "texture",
			Type:        "float",
			Min:         0.0,
			Max:         10.0,
			Default:     def.Texture,
			Description: "Required margin of the second best match over the best, zero disables",
		},
	}
}

// ConfigFromParams builds a matcher configuration, starting from the defaults
func ConfigFromParams(params map[string]interface{}) (disparity.Config, error) {
	if err := validateParams(matcherParameters(), params); err != nil {
		return disparity.Config{}, err
	}

	def := disparity.DefaultConfig()
	cfg := disparity.Config{
		MaxDisparity:     intParam(params, "max_disparity", def.MaxDisparity),
		RegionRadiusX:    intParam(params, "radius_x", def.RegionRadiusX),
		RegionRadiusY:    intParam(params, "radius_y", def.RegionRadiusY),
		MaxPerPixelError: floatParam(params, "max_error", def.MaxPerPixelError),
		ValidateRtoL:     intParam(params, "rtol", def.ValidateRtoL),
		Texture:          floatParam(params, "texture", def.Texture),
	}
	if err := cfg.Validate(); err != nil {
		return disparity.Config{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return cfg, nil
}

// RegionWTA selects, per pixel, the disparity whose rectangular region has
// the smallest sum of absolute differences
type RegionWTA struct {
	mode disparity.Mode
}

func NewRegionWTA() *RegionWTA {
	return &RegionWTA{mode: disparity.ModeInteger}
}

// NewRegionSubpixelWTA refines each winner by fitting a parabola through its
// neighbouring costs
func NewRegionSubpixelWTA() *RegionWTA {
	return &RegionWTA{mode: disparity.ModeSubpixel}
}

func (r *RegionWTA) Match(left, right core.Image, params map[string]interface{}, opts ...disparity.Option) (disparity.Result, error) {
	cfg, err := ConfigFromParams(params)
	if err != nil {
		return nil, err
	}
	return disparity.Compute(cfg, r.mode, left, right, opts...)
}

func (r *RegionWTA) GetDefaultParams() map[string]interface{} {
	return defaultsOf(r.GetParameterInfo())
}

func (r *RegionWTA) GetName() string {
	if r.mode == disparity.ModeSubpixel {
		return "Region Sub-pixel WTA"
	}
	return "Region WTA"
}

func (r *RegionWTA) GetDescription() string {
	if r.mode == disparity.ModeSubpixel {
		return "SAD block matching with parabolic sub-pixel refinement"
	}
	return "SAD block matching with winner-take-all selection"
}

func (r *RegionWTA) Validate(params map[string]interface{}) error {
	_, err := ConfigFromParams(params)
	return err
}

func (r *RegionWTA) GetParameterInfo() []ParameterInfo {
	return matcherParameters()
}
