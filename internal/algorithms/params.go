// Parameter map access and validation
package algorithms

import (
	"fmt"
	"math"
	"slices"

	"gocv.io/x/gocv"
)

// Numbers travel as float64, the way decoded JSON and flag values arrive
func floatParam(params map[string]interface{}, name string, def float64) float64 {
	if val, ok := params[name]; ok {
		if v, ok := val.(float64); ok {
			return v
		}
	}
	return def
}

func intParam(params map[string]interface{}, name string, def int) int {
	if val, ok := params[name]; ok {
		if v, ok := val.(float64); ok {
			return int(v)
		}
	}
	return def
}

func stringParam(params map[string]interface{}, name, def string) string {
	if val, ok := params[name]; ok {
		if v, ok := val.(string); ok {
			return v
		}
	}
	return def
}

// validateParams checks every present parameter against its description.
// Unknown names are ignored.
func validateParams(info []ParameterInfo, params map[string]interface{}) error {
	for _, p := range info {
		val, ok := params[p.Name]
		if !ok {
			continue
		}

		switch p.Type {
		case "int", "float":
			v, ok := val.(float64)
			if !ok {
				return fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidParameter, p.Name, val)
			}
			if math.IsNaN(v) {
				return fmt.Errorf("%w: %s is NaN", ErrInvalidParameter, p.Name)
			}
			if p.Type == "int" && v != math.Trunc(v) {
				return fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidParameter, p.Name, v)
			}
			lo, hasLo := p.Min.(float64)
			hi, hasHi := p.Max.(float64)
			if hasLo && v < lo {
				return fmt.Errorf("%w: %s must be at least %v, got %v", ErrInvalidParameter, p.Name, lo, v)
			}
			if hasHi && v > hi {
				return fmt.Errorf("%w: %s must be at most %v, got %v", ErrInvalidParameter, p.Name, hi, v)
			}
		case "bool":
			if _, ok := val.(bool); !ok {
				return fmt.Errorf("%w: %s must be a bool, got %T", ErrInvalidParameter, p.Name, val)
			}
		case "enum":
			s, ok := val.(string)
			if !ok || !slices.Contains(p.Options, s) {
				return fmt.Errorf("%w: %s must be one of %v", ErrInvalidParameter, p.Name, p.Options)
			}
		}
	}
	return nil
}

// defaultsOf collects the Default of each parameter
func defaultsOf(info []ParameterInfo) map[string]interface{} {
	params := make(map[string]interface{}, len(info))
	for _, p := range info {
		params[p.Name] = p.Default
	}
	return params
}

var borderTypes = map[string]gocv.BorderType{
	"reflect101": gocv.BorderReflect101,
	"reflect":    gocv.BorderReflect,
	"replicate":  gocv.BorderReplicate,
	"constant":   gocv.BorderConstant,
}

func borderParam() ParameterInfo {
	return ParameterInfo{
		Name:        "border",
		Type:        "enum",
		Default:     "reflect101",
		Description: "Extrapolation used where the kernel leaves the image",
		Options:     []string{"reflect101", "reflect", "replicate", "constant"},
	}
}

func borderType(params map[string]interface{}) gocv.BorderType {
	if b, ok := borderTypes[stringParam(params, "border", "reflect101")]; ok {
		return b
	}
	return gocv.BorderReflect101
}

// oddKernel rounds an even kernel size up
func oddKernel(size int) int {
	if size%2 == 0 {
		return size + 1
	}
	return size
}
