package main

import (
	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/physics"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name string  // Human-readable name
	Path string  // Config path for logging
	Min  float64 // Lower bound
	Max  float64 // Upper bound
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "surface_force", Path: "surface.force", Min: 0.5, Max: 3.0},
			{Name: "softness", Path: "surface.softness", Min: 0.001, Max: 0.1},
			{Name: "min_force", Path: "surface.min_force", Min: 0, Max: 0.5},
			{Name: "friction_stiffness", Path: "surface.friction_stiffness", Min: 5, Max: 200},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToSettings applies clamped parameter values to solver settings.
// Order must match Specs order.
func (pv *ParamVector) ApplyToSettings(set *physics.Settings, values []float64) {
	c := pv.Clamp(values)
	set.SurfaceForce = c[0]
	set.Softness = c[1]
	set.MinForce = c[2]
	set.FrictionStiffness = c[3]
}

// ApplyToConfig applies clamped parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	cfg.Surface.Force = c[0]
	cfg.Surface.Softness = c[1]
	cfg.Surface.MinForce = c[2]
	cfg.Surface.FrictionStiffness = c[3]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Surface.Force,
		cfg.Surface.Softness,
		cfg.Surface.MinForce,
		cfg.Surface.FrictionStiffness,
	}
}
