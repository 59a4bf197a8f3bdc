package main

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/haptics"
	"github.com/pthm-cable/touchfield/heightfield"
	"github.com/pthm-cable/touchfield/mip"
	"github.com/pthm-cable/touchfield/physics"
)

// Sweep shape, in ticks of 1 ms.
const (
	pressTicks = 400
	slideTicks = 1200
	pressDepth = 0.05  // How far below the surface the press sweep goes
	slideDepth = 0.004 // How far below the surface the slide sweep follows it
	tick       = time.Millisecond

	contactForce = 0.01 // Fraction of SurfaceForce that counts as first contact
)

// Fitness weights.
const (
	weightRoughness = 1.0
	weightBand      = 20.0
	weightClamped   = 5.0
	weightInvalid   = 100.0
)

// scene is one precomputed terrain to sweep over.
type scene struct {
	tex mip.HeightTexture
	pyr *mip.Pyramid
}

// SweepResult holds the metrics from one scene.
type SweepResult struct {
	Roughness float64 // Mean squared tick-to-tick change in |F|, over SurfaceForce^2
	Band      float64 // Probe travel from first contact force to 90% of SurfaceForce
	Clamped   float64 // Fraction of ticks whose |F| exceeded MaxForce
	Invalid   int     // Non-finite forces
}

// Fitness combines the metrics (lower = better).
func (r SweepResult) Fitness() float64 {
	return weightRoughness*r.Roughness +
		weightBand*r.Band +
		weightClamped*r.Clamped +
		weightInvalid*float64(r.Invalid)
}

// FitnessEvaluator sweeps a probe over generated terrains and scores the
// resulting forces.
type FitnessEvaluator struct {
	params   *ParamVector
	base     physics.Settings
	maxForce float64
	scenes   []scene

	mu   sync.Mutex
	last SweepResult
}

// NewFitnessEvaluator builds one terrain per seed from the base config.
func NewFitnessEvaluator(params *ParamVector, seeds []int64, baseCfg *config.Config) (*FitnessEvaluator, error) {
	hp, err := haptics.NewParams(baseCfg.Surface)
	if err != nil {
		return nil, err
	}
	fe := &FitnessEvaluator{
		params:   params,
		base:     hp.Settings(),
		maxForce: baseCfg.Loop.MaxForce,
	}
	for _, seed := range seeds {
		terrain := baseCfg.Terrain
		terrain.Seed = seed
		tex := heightfield.NewGenerator(terrain).Generate(baseCfg.Pyramid.Size, 0)
		pyr, err := mip.Build(tex)
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", seed, err)
		}
		fe.scenes = append(fe.scenes, scene{tex: tex, pyr: &pyr})
	}
	return fe, nil
}

// LastResult returns the averaged metrics from the most recent Evaluate call.
func (fe *FitnessEvaluator) LastResult() SweepResult {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	set := fe.base
	fe.params.ApplyToSettings(&set, x)

	// Run all scenes in parallel
	results := make([]SweepResult, len(fe.scenes))
	var wg sync.WaitGroup
	for i := range fe.scenes {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = fe.sweep(set, &fe.scenes[idx])
		}(i)
	}
	wg.Wait()

	var avg SweepResult
	var fitness float64
	for _, r := range results {
		avg.Roughness += r.Roughness
		avg.Band += r.Band
		avg.Clamped += r.Clamped
		avg.Invalid += r.Invalid
		fitness += r.Fitness()
	}
	n := float64(len(results))
	avg.Roughness /= n
	avg.Band /= n
	avg.Clamped /= n

	fe.mu.Lock()
	fe.last = avg
	fe.mu.Unlock()
	return fitness / n
}

// sweep presses straight down at the centre, then slides across the
// surface just below it.
func (fe *FitnessEvaluator) sweep(set physics.Settings, sc *scene) SweepResult {
	var now time.Duration
	solver := physics.NewSolver(func() time.Duration {
		now += tick
		return now
	})

	var (
		res       SweepResult
		mags      []float64
		clamped   int
		touched   = math.NaN()
		surfaceAt = func(u, v float64) float64 { return heightAt(sc.tex, u, v) }
	)
	step := func(u, v, z float64) float64 {
		pos := haptics.DevicePosition(set, u, v, z)
		f := solver.Step(set, sc.pyr, r3.Vec{X: float64(pos[0]), Y: float64(pos[1]), Z: float64(pos[2])})
		m := r3.Norm(f)
		if math.IsNaN(m) || math.IsInf(m, 0) {
			res.Invalid++
			m = 0
		}
		if m > fe.maxForce {
			clamped++
		}
		mags = append(mags, m)
		return m
	}

	// Press
	h0 := surfaceAt(0.5, 0.5)
	if math.IsNaN(h0) {
		h0 = 0
	}
	res.Band = 2 * pressDepth
	reached := false
	for i := 0; i <= pressTicks; i++ {
		frac := float64(i) / pressTicks
		z := h0 + pressDepth - 2*pressDepth*frac
		m := step(0.5, 0.5, z)
		if math.IsNaN(touched) && m > contactForce*set.SurfaceForce {
			touched = z
		}
		if !reached && !math.IsNaN(touched) && m >= 0.9*set.SurfaceForce {
			res.Band = touched - z
			reached = true
		}
	}
	solver.Reset()
	pressed := len(mags)

	// Slide along v = 0.5, following the surface
	z := h0 - slideDepth
	for i := 0; i <= slideTicks; i++ {
		u := 0.2 + 0.6*float64(i)/slideTicks
		if h := surfaceAt(u, 0.5); !math.IsNaN(h) {
			z = h - slideDepth
		}
		step(u, 0.5, z)
	}

	res.Roughness = roughness(mags[pressed:], set.SurfaceForce)
	res.Clamped = float64(clamped) / float64(len(mags))
	return res
}

// roughness is the mean squared tick-to-tick change in magnitude,
// normalised by the surface force.
func roughness(mags []float64, force float64) float64 {
	if len(mags) < 2 || force <= 0 {
		return 0
	}
	diffs := make([]float64, len(mags)-1)
	for i := range diffs {
		d := (mags[i+1] - mags[i]) / force
		diffs[i] = d * d
	}
	return stat.Mean(diffs, nil)
}

// heightAt returns the nearest texel height at (u, v).
func heightAt(tex mip.HeightTexture, u, v float64) float64 {
	x := clampInt(int(u*float64(tex.W)), 0, tex.W-1)
	y := clampInt(int(v*float64(tex.H)), 0, tex.H-1)
	return float64(tex.Heights[y*tex.W+x])
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
