package input

import (
	"fmt"
	"math"

	"github.com/nuisfit/reweight/fit"
	"github.com/nuisfit/reweight/fit/spline"
)

// GenerateConfig controls synthetic event generation.
type GenerateConfig struct {
	Name          string
	Events        int
	Seed          int64
	Generator     string    // default "synthetic"
	Modes         []int     // default 1, 2, 11
	ModeFractions []float64 // relative frequencies, default uniform
	WeightJitter  float64   // relative Gaussian spread of input weights, 0 = all 1
	// SplineForm makes the source spline-backed: each event carries coefficients of this form
	// fitted to its true response at ScanPoints.
	SplineForm string
	ScanPoints []float64 // default -2, -1, 0, 1, 2
}

// DefaultScanPoints are the dial values at which generated responses are sampled.
var DefaultScanPoints = []float64{-2, -1, 0, 1, 2}

// Generate draws a reproducible event sample. Each quantity comes from its own RNG
// subsystem, so changing the mode mix does not move the kinematics.
func Generate(cfg GenerateConfig) (*Memory, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("generated input needs a name")
	}
	if cfg.Events <= 0 {
		return nil, fmt.Errorf("event count must be positive, got %d", cfg.Events)
	}
	if cfg.Generator == "" {
		cfg.Generator = "synthetic"
	}
	if len(cfg.Modes) == 0 {
		cfg.Modes = []int{1, 2, 11}
	}
	if cfg.ModeFractions == nil {
		cfg.ModeFractions = make([]float64, len(cfg.Modes))
		for i := range cfg.ModeFractions {
			cfg.ModeFractions[i] = 1
		}
	}
	if len(cfg.ModeFractions) != len(cfg.Modes) {
		return nil, fmt.Errorf("%d mode fractions for %d modes", len(cfg.ModeFractions), len(cfg.Modes))
	}
	cdf := make([]float64, len(cfg.ModeFractions))
	var sum float64
	for i, f := range cfg.ModeFractions {
		if f < 0 {
			return nil, fmt.Errorf("mode fraction %d is negative", i)
		}
		sum += f
		cdf[i] = sum
	}
	if sum == 0 {
		return nil, fmt.Errorf("mode fractions sum to zero")
	}
	if cfg.ScanPoints == nil {
		cfg.ScanPoints = DefaultScanPoints
	}

	rng := NewPartitionedRNG(cfg.Seed)
	kin := rng.ForSubsystem(SubsystemKinematics)
	modes := rng.ForSubsystem(SubsystemModes)
	jitter := rng.ForSubsystem(SubsystemWeights)

	events := make([]fit.Event, cfg.Events)
	resp := make([]float64, len(cfg.ScanPoints))
	for i := range events {
		enu := math.Max(0.1, 1+0.3*kin.NormFloat64())
		q2 := enu * 0.4 * kin.ExpFloat64()
		pmu := math.Max(0, enu-q2/(2*0.94))

		u := modes.Float64() * sum
		k := 0
		for k < len(cdf)-1 && u >= cdf[k] {
			k++
		}

		w := 1.0
		if cfg.WeightJitter > 0 {
			w = math.Max(0, 1+cfg.WeightJitter*jitter.NormFloat64())
		}
		ev := fit.Event{
			Generator:   cfg.Generator,
			Mode:        cfg.Modes[k],
			Vars:        map[string]float64{"enu": enu, "q2": q2, "pmu": pmu},
			InputWeight: w,
		}
		if cfg.SplineForm != "" {
			for j, x := range cfg.ScanPoints {
				resp[j] = trueResponse(k, q2, x)
			}
			coeffs, err := spline.FitCoefficients(cfg.SplineForm, cfg.ScanPoints, resp)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			ev.SplineCoeffs = coeffs
		}
		events[i] = ev
	}
	return NewMemory(cfg.Name, events, cfg.SplineForm != ""), nil
}

// trueResponse is the generated weight response of a mode to one dial: linear with a slope
// growing with the mode index and falling with q², plus a small curvature.
func trueResponse(modeIndex int, q2, x float64) float64 {
	slope := 0.1 * float64(modeIndex+1) * math.Exp(-q2)
	return math.Max(0, 1+slope*x+0.02*x*x)
}
