// Package sample provides binned measurement samples: a single-distribution Binned1D and a
// Joint sample combining several of them. The Sample and SubSample interfaces are defined in
// fit/ (parent package).
package sample

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/nuisfit/reweight/fit"
)

// Config describes one binned measurement.
type Config struct {
	Name      string
	Input     fit.InputSource
	Selection Selection
	Edges     []float64 // ascending, len = bins+1
	Data      []float64
	Errors    []float64     // per-bin errors; default √data
	Cov       mat.Symmetric // required by ChiSquareCov
	Mask      []bool        // true bins are excluded from likelihood and NDOF
	Statistic Statistic
	ShapeOnly bool    // scale the prediction to the data integral before the norm dial
	Scale     float64 // factor from summed weights to the data's units; default 1
	NormSigma float64 // > 0 adds (1-norm)²/σ² for the "<name>_norm" dial
}

// Binned1D fills a one-dimensional histogram of a projected variable and compares it with
// measured data.
//
// Raw bin contents are only touched by Reset and the fill methods; ConvertToComparableForm
// and Renormalize derive the prediction from them.
type Binned1D struct {
	cfg    Config
	dials  *fit.DialStore
	nBins  int
	raw    []float64 // filled weights
	base   []float64 // comparable form before the norm dial
	pred   []float64 // prediction compared with data
	norm   int       // position of the norm dial, -1 when none
	outer  float64   // extra factor set by an enclosing joint sample
	fills  int
	invCov *mat.SymDense
	diff   *mat.VecDense
	ndof   int
}

// NewBinned1D validates cfg. The sample's norm dial, if any, must already be registered.
func NewBinned1D(cfg Config, dials *fit.DialStore) (*Binned1D, error) {
	if dials == nil {
		panic("NewBinned1D: dials must not be nil")
	}
	bad := func(format string, args ...any) error {
		return fmt.Errorf("sample %q: %w: %s", cfg.Name, fit.ErrMalformedSample, fmt.Sprintf(format, args...))
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: sample name must not be empty", fit.ErrMalformedSample)
	}
	if cfg.Input == nil {
		return nil, bad("no input")
	}
	if len(cfg.Edges) < 2 {
		return nil, bad("need at least two bin edges, got %d", len(cfg.Edges))
	}
	if !sort.Float64sAreSorted(cfg.Edges) {
		return nil, bad("bin edges must be ascending")
	}
	n := len(cfg.Edges) - 1
	if len(cfg.Data) != n {
		return nil, bad("%d data values for %d bins", len(cfg.Data), n)
	}
	if cfg.Errors == nil {
		cfg.Errors = make([]float64, n)
		for i, d := range cfg.Data {
			cfg.Errors[i] = math.Sqrt(math.Max(d, 0))
		}
	} else if len(cfg.Errors) != n {
		return nil, bad("%d errors for %d bins", len(cfg.Errors), n)
	}
	if cfg.Mask == nil {
		cfg.Mask = make([]bool, n)
	} else if len(cfg.Mask) != n {
		return nil, bad("%d mask entries for %d bins", len(cfg.Mask), n)
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if cfg.NormSigma < 0 {
		return nil, bad("norm sigma must not be negative")
	}
	norm, err := dials.NormDial(cfg.Name)
	if err != nil {
		return nil, bad("%v", err)
	}

	s := &Binned1D{
		cfg:   cfg,
		dials: dials,
		nBins: n,
		raw:   make([]float64, n),
		base:  make([]float64, n),
		pred:  make([]float64, n),
		norm:  norm,
		outer: 1,
	}
	for _, m := range cfg.Mask {
		if !m {
			s.ndof++
		}
	}
	if cfg.Statistic == ChiSquareCov {
		if cfg.Cov == nil {
			return nil, bad("statistic chi2_cov needs a covariance")
		}
		if cfg.Cov.SymmetricDim() != n {
			return nil, bad("covariance is %dx%d for %d bins", cfg.Cov.SymmetricDim(), cfg.Cov.SymmetricDim(), n)
		}
		inv, err := reducedInverse(cfg.Cov, cfg.Mask)
		if err != nil {
			return nil, bad("%v", err)
		}
		s.invCov = inv
		s.diff = mat.NewVecDense(s.ndof, nil)
	}
	return s, nil
}

// Name implements fit.Sample and fit.SubSample.
func (s *Binned1D) Name() string { return s.cfg.Name }

// SubSamples returns the sample itself.
func (s *Binned1D) SubSamples() []fit.SubSample { return []fit.SubSample{s} }

// Input implements fit.SubSample.
func (s *Binned1D) Input() fit.InputSource { return s.cfg.Input }

// IsSignal implements fit.SubSample.
func (s *Binned1D) IsSignal(ev *fit.Event) bool { return s.cfg.Selection.IsSignal(ev) }

// Project implements fit.SubSample.
func (s *Binned1D) Project(ev *fit.Event) fit.Projection { return s.cfg.Selection.Project(ev) }

// FillFromClassification fills signal events only.
func (s *Binned1D) FillFromClassification(p fit.Projection, signal bool, weight float64) {
	if signal {
		s.Fill(p.X, weight)
	}
}

// FillFromCachedProjection implements fit.SubSample.
func (s *Binned1D) FillFromCachedProjection(p fit.Projection, weight float64) {
	s.Fill(p.X, weight)
}

// Fill adds weight to the bin containing x. Values outside the edges are dropped.
func (s *Binned1D) Fill(x, weight float64) {
	i := sort.Search(len(s.cfg.Edges), func(i int) bool { return s.cfg.Edges[i] > x }) - 1
	if i < 0 || i >= s.nBins {
		return
	}
	s.raw[i] += weight
	s.fills++
}

// Reset implements fit.Sample.
func (s *Binned1D) Reset() {
	clear(s.raw)
	s.fills = 0
}

// ConvertToComparableForm scales the raw contents into the data's units, applies the shape
// normalization if configured, then the norm dial.
func (s *Binned1D) ConvertToComparableForm() {
	floats.ScaleTo(s.base, s.cfg.Scale, s.raw)
	if s.cfg.ShapeOnly {
		var mcSum, dataSum float64
		for i := range s.base {
			if !s.cfg.Mask[i] {
				mcSum += s.base[i]
				dataSum += s.cfg.Data[i]
			}
		}
		if mcSum > 0 {
			floats.Scale(dataSum/mcSum, s.base)
		}
	}
	s.Renormalize()
}

// Renormalize reapplies the norm dial to the comparable form without touching raw contents.
func (s *Binned1D) Renormalize() {
	floats.ScaleTo(s.pred, s.normValue()*s.outer, s.base)
}

func (s *Binned1D) normValue() float64 {
	if s.norm < 0 {
		return 1
	}
	return s.dials.At(s.norm).Value
}

// Likelihood implements fit.Sample.
func (s *Binned1D) Likelihood() float64 {
	var l float64
	switch s.cfg.Statistic {
	case ChiSquareCov:
		l = chi2Cov(s.cfg.Data, s.pred, s.cfg.Mask, s.invCov, s.diff)
	case Poisson:
		l = poisson(s.cfg.Data, s.pred, s.cfg.Mask)
	default:
		l = chi2Diag(s.cfg.Data, s.pred, s.cfg.Errors, s.cfg.Mask)
	}
	if s.cfg.NormSigma > 0 {
		d := 1 - s.normValue()
		l += d * d / (s.cfg.NormSigma * s.cfg.NormSigma)
	}
	return l
}

// NDOF is the number of unmasked bins.
func (s *Binned1D) NDOF() int { return s.ndof }

// Bins returns the number of bins.
func (s *Binned1D) Bins() int { return s.nBins }

// Raw returns a copy of the filled contents.
func (s *Binned1D) Raw() []float64 { return append([]float64(nil), s.raw...) }

// Prediction returns a copy of the prediction compared with data.
func (s *Binned1D) Prediction() []float64 { return append([]float64(nil), s.pred...) }

// Data returns the measured values.
func (s *Binned1D) Data() []float64 { return s.cfg.Data }

// Fills returns the number of in-range fills since the last Reset.
func (s *Binned1D) Fills() int { return s.fills }

// Integral returns the summed prediction.
func (s *Binned1D) Integral() float64 { return floats.Sum(s.pred) }
