// Package card loads YAML fit cards and assembles them into a ready-to-evaluate Session.
//
// A card lists the engine settings, the dials, the response splines, the weight backends,
// the event inputs, the samples and the pull terms of one fit. Paths to event files are
// resolved relative to the card's directory.
package card

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nuisfit/reweight/fit"
	"github.com/nuisfit/reweight/fit/reweight"
	"github.com/nuisfit/reweight/fit/sample"
)

// Card is the top-level fit card.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Card struct {
	Engine   EngineCard    `yaml:"engine"`
	Dials    []DialCard    `yaml:"dials"`
	Splines  []SplineCard  `yaml:"splines"`
	Backends []BackendCard `yaml:"backends"`
	Inputs   []InputCard   `yaml:"inputs"`
	Samples  []SampleCard  `yaml:"samples"`
	Pulls    []PullCard    `yaml:"pulls"`

	dir string // directory event files are resolved against
}

// EngineCard holds engine settings. Nil pointer fields mean "not set in YAML" and keep
// the fit.DefaultConfig value.
type EngineCard struct {
	SignalReconfigures   bool     `yaml:"signal_reconfigures"`
	ConsistencyTolerance *float64 `yaml:"consistency_tolerance"`
	Parallelism          *int     `yaml:"parallelism"`
	RecordIterations     bool     `yaml:"record_iterations"`
	IterationName        string   `yaml:"iteration_name"`
}

// DialCard registers one dial.
type DialCard struct {
	Name  string  `yaml:"name"`
	Kind  string  `yaml:"kind"`
	Start float64 `yaml:"start"`
	Step  float64 `yaml:"step"` // initial simplex step for the minimizer; 0 = default
}

// SplineCard declares one response spline.
type SplineCard struct {
	Name  string    `yaml:"name"`
	Form  string    `yaml:"form"`
	Dials []string  `yaml:"dials"`
	Low   []float64 `yaml:"low"`
	High  []float64 `yaml:"high"`
	Knots []float64 `yaml:"knots"`
}

// BackendCard declares one analytic weight backend.
type BackendCard struct {
	Type       string     `yaml:"type"`
	Generators []string   `yaml:"generators"`
	Terms      []TermCard `yaml:"terms"`
}

// TermCard binds a dial to a set of modes.
type TermCard struct {
	Dial     string  `yaml:"dial"`
	Modes    []int   `yaml:"modes"`
	Fraction float64 `yaml:"fraction"`
}

// InputCard names an event source: either an event file or a generated sample.
type InputCard struct {
	Name     string        `yaml:"name"`
	File     string        `yaml:"file"`
	Generate *GenerateCard `yaml:"generate"`
}

// GenerateCard mirrors input.GenerateConfig.
type GenerateCard struct {
	Events        int       `yaml:"events"`
	Seed          int64     `yaml:"seed"`
	Generator     string    `yaml:"generator"`
	Modes         []int     `yaml:"modes"`
	ModeFractions []float64 `yaml:"mode_fractions"`
	WeightJitter  float64   `yaml:"weight_jitter"`
	SplineForm    string    `yaml:"spline_form"`
	ScanPoints    []float64 `yaml:"scan_points"`
}

// SampleCard declares a binned sample, or a joint sample when Parts is set.
type SampleCard struct {
	Name       string       `yaml:"name"`
	Input      string       `yaml:"input"`
	X          string       `yaml:"x"`
	Y          string       `yaml:"y"`
	Modes      []int        `yaml:"modes"`
	Generators []string     `yaml:"generators"`
	Cuts       []CutCard    `yaml:"cuts"`
	Edges      []float64    `yaml:"edges"`
	Data       []float64    `yaml:"data"`
	Errors     []float64    `yaml:"errors"`
	Cov        [][]float64  `yaml:"cov"`
	Mask       []bool       `yaml:"mask"`
	Statistic  string       `yaml:"statistic"`
	ShapeOnly  bool         `yaml:"shape_only"`
	Scale      float64      `yaml:"scale"`
	NormSigma  float64      `yaml:"norm_sigma"`
	Parts      []SampleCard `yaml:"parts"`
}

// CutCard keeps events with Min <= var < Max. A missing bound is open.
type CutCard struct {
	Var string   `yaml:"var"`
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// PullCard declares a pull term from sigmas or a full covariance.
type PullCard struct {
	Name   string      `yaml:"name"`
	Type   string      `yaml:"type"`
	Dials  []string    `yaml:"dials"`
	Target []float64   `yaml:"target"`
	Sigmas []float64   `yaml:"sigmas"`
	Cov    [][]float64 `yaml:"cov"`
}

// IsJoint reports whether the sample card describes a joint sample.
func (s *SampleCard) IsJoint() bool { return len(s.Parts) > 0 }

// Load reads, parses and validates a fit card. Unknown keys are rejected.
func Load(path string) (*Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fit card: %w", err)
	}
	c, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("fit card %s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Decode parses and validates a fit card. Relative event file paths are resolved against
// the working directory.
func Decode(r io.Reader) (*Card, error) {
	var c Card
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("parsing fit card: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// EngineConfig merges the engine section over fit.DefaultConfig.
func (c *Card) EngineConfig() fit.Config {
	cfg := fit.DefaultConfig()
	cfg.SignalReconfigures = c.Engine.SignalReconfigures
	cfg.RecordIterations = c.Engine.RecordIterations
	if c.Engine.ConsistencyTolerance != nil {
		cfg.ConsistencyTolerance = *c.Engine.ConsistencyTolerance
	}
	if c.Engine.Parallelism != nil {
		cfg.Parallelism = *c.Engine.Parallelism
	}
	if c.Engine.IterationName != "" {
		cfg.IterationName = c.Engine.IterationName
	}
	return cfg
}

// Validate checks names, cross references and value ranges. It does not open input files.
func (c *Card) Validate() error {
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	dialKinds := make(map[string]fit.DialKind, len(c.Dials))
	for i, d := range c.Dials {
		prefix := fmt.Sprintf("dials[%d]", i)
		if d.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if _, dup := dialKinds[d.Name]; dup {
			return fmt.Errorf("%s: duplicate dial %q", prefix, d.Name)
		}
		kind, err := fit.ParseDialKind(d.Kind)
		if err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		if d.Step < 0 {
			return fmt.Errorf("%s: step must be non-negative, got %g", prefix, d.Step)
		}
		dialKinds[d.Name] = kind
	}

	for i, s := range c.Splines {
		prefix := fmt.Sprintf("splines[%d]", i)
		if s.Name == "" || s.Form == "" {
			return fmt.Errorf("%s: name and form are required", prefix)
		}
		for _, d := range s.Dials {
			kind, ok := dialKinds[d]
			if !ok {
				return fmt.Errorf("%s: %w: %q", prefix, fit.ErrDialNotRegistered, d)
			}
			if kind != fit.KindSpline {
				return fmt.Errorf("%s: dial %q has kind %s, want spline", prefix, d, kind)
			}
		}
	}

	for i, b := range c.Backends {
		prefix := fmt.Sprintf("backends[%d]", i)
		if !reweight.IsValidBackend(b.Type) {
			return fmt.Errorf("%s: unknown backend type %q; valid: mode_norm, response", prefix, b.Type)
		}
		if len(b.Terms) == 0 {
			return fmt.Errorf("%s: at least one term required", prefix)
		}
		for j, t := range b.Terms {
			if _, ok := dialKinds[t.Dial]; !ok {
				return fmt.Errorf("%s.terms[%d]: %w: %q", prefix, j, fit.ErrDialNotRegistered, t.Dial)
			}
		}
	}

	inputs := make(map[string]bool, len(c.Inputs))
	for i, in := range c.Inputs {
		prefix := fmt.Sprintf("inputs[%d]", i)
		if in.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if inputs[in.Name] {
			return fmt.Errorf("%s: duplicate input %q", prefix, in.Name)
		}
		if (in.File == "") == (in.Generate == nil) {
			return fmt.Errorf("%s: exactly one of file or generate is required", prefix)
		}
		if in.Generate != nil && in.Generate.Events <= 0 {
			return fmt.Errorf("%s: generate.events must be positive, got %d", prefix, in.Generate.Events)
		}
		inputs[in.Name] = true
	}

	if len(c.Samples) == 0 {
		return fmt.Errorf("at least one sample required")
	}
	names := make(map[string]bool)
	normable := make(map[string]bool) // samples and joint parts that may own a norm dial
	for i := range c.Samples {
		s := &c.Samples[i]
		prefix := fmt.Sprintf("samples[%d]", i)
		if names[s.Name] {
			return fmt.Errorf("%s: duplicate component %q", prefix, s.Name)
		}
		names[s.Name] = true
		normable[s.Name] = true
		if s.IsJoint() {
			if s.Name == "" {
				return fmt.Errorf("%s: name is required", prefix)
			}
			if len(s.Parts) < sample.MinJointParts {
				return fmt.Errorf("%s: joint sample needs at least %d parts, got %d", prefix, sample.MinJointParts, len(s.Parts))
			}
			for j := range s.Parts {
				if s.Parts[j].IsJoint() {
					return fmt.Errorf("%s.parts[%d]: joint samples cannot nest", prefix, j)
				}
				if err := validateBinned(&s.Parts[j], fmt.Sprintf("%s.parts[%d]", prefix, j), inputs); err != nil {
					return err
				}
				normable[s.Parts[j].Name] = true
			}
			continue
		}
		if err := validateBinned(s, prefix, inputs); err != nil {
			return err
		}
	}

	for i, d := range c.Dials {
		owner, hasSuffix := strings.CutSuffix(d.Name, fit.NormDialSuffix)
		owned := hasSuffix && normable[owner]
		switch kind := dialKinds[d.Name]; {
		case kind == fit.KindNorm && !owned:
			return fmt.Errorf("dials[%d]: norm dial %q matches no sample; name it <sample>_norm", i, d.Name)
		case kind != fit.KindNorm && owned:
			return fmt.Errorf("dials[%d]: dial %q names the norm of sample %q but has kind %s", i, d.Name, owner, kind)
		}
	}

	for i, p := range c.Pulls {
		prefix := fmt.Sprintf("pulls[%d]", i)
		if p.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if names[p.Name] {
			return fmt.Errorf("%s: duplicate component %q", prefix, p.Name)
		}
		names[p.Name] = true
		if _, err := fit.ParsePullType(p.Type); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		for _, d := range p.Dials {
			if _, ok := dialKinds[d]; !ok {
				return fmt.Errorf("%s: %w: %q", prefix, fit.ErrDialNotRegistered, d)
			}
		}
		if (len(p.Sigmas) == 0) == (len(p.Cov) == 0) {
			return fmt.Errorf("%s: exactly one of sigmas or cov is required", prefix)
		}
	}
	return nil
}

func validateBinned(s *SampleCard, prefix string, inputs map[string]bool) error {
	if s.Name == "" {
		return fmt.Errorf("%s: name is required", prefix)
	}
	if !inputs[s.Input] {
		return fmt.Errorf("%s: unknown input %q", prefix, s.Input)
	}
	if s.X == "" {
		return fmt.Errorf("%s: x variable is required", prefix)
	}
	if len(s.Edges) < 2 {
		return fmt.Errorf("%s: need at least two bin edges, got %d", prefix, len(s.Edges))
	}
	if len(s.Data) != len(s.Edges)-1 {
		return fmt.Errorf("%s: %d data values for %d bins", prefix, len(s.Data), len(s.Edges)-1)
	}
	stat, err := sample.ParseStatistic(s.Statistic)
	if err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	if stat == sample.ChiSquareCov && len(s.Cov) == 0 {
		return fmt.Errorf("%s: statistic chi2_cov needs cov", prefix)
	}
	for j, cut := range s.Cuts {
		if cut.Var == "" {
			return fmt.Errorf("%s.cuts[%d]: var is required", prefix, j)
		}
		if cut.Min != nil && cut.Max != nil && *cut.Min >= *cut.Max {
			return fmt.Errorf("%s.cuts[%d]: min %g must be below max %g", prefix, j, *cut.Min, *cut.Max)
		}
	}
	if s.Scale < 0 {
		return fmt.Errorf("%s: scale must be non-negative, got %g", prefix, s.Scale)
	}
	return nil
}
