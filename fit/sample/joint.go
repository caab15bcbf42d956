package sample

import (
	"fmt"

	"github.com/nuisfit/reweight/fit"
)

// MinJointParts is the smallest number of parts a joint sample accepts.
const MinJointParts = 2

// Joint combines several binned samples into one likelihood component. Each part is a
// sub-sample with its own input and selection. The joint's own "<name>_norm" dial scales
// every part on top of the part's norm dial.
type Joint struct {
	name  string
	parts []*Binned1D
	norm  int // position of the joint norm dial, -1 when none
}

// NewJoint groups parts under one name. Parts must share one DialStore.
func NewJoint(name string, parts []*Binned1D) (*Joint, error) {
	if len(parts) < MinJointParts {
		return nil, fmt.Errorf("joint sample %q: %w: needs at least %d inputs, got %d",
			name, fit.ErrMalformedSample, MinJointParts, len(parts))
	}
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if seen[p.Name()] {
			return nil, fmt.Errorf("joint sample %q: %w: duplicate part %q", name, fit.ErrMalformedSample, p.Name())
		}
		seen[p.Name()] = true
		if p.dials != parts[0].dials {
			return nil, fmt.Errorf("joint sample %q: %w: part %q uses another dial store", name, fit.ErrMalformedSample, p.Name())
		}
	}
	norm, err := parts[0].dials.NormDial(name)
	if err != nil {
		return nil, fmt.Errorf("joint sample %q: %w: %v", name, fit.ErrMalformedSample, err)
	}
	return &Joint{name: name, parts: parts, norm: norm}, nil
}

// Name implements fit.Sample.
func (j *Joint) Name() string { return j.name }

// Parts returns the combined samples.
func (j *Joint) Parts() []*Binned1D { return j.parts }

// SubSamples implements fit.Sample.
func (j *Joint) SubSamples() []fit.SubSample {
	subs := make([]fit.SubSample, len(j.parts))
	for i, p := range j.parts {
		subs[i] = p
	}
	return subs
}

// Reset implements fit.Sample.
func (j *Joint) Reset() {
	for _, p := range j.parts {
		p.Reset()
	}
}

// ConvertToComparableForm implements fit.Sample.
func (j *Joint) ConvertToComparableForm() {
	outer := j.normValue()
	for _, p := range j.parts {
		p.outer = outer
		p.ConvertToComparableForm()
	}
}

// Renormalize implements fit.Sample.
func (j *Joint) Renormalize() {
	outer := j.normValue()
	for _, p := range j.parts {
		p.outer = outer
		p.Renormalize()
	}
}

func (j *Joint) normValue() float64 {
	if j.norm < 0 {
		return 1
	}
	return j.parts[0].dials.At(j.norm).Value
}

// Likelihood is the sum over parts.
func (j *Joint) Likelihood() float64 {
	var l float64
	for _, p := range j.parts {
		l += p.Likelihood()
	}
	return l
}

// NDOF is the sum over parts.
func (j *Joint) NDOF() int {
	n := 0
	for _, p := range j.parts {
		n += p.NDOF()
	}
	return n
}
