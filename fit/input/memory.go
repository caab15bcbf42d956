// Package input provides event sources for the fit engine: an in-memory source, a YAML event
// file format and a seeded synthetic generator.
package input

import (
	"fmt"

	"github.com/nuisfit/reweight/fit"
)

// Memory serves events from a slice. ReadEventAt returns a fresh copy per call, so concurrent
// readers never share weight fields.
type Memory struct {
	name         string
	events       []fit.Event
	splineBacked bool
}

// NewMemory wraps events. Event indices are rewritten to their slice positions and every
// event takes the source's spline-backed flag.
func NewMemory(name string, events []fit.Event, splineBacked bool) *Memory {
	evs := make([]fit.Event, len(events))
	copy(evs, events)
	for i := range evs {
		evs[i].Index = i
		evs[i].SplineBacked = splineBacked
		if evs[i].InputWeight == 0 {
			evs[i].InputWeight = 1
		}
	}
	return &Memory{name: name, events: evs, splineBacked: splineBacked}
}

// Name implements fit.InputSource.
func (m *Memory) Name() string { return m.name }

// EventCount implements fit.InputSource.
func (m *Memory) EventCount() int { return len(m.events) }

// IsSplineBacked implements fit.InputSource.
func (m *Memory) IsSplineBacked() bool { return m.splineBacked }

// ReadEventAt implements fit.InputSource.
func (m *Memory) ReadEventAt(i int) (*fit.Event, error) {
	if i < 0 || i >= len(m.events) {
		return nil, fmt.Errorf("input %q: event %d out of range [0, %d)", m.name, i, len(m.events))
	}
	ev := m.events[i]
	return &ev, nil
}

// Events returns the stored events; callers must not modify them.
func (m *Memory) Events() []fit.Event { return m.events }

// CheckCoefficients verifies that every event of a spline-backed source carries n coefficients.
func (m *Memory) CheckCoefficients(n int) error {
	if !m.splineBacked {
		return nil
	}
	for i, ev := range m.events {
		if len(ev.SplineCoeffs) != n {
			return fmt.Errorf("input %q: event %d has %d spline coefficients, want %d", m.name, i, len(ev.SplineCoeffs), n)
		}
	}
	return nil
}
