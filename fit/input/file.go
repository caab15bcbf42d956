package input

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nuisfit/reweight/fit"
)

// fileEvent is the on-disk form of one event.
type fileEvent struct {
	Generator string             `yaml:"generator,omitempty"`
	Mode      int                `yaml:"mode"`
	Weight    float64            `yaml:"weight,omitempty"`
	Vars      map[string]float64 `yaml:"vars,omitempty"`
	Coeffs    []float64          `yaml:"coeffs,omitempty,flow"`
}

// File is the YAML layout of an event file.
type File struct {
	Name         string      `yaml:"name"`
	SplineBacked bool        `yaml:"spline_backed,omitempty"`
	Events       []fileEvent `yaml:"events"`
}

// LoadFile reads a YAML event file with strict field checking.
func LoadFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening event file: %w", err)
	}
	defer f.Close()
	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("event file %s: %w", path, err)
	}
	return m, nil
}

// Decode parses an event stream.
func Decode(r io.Reader) (*Memory, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing events: %w", err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("event file has no name")
	}
	events := make([]fit.Event, len(file.Events))
	for i, fe := range file.Events {
		if file.SplineBacked && len(fe.Coeffs) == 0 {
			return nil, fmt.Errorf("event %d: spline-backed file without coefficients", i)
		}
		if !file.SplineBacked && len(fe.Coeffs) > 0 {
			return nil, fmt.Errorf("event %d: coefficients in a file that is not spline-backed", i)
		}
		events[i] = fit.Event{
			Generator:    fe.Generator,
			Mode:         fe.Mode,
			Vars:         fe.Vars,
			InputWeight:  fe.Weight,
			SplineCoeffs: fe.Coeffs,
		}
	}
	return NewMemory(file.Name, events, file.SplineBacked), nil
}

// Encode writes the source in the event file layout.
func Encode(w io.Writer, m *Memory) error {
	file := File{Name: m.name, SplineBacked: m.splineBacked, Events: make([]fileEvent, len(m.events))}
	for i, ev := range m.events {
		file.Events[i] = fileEvent{
			Generator: ev.Generator,
			Mode:      ev.Mode,
			Weight:    ev.InputWeight,
			Vars:      ev.Vars,
		}
		if m.splineBacked {
			file.Events[i].Coeffs = ev.SplineCoeffs
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the source to path.
func WriteFile(path string, m *Memory) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating event file: %w", err)
	}
	if err := Encode(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
