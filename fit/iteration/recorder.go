package iteration

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotOpen is returned when rows are appended before Open.
var ErrNotOpen = errors.New("iteration recorder not open")

// RowWriter persists batches of rows. Format and medium are up to the implementation.
type RowWriter interface {
	WriteRows(schema Schema, rows []Row) error
}

// Recorder accumulates iteration rows for one table.
type Recorder struct {
	schema  Schema
	open    bool
	rows    []Row
	flushed int
}

// NewRecorder creates a closed recorder.
func NewRecorder() *Recorder {
	return &Recorder{rows: make([]Row, 0)}
}

// Open allocates the schema and drops previous rows. Re-opening under the same name resets
// the table instead of creating a second one.
func (r *Recorder) Open(name string, components, dials []string) {
	if r.open && r.schema.Name == name {
		logrus.Debugf("[iteration] re-opening %q, dropping %d rows", name, len(r.rows))
	}
	r.schema = Schema{
		Name:       name,
		SessionID:  uuid.NewString(),
		Components: append([]string(nil), components...),
		Dials:      append([]string(nil), dials...),
	}
	r.rows = r.rows[:0:0]
	r.flushed = 0
	r.open = true
}

// IsOpen reports whether Open has been called.
func (r *Recorder) IsOpen() bool { return r.open }

// Schema returns the current schema.
func (r *Recorder) Schema() Schema { return r.schema }

// AppendRow copies the values into a new row. Earlier rows are never touched.
func (r *Recorder) AppendRow(iter int, components []Pair, total float64, ndof int, dials []float64) error {
	if !r.open {
		return ErrNotOpen
	}
	if len(components) != len(r.schema.Components) {
		return fmt.Errorf("iteration %d: %d component values for %d columns", iter, len(components), len(r.schema.Components))
	}
	if len(dials) != len(r.schema.Dials) {
		return fmt.Errorf("iteration %d: %d dial values for %d columns", iter, len(dials), len(r.schema.Dials))
	}
	r.rows = append(r.rows, Row{
		Iteration:       iter,
		Components:      append([]Pair(nil), components...),
		TotalLikelihood: total,
		TotalNDOF:       ndof,
		Dials:           append([]float64(nil), dials...),
	})
	return nil
}

// Len returns the number of rows since Open.
func (r *Recorder) Len() int { return len(r.rows) }

// Rows returns the recorded rows; callers must not modify them.
func (r *Recorder) Rows() []Row { return r.rows }

// Pending returns the number of rows not yet flushed.
func (r *Recorder) Pending() int { return len(r.rows) - r.flushed }

// Flush hands the rows appended since the previous successful flush to w. With nothing new
// it does not call w and returns nil.
func (r *Recorder) Flush(w RowWriter) error {
	if r.Pending() == 0 {
		return nil
	}
	batch := r.rows[r.flushed:]
	if err := w.WriteRows(r.schema, batch); err != nil {
		return fmt.Errorf("flushing %d rows of %q: %w", len(batch), r.schema.Name, err)
	}
	r.flushed = len(r.rows)
	return nil
}
