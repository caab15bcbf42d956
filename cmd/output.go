package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nuisfit/reweight/fit"
	"github.com/nuisfit/reweight/fit/iteration"
)

var iterationsPath string // Iteration output file, chosen by extension

// writeIterations flushes the recorder's pending rows to path, in CSV or YAML by extension.
func writeIterations(rec *iteration.Recorder, path string) error {
	if rec == nil || path == "" {
		return nil
	}
	var open func(w io.Writer) iteration.RowWriter
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		open = func(w io.Writer) iteration.RowWriter { return iteration.NewCSVWriter(w) }
	case ".yaml", ".yml":
		open = func(w io.Writer) iteration.RowWriter { return iteration.NewYAMLWriter(w) }
	default:
		return fmt.Errorf("iteration output %s: unknown extension (want .csv, .yaml or .yml)", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating iteration output: %w", err)
	}
	defer f.Close()
	w := open(f)
	if err := rec.Flush(w); err != nil {
		return err
	}
	if y, ok := w.(*iteration.YAMLWriter); ok {
		if err := y.Close(); err != nil {
			return fmt.Errorf("closing iteration output: %w", err)
		}
	}
	logrus.Infof("Wrote %d iteration rows to %s", rec.Len(), path)
	return nil
}

// printBreakdown writes one line per likelihood component and the total.
func printBreakdown(w io.Writer, b fit.Breakdown) {
	fmt.Fprintf(w, "%-24s %14s %6s\n", "component", "likelihood", "ndof")
	for _, c := range b.Components {
		name := c.Name
		if c.Pull {
			name += " (pull)"
		}
		fmt.Fprintf(w, "%-24s %14.6f %6d\n", name, c.Likelihood, c.NDOF)
	}
	fmt.Fprintf(w, "%-24s %14.6f %6d\n", "total", b.Total, b.NDOF)
}

// logMetrics reports the session counters.
func logMetrics(m *fit.Metrics) {
	snap := m.Snapshot()
	logrus.Infof("Evaluations: %.0f (full=%.0f fast=%.0f renormalize=%.0f), backend reconfigures: %.0f, cache fallbacks: %.0f",
		snap.Evaluations, snap.FullPasses, snap.FastPasses, snap.Renormalizations, snap.BackendReconfigures, snap.CacheFallbacks)
}
