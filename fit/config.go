package fit

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultConsistencyTolerance is the largest |L_full - L_fast| accepted by the one-time
// Full/Fast consistency check, in likelihood units.
const DefaultConsistencyTolerance = 1e-4

// Config groups the engine settings of one fit session.
type Config struct {
	SignalReconfigures   bool    // cache signal events and reuse them in Fast Passes
	ConsistencyTolerance float64 // Full/Fast check tolerance (must be > 0)
	Parallelism          int     // Full Pass classification workers (<= 1 = serial)
	RecordIterations     bool    // append an iteration row on every evaluation
	IterationName        string  // recorder name (default "fit_iterations")
	// OnFatal receives fatal errors raised through Objective. Defaults to logrus.Fatalf.
	OnFatal func(err error)
}

// DefaultConfig returns the settings used when a card leaves the engine section empty.
func DefaultConfig() Config {
	return Config{
		SignalReconfigures:   false,
		ConsistencyTolerance: DefaultConsistencyTolerance,
		Parallelism:          1,
		RecordIterations:     false,
		IterationName:        "fit_iterations",
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.ConsistencyTolerance <= 0 {
		return fmt.Errorf("consistency tolerance must be positive, got %g", c.ConsistencyTolerance)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative, got %d", c.Parallelism)
	}
	return nil
}

func (c Config) fatal(err error) {
	if c.OnFatal != nil {
		c.OnFatal(err)
		return
	}
	logrus.Fatalf("fatal fit error: %v", err)
}
