package fit

import (
	"errors"
	"fmt"
)

var (
	// ErrDialNotRegistered is returned when a dial name or id has no registration.
	ErrDialNotRegistered = errors.New("dial not registered")
	// ErrVectorLength is returned when a parameter vector does not match the dial count.
	ErrVectorLength = errors.New("parameter vector length mismatch")
	// ErrMalformedSample is returned for samples that cannot be registered.
	ErrMalformedSample = errors.New("malformed sample registration")
	// ErrConsistencyMismatch is returned when the Fast Pass does not reproduce the Full Pass.
	ErrConsistencyMismatch = errors.New("full and fast likelihoods differ")
	// ErrEngineAborted is returned by every call after a fatal error.
	ErrEngineAborted = errors.New("engine aborted")
)

// ConsistencyError carries both likelihoods of a failed Full/Fast comparison.
type ConsistencyError struct {
	Full      float64
	Fast      float64
	Tolerance float64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("full and fast likelihoods differ: full=%g fast=%g |delta|=%g > tolerance %g; "+
		"some samples fill from non-signal events and cannot use signal reconfigures, disable signal_reconfigures",
		e.Full, e.Fast, e.Delta(), e.Tolerance)
}

// Delta is the absolute difference between the two likelihoods.
func (e *ConsistencyError) Delta() float64 {
	d := e.Full - e.Fast
	if d < 0 {
		return -d
	}
	return d
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistencyMismatch }
