package fdm

import (
	"errors"
	"fmt"

	"github.com/ChristopherRabotin/fdm/conf"
	"github.com/ChristopherRabotin/fdm/dynamics"
	"github.com/ChristopherRabotin/fdm/numeric"
)

var (
	// ErrNotConverged is returned when the initialization does not converge within its
	// iteration cap.
	ErrNotConverged = errors.New("initialization did not converge")
	// ErrInvalidGround is returned for a ground plane which cannot be used.
	ErrInvalidGround = errors.New("invalid ground contact geometry")
	// ErrUnknownAircraft is returned when the aircraft type cannot be resolved.
	ErrUnknownAircraft = errors.New("unknown aircraft type")
)

// ErrorClass is the classification of an error.
type ErrorClass uint8

const (
	// ClassUnknown is an error from outside the model, e.g. the file system.
	ClassUnknown ErrorClass = iota
	// ClassConfig is a missing or malformed configuration.
	ClassConfig
	// ClassNumerical is a non finite force, moment or state.
	ClassNumerical
	// ClassConvergence is a failure of the initialization.
	ClassConvergence
	// ClassRange is a value outside its valid range. It is recoverable: the value is clamped.
	ClassRange
)

func (c ErrorClass) String() string {
	switch c {
	case ClassUnknown:
		return "unknown"
	case ClassConfig:
		return "configuration"
	case ClassNumerical:
		return "numerical"
	case ClassConvergence:
		return "convergence"
	case ClassRange:
		return "range"
	}
	panic("cannot stringify unknown error class")
}

// Fatal reports whether errors of this class stop the simulation.
func (c ErrorClass) Fatal() bool {
	return c != ClassRange
}

// Error is an error of the FDM with its classification and where it happened.
type Error struct {
	Class ErrorClass
	Op    string // e.g. "init", "step"
	Phase Phase  // phase when the error was met
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fdm %s (%s, %s error): %s", e.Op, e.Phase, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify returns the class of err.
func Classify(err error) ErrorClass {
	var fe *Error
	switch {
	case err == nil:
		return ClassUnknown
	case errors.As(err, &fe):
		return fe.Class
	case errors.Is(err, conf.ErrMissingKey), errors.Is(err, conf.ErrMalformed),
		errors.Is(err, numeric.ErrTable), errors.Is(err, ErrUnknownAircraft):
		return ClassConfig
	case errors.Is(err, numeric.ErrNotFinite), errors.Is(err, dynamics.ErrSingularMass),
		errors.Is(err, ErrInvalidGround):
		return ClassNumerical
	case errors.Is(err, ErrNotConverged):
		return ClassConvergence
	}
	return ClassUnknown
}

// wrap classifies err and annotates it; nil stays nil.
func wrap(op string, p Phase, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Class: Classify(err), Op: op, Phase: p, Err: err}
}
