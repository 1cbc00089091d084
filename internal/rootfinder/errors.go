package rootfinder

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInterval    = errors.New("rootfinder: invalid interval")
	ErrOutOfRange         = errors.New("rootfinder: initial guess out of range")
	ErrNoBracketing       = errors.New("rootfinder: no bracketing")
	ErrTooManyEvaluations = errors.New("rootfinder: too many calls")

	// ErrInvalidAccuracy возвращает NewSolver при неположительной точности.
	ErrInvalidAccuracy = errors.New("rootfinder: accuracy must be positive")

	// ErrStopped используется для принудительной остановки из onIter
	ErrStopped = errors.New("rootfinder: stopped by callback")
)

// ErrorKind перечисляет причины, по которым поиск корня не удался.
type ErrorKind int

const (
	InvalidInterval ErrorKind = iota + 1
	OutOfRange
	NoBracketing
	TooManyEvaluations
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInterval:
		return "invalid interval"
	case OutOfRange:
		return "out of range"
	case NoBracketing:
		return "no bracketing"
	case TooManyEvaluations:
		return "too many evaluations"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// SolverError описывает отказ решателя. errors.Is сопоставляет его
// с соответствующей sentinel-ошибкой (ErrNoBracketing и т.д.).
type SolverError struct {
	Kind ErrorKind

	Lo, Initial, Hi float64
	FLo, FHi        float64

	// Evaluations содержит число вычислений f на момент отказа.
	Evaluations int
}

func (e *SolverError) Error() string {
	switch e.Kind {
	case InvalidInterval:
		return fmt.Sprintf("%v: %g > %g", ErrInvalidInterval, e.Lo, e.Hi)
	case OutOfRange:
		return fmt.Sprintf("%v: %g not in (%g, %g)", ErrOutOfRange, e.Initial, e.Lo, e.Hi)
	case NoBracketing:
		return fmt.Sprintf("%v: f(%g) = %g, f(%g) = %g", ErrNoBracketing, e.Lo, e.FLo, e.Hi, e.FHi)
	case TooManyEvaluations:
		return fmt.Sprintf("%v: %d evaluations", ErrTooManyEvaluations, e.Evaluations)
	}
	return "rootfinder: " + e.Kind.String()
}

func (e *SolverError) Unwrap() error {
	switch e.Kind {
	case InvalidInterval:
		return ErrInvalidInterval
	case OutOfRange:
		return ErrOutOfRange
	case NoBracketing:
		return ErrNoBracketing
	case TooManyEvaluations:
		return ErrTooManyEvaluations
	}
	return nil
}
