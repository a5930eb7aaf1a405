package binder

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by Infer when no model is loaded.
var ErrNotInitialized = errors.New("inference session is not initialized")

// LoadError reports a model that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MissingInputError names the first declared input absent from the caller's
// binding.
type MissingInputError struct {
	Name string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing required input %q", e.Name)
}

// ExecutionError wraps a failure raised by the engine during Execute.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute model: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindLoad
	KindNotInitialized
	KindMissingInput
	KindExecution
)

func (k ErrorKind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindNotInitialized:
		return "not_initialized"
	case KindMissingInput:
		return "missing_input"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Kind classifies err. A nil error is KindUnknown.
func Kind(err error) ErrorKind {
	var (
		loadErr    *LoadError
		missingErr *MissingInputError
		execErr    *ExecutionError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotInitialized):
		return KindNotInitialized
	case errors.As(err, &missingErr):
		return KindMissingInput
	case errors.As(err, &loadErr):
		return KindLoad
	case errors.As(err, &execErr):
		return KindExecution
	default:
		return KindUnknown
	}
}
