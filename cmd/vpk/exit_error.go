package main

import (
	"errors"
	"fmt"

	vpk "github.com/javi11/govpk"
)

// Exit codes.
const (
	exitFailure   = 1
	exitUsage     = 2
	exitIntegrity = 3
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) error { return &ExitError{Code: exitUsage, Err: err} }

// classify picks the exit code for a library error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	switch {
	case errors.Is(err, vpk.ErrChecksumMismatch), errors.Is(err, vpk.ErrTruncatedPayload),
		errors.Is(err, vpk.ErrMalformedDirectory), errors.Is(err, vpk.ErrOpen):
		return &ExitError{Code: exitIntegrity, Err: err}
	default:
		return &ExitError{Code: exitFailure, Err: err}
	}
}
