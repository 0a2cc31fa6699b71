package nl2sql

import (
	"errors"
	"fmt"
)

// RawOutput is the unmodified text returned by the generation service.
type RawOutput string

// Statement is a single read-only SELECT over the product table that passed
// validation.
type Statement string

func (s Statement) String() string {
	return string(s)
}

var (
	ErrNoStatementFound = errors.New("no statement found in generated output")
	ErrInvalidStatement = errors.New("generated statement is not allowed")
)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid statement: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidStatement
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
