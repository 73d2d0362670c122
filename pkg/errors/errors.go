// Package errors provides the error taxonomy shared by every histoml
// package. It wraps github.com/cockroachdb/errors so that all errors carry
// stack traces, and the concrete error types implement
// zerolog.LogObjectMarshaler so structured handlers can log them without
// string parsing.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// DataError reports a violation of the dataset contract: non-finite values,
// zero-variance columns, degenerate partitions, or a minority class too small
// to resample. It is non-recoverable for the operation that raised it.
type DataError struct {
	Op     string // operation that detected the problem, e.g. "RobustScaler.Fit"
	Column string // offending column (gene symbol or index), if column-scoped
	Reason string
}

func (e *DataError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("histoml: %s: column %s: %s", e.Op, e.Column, e.Reason)
	}
	return fmt.Sprintf("histoml: %s: %s", e.Op, e.Reason)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *DataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("op", e.Op).
		Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "DataError")
}

// NewDataError creates a DataError with a stack trace attached.
func NewDataError(op, reason string) error {
	return errors.WithStack(&DataError{Op: op, Reason: reason})
}

// NewColumnDataError creates a DataError scoped to a single feature column.
func NewColumnDataError(op, column, reason string) error {
	return errors.WithStack(&DataError{Op: op, Column: column, Reason: reason})
}

// EvaluationError reports that predicted and actual label vectors cannot be
// compared: mismatched lengths or labels outside the two-class domain.
type EvaluationError struct {
	Op     string
	Reason string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("histoml: %s: %s", e.Op, e.Reason)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *EvaluationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("op", e.Op).
		Str("reason", e.Reason).
		Str("type", "EvaluationError")
}

// NewEvaluationError creates an EvaluationError with a stack trace attached.
func NewEvaluationError(op, reason string) error {
	return errors.WithStack(&EvaluationError{Op: op, Reason: reason})
}

// ConvergenceError reports that an iterative optimizer exhausted its
// iteration cap without meeting its tolerance. Hyperparameter sweeps record
// it per candidate and keep going; every other caller must surface it.
type ConvergenceError struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (e *ConvergenceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("histoml: %s failed to converge after %d iterations: %s", e.Algorithm, e.Iterations, e.Message)
	}
	return fmt.Sprintf("histoml: %s failed to converge after %d iterations. Consider increasing the iteration cap or loosening the tolerance", e.Algorithm, e.Iterations)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *ConvergenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("algorithm", e.Algorithm).
		Int("iterations", e.Iterations).
		Str("message", e.Message).
		Str("type", "ConvergenceError")
}

// NewConvergenceError creates a ConvergenceError with a stack trace attached.
func NewConvergenceError(algorithm string, iterations int, message string) error {
	return errors.WithStack(&ConvergenceError{Algorithm: algorithm, Iterations: iterations, Message: message})
}

// IsConvergenceError reports whether err wraps a ConvergenceError.
func IsConvergenceError(err error) bool {
	var ce *ConvergenceError
	return errors.As(err, &ce)
}

// NotFittedError is returned when Predict or Transform is called on an
// estimator whose Fit has not completed.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("histoml: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace attached.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch between an input matrix and what
// the estimator saw during Fit.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("histoml: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("op", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace attached.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValueError reports an argument whose value is out of the accepted range,
// e.g. split proportions that do not sum to one.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("histoml: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace attached.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// Is reports whether err matches target, unwrapping as needed.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message, preserving the stack trace.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}
