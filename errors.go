package mnncorrect

import (
	"errors"
	"fmt"
)

// Failure classes. Every error returned by Integrate unwraps to exactly
// one of these, so callers can match the failing stage with errors.Is
// and retry with adjusted k, bandwidth or gene filtering. A failed run
// never returns a partial embedding.
var (
	// ErrConfiguration covers empty gene intersections, bad merge orders
	// and out-of-range parameters.
	ErrConfiguration = errors.New("mnncorrect: configuration error")

	// ErrValidation covers invalid input data, such as zero-cell batches
	// or k exceeding a batch size.
	ErrValidation = errors.New("mnncorrect: validation error")

	// ErrIntegration covers merge steps that cannot proceed, such as zero
	// anchors between the pool and an incoming batch.
	ErrIntegration = errors.New("mnncorrect: integration error")

	// ErrNumerical covers rank deficiency and non-finite values.
	ErrNumerical = errors.New("mnncorrect: numerical error")

	// ErrNoBatches is returned when Integrate receives no input.
	ErrNoBatches = errors.New("no input batches")
)

// ErrParameter indicates an out-of-range run parameter.
type ErrParameter struct {
	Name  string
	Value any
}

func (e *ErrParameter) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Name, e.Value)
}

// ErrMergeOrder indicates a missing or inconsistent merge order. Merge
// order is a required, explicit input: it determines the result and is
// never inferred from argument order.
type ErrMergeOrder struct {
	Reason string
}

func (e *ErrMergeOrder) Error() string {
	return fmt.Sprintf("invalid merge order: %s", e.Reason)
}

// ErrDuplicateBatch indicates two input batches sharing a name.
type ErrDuplicateBatch struct {
	Name string
}

func (e *ErrDuplicateBatch) Error() string {
	return fmt.Sprintf("duplicate batch name %q", e.Name)
}

// ErrMissingExpression indicates a batch without log-normalized
// expression when depth rescaling is disabled.
type ErrMissingExpression struct {
	Batch string
}

func (e *ErrMissingExpression) Error() string {
	return fmt.Sprintf("batch %q has no expression matrix", e.Batch)
}

// ErrNoAnchors indicates a merge step that found zero mutual neighbor
// pairs; correction cannot proceed without at least one anchor.
type ErrNoAnchors struct {
	Step  int
	Batch string
}

func (e *ErrNoAnchors) Error() string {
	return fmt.Sprintf("merge step %d (batch %q): no mutual nearest neighbors", e.Step, e.Batch)
}

// ErrNonFinite indicates a NaN or Inf expression value after correction.
type ErrNonFinite struct {
	Batch string
	Cell  int
}

func (e *ErrNonFinite) Error() string {
	return fmt.Sprintf("batch %q cell %d: non-finite expression after correction", e.Batch, e.Cell)
}

func configErr(err error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func integrationErr(err error) error {
	return fmt.Errorf("%w: %w", ErrIntegration, err)
}

func numericalErr(err error) error {
	return fmt.Errorf("%w: %w", ErrNumerical, err)
}
