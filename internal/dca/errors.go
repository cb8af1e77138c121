package dca

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPaused              = errors.New("dca strategy is paused")
	ErrNotPaused           = errors.New("dca strategy is not paused")
	ErrMaxTradeLimit       = errors.New("reached max trade limit")
	ErrNoBalance           = errors.New("no balance")
	ErrCancelled           = errors.New("dca strategy is cancelled")
	ErrCycleInFlight       = errors.New("dca swap cycle still in flight")
	ErrNotInstantiated     = errors.New("dca strategy not instantiated")
	ErrAlreadyInstantiated = errors.New("dca strategy already instantiated")
	ErrInvalidConfig       = errors.New("invalid dca config")
	ErrInvalidFunds        = errors.New("invalid funds")
)

// NotDueYetError is returned by PerformDca before the next eligible time.
type NotDueYetError struct {
	NextEligibleTime time.Time
}

func (e *NotDueYetError) Error() string {
	return fmt.Sprintf("dca swap not allowed yet, next swap will be executable at %s", e.NextEligibleTime.UTC().Format(time.RFC3339Nano))
}

// ValidationError rejects an instantiate message. It matches ErrInvalidConfig.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
