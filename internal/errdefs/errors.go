// Package errdefs holds the error taxonomy shared by the metadata engine and
// the search orchestrator. Every typed error can be matched with errors.As,
// sentinels with errors.Is.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by path queries that match nothing.
	ErrNotFound = errors.New("eosearch: no match")
	// ErrUnknownConverter is wrapped by ConfigError when a template names a
	// converter that is not registered.
	ErrUnknownConverter = errors.New("eosearch: unknown converter")
	// ErrPollExhausted means the status loop hit its attempt limit.
	ErrPollExhausted = errors.New("eosearch: poll attempts exhausted")
)

// ConfigError reports a malformed path query, template or provider setting.
// It is raised at setup time and is always fatal.
type ConfigError struct {
	Kind  string // "path", "template", "converter", "provider", ...
	Input string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("eosearch: invalid %s %q: %v", e.Kind, e.Input, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError reports a network or HTTP level failure.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("eosearch: %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("eosearch: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// JobFailedError is returned when the provider reports the search job as failed.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("eosearch: job %s failed: %s", e.JobID, e.Message)
}

// ConversionError is returned by a converter that rejected its input.
type ConversionError struct {
	Converter string
	Input     any
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("eosearch: converter %s rejected %v: %v", e.Converter, e.Input, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// MissingFieldError is returned when a template references a field the
// caller did not supply.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("eosearch: missing field %q", e.Field)
}

// Convert wraps err as a ConversionError for converter name.
func Convert(name string, input any, err error) error {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConversionError{Converter: name, Input: input, Err: err}
}
