// Package resilience defines the error taxonomy shared by the extraction
// core: configuration failures, transient engine failures, and storage
// integrity violations. Retry policy lives with the external orchestrator,
// not here.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// ConfigurationError marks an error that is fatal to a single attempt and
// not worth retrying: unhashable parameters, missing credentials, an engine
// that was never registered.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps an error as a configuration failure.
func NewConfigurationError(err error) *ConfigurationError {
	return &ConfigurationError{Err: err}
}

// IsConfiguration returns true if the error chain contains a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// TransientError wraps an engine error that a caller could reasonably retry
// later (429, 5xx, network timeout). The core records it as a failed attempt
// and moves on; it never retries on its own.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IntegrityViolation marks a write the store rejected to protect an
// invariant: mutating a terminal attempt, or losing a concurrent
// duplicate-registration race. Callers must treat it as "already handled",
// not as a failure to retry.
type IntegrityViolation struct {
	Op  string
	Err error
}

func (e *IntegrityViolation) Error() string {
	if e.Err == nil {
		return "integrity violation: " + e.Op
	}
	return "integrity violation: " + e.Op + ": " + e.Err.Error()
}

func (e *IntegrityViolation) Unwrap() error {
	return e.Err
}

// NewIntegrityViolation wraps a rejected write with the operation that was refused.
func NewIntegrityViolation(op string, err error) *IntegrityViolation {
	return &IntegrityViolation{Op: op, Err: err}
}

// IsIntegrityViolation returns true if the error chain contains an IntegrityViolation.
func IsIntegrityViolation(err error) bool {
	var iv *IntegrityViolation
	return errors.As(err, &iv)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
