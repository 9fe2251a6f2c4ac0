package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("engine overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := fmt.Errorf("engine call failed: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	err := errors.New("invalid input: missing field")
	if IsTransient(err) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsConfiguration_Wrapped(t *testing.T) {
	inner := NewConfigurationError(errors.New("api key not set"))
	wrapped := fmt.Errorf("init engine: %w", inner)
	if !IsConfiguration(wrapped) {
		t.Error("expected wrapped ConfigurationError to be detected")
	}
	if IsConfiguration(errors.New("plain")) {
		t.Error("plain error should not be a configuration error")
	}
}

func TestIsConfiguration_NotTransient(t *testing.T) {
	err := NewConfigurationError(errors.New("missing credentials"))
	if IsTransient(err) {
		t.Error("configuration errors are not transient")
	}
}

func TestIsIntegrityViolation(t *testing.T) {
	inner := NewIntegrityViolation("complete attempt", errors.New("duplicate key"))
	wrapped := fmt.Errorf("record attempt: %w", inner)
	if !IsIntegrityViolation(wrapped) {
		t.Error("expected wrapped IntegrityViolation to be detected")
	}
	if IsIntegrityViolation(errors.New("plain")) {
		t.Error("plain error should not be an integrity violation")
	}
}

func TestIntegrityViolation_Message(t *testing.T) {
	err := NewIntegrityViolation("finalize attempt abc", nil)
	if err.Error() != "integrity violation: finalize attempt abc" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}
