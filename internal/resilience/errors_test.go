package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient_TransientError(t *testing.T) {
	err := NewTransientError(errors.New("rate limited"), 429)
	if !IsTransient(err) {
		t.Error("expected transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewTransientError(errors.New("inner"), 503))
	if !IsTransient(err) {
		t.Error("expected transient through wrapping")
	}
}

func TestIsTransient_ValidationNeverTransient(t *testing.T) {
	// Even when a validation error wraps a transient one, the validation
	// classification wins.
	err := NewValidationError(NewTransientError(errors.New("inner"), 500))
	if IsTransient(err) {
		t.Error("validation error must not be transient")
	}
	if !IsValidation(err) {
		t.Error("expected validation")
	}
}

func TestIsTransient_FatalNeverTransient(t *testing.T) {
	err := NewFatalError(errors.New("database gone"))
	if IsTransient(err) {
		t.Error("fatal error must not be transient")
	}
	if !IsFatal(err) {
		t.Error("expected fatal")
	}
}

func TestIsTransient_StringHeuristics(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"read tcp: connection reset by peer", true},
		{"dial tcp: i/o timeout", true},
		{"lookup example.com: no such host", true},
		{"invalid request payload", false},
		{"permission denied", false},
	}
	for _, tc := range cases {
		if got := IsTransient(errors.New(tc.msg)); got != tc.want {
			t.Errorf("IsTransient(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d transient", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d not transient", code)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	for _, err := range []error{
		NewTransientError(inner, 500),
		NewValidationError(inner),
		NewFatalError(inner),
	} {
		if !errors.Is(err, inner) {
			t.Errorf("%T does not unwrap to inner", err)
		}
	}
}
