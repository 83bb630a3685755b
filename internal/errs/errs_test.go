package errs

import (
	"errors"
	"testing"
)

func TestKind_Retryable(t *testing.T) {
	tests := []struct {
		kind      Kind
		retryable bool
	}{
		{KindNetwork, true},
		{KindTimeout, true},
		{KindServer, true},
		{KindClient, false},
		{KindUnauthorizedTarget, false},
		{KindPayloadTooLarge, false},
		{KindValidation, false},
		{KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Retryable(); got != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	wrapped := Wrap(KindServer, "upstream failed", errors.New("connection reset"))
	if got := Classify(wrapped); got != KindServer {
		t.Errorf("Classify() = %v, want SERVER", got)
	}

	if got := Classify(errors.New("plain error")); got != KindUnknown {
		t.Errorf("Classify() = %v, want UNKNOWN", got)
	}

	if got := Classify(nil); got != "" {
		t.Errorf("Classify(nil) = %v, want empty", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(KindNetwork, "dial failed", cause)
	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestValidationErrors(t *testing.T) {
	var v ValidationErrors
	if v.HasErrors() {
		t.Error("expected no errors initially")
	}
	v.Add(errors.New("field a is required"))
	v.Add(nil)
	v.Add(errors.New("field b is invalid"))
	if !v.HasErrors() {
		t.Error("expected HasErrors true after Add")
	}
	if v.Error() == "" {
		t.Error("expected non-empty aggregate message")
	}
}
