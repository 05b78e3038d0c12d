package errors

import (
	"fmt"
	"testing"
)

func TestCodeFromError(t *testing.T) {
	if code := CodeFromError(nil); code != 0 {
		t.Fatalf("Expected 0 for a nil error, got %d", code)
	}
	if code := CodeFromError(fmt.Errorf("boom")); code != NotAttemptedExitCode {
		t.Fatalf("Expected a not-attempted code for a plain error, got %d", code)
	}
	wrapped := NewError(fmt.Errorf("boom"), CouldNotExecExitCode)
	if code := CodeFromError(wrapped); code != CouldNotExecExitCode {
		t.Fatalf("Expected the embedded code, got %d", code)
	}
	if wrapped.Error() != "boom" {
		t.Fatalf("Expected the underlying message, got %q", wrapped.Error())
	}
}

func TestNewErrorNilPassthrough(t *testing.T) {
	if err := NewError(nil, CouldNotExecExitCode); err != nil {
		t.Fatalf("Expected nil for a nil cause, got %v", err)
	}
}
