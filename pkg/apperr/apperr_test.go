package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Conflict("application %s is not pending", "abc")
	wrapped := fmt.Errorf("approve: %w", base)

	if KindOf(wrapped) != KindConflict {
		t.Errorf("Expected kind %s, got %s", KindConflict, KindOf(wrapped))
	}
	if !Is(wrapped, KindConflict) {
		t.Error("Expected Is to match the wrapped conflict")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("Expected plain errors to be internal")
	}
	if Is(nil, KindInternal) {
		t.Error("Expected nil error to match no kind")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		message  string
		severity string
	}{
		{"validation", Validation("amount must be positive"), "amount must be positive", SeverityWarning},
		{"not found", NotFound("debt not found"), "debt not found", SeverityWarning},
		{"collaborator", Collaborator(errors.New("disk full"), "failed to create debt"), "failed to create debt", SeverityError},
		{"internal", errors.New("boom"), "internal error", SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, sev := Describe(tt.err)
			if msg != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, msg)
			}
			if sev != tt.severity {
				t.Errorf("Expected severity %q, got %q", tt.severity, sev)
			}
		})
	}
}

func TestCollaboratorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Collaborator(cause, "failed to post transaction")
	if !errors.Is(err, cause) {
		t.Error("Expected collaborator error to unwrap to its cause")
	}
	if err.Error() != "failed to post transaction: disk full" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
