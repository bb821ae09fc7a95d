package apperr

import (
	"fmt"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := Validation("amount", "must be positive")
	wrapped := fmt.Errorf("record payment: %w", base)

	if !IsValidation(wrapped) {
		t.Error("expected wrapped error to be a validation error")
	}
	if IsNotFound(wrapped) || IsConflict(wrapped) {
		t.Error("expected only the validation kind to match")
	}
	if base.Error() != "amount: must be positive" {
		t.Errorf("unexpected message %q", base.Error())
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if KindOf(fmt.Errorf("boom")) != 0 {
		t.Error("expected kind 0 for a plain error")
	}
	if KindOf(nil) != 0 {
		t.Error("expected kind 0 for nil")
	}
}

func TestConstructors(t *testing.T) {
	if !IsNotFound(NotFound("invoice")) {
		t.Error("expected not found")
	}
	if NotFound("invoice").Error() != "invoice not found" {
		t.Errorf("unexpected message %q", NotFound("invoice").Error())
	}
	if !IsConflict(Conflict("cannot %s", "validate")) {
		t.Error("expected conflict")
	}
	if KindConflict.String() != "conflict" || Kind(42).String() != "unknown" {
		t.Error("unexpected Kind.String output")
	}
}
