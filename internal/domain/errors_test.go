package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_SingleField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("due_at", "required")

	if got := err.Error(); got != "validation: due_at: required" {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("errors.Is(err, ErrValidation) = false")
	}
}

func TestValidationError_MultipleFields(t *testing.T) {
	t.Parallel()

	err := NewValidationErrors([]FieldError{
		{Field: "title", Message: "required"},
		{Field: "total_copies", Message: "must not be negative"},
	})

	if got := err.Error(); got != "validation: 2 errors" {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("errors.Is(err, ErrValidation) = false")
	}
	if len(err.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(err.Errors))
	}
}

func TestTransitionError(t *testing.T) {
	t.Parallel()

	var err error = &TransitionError{From: LoanStateReturned, To: LoanStateApproved}
	wrapped := fmt.Errorf("approve: %w", err)

	if !errors.Is(wrapped, ErrInvalidTransition) {
		t.Fatal("errors.Is(wrapped, ErrInvalidTransition) = false")
	}
	var te *TransitionError
	if !errors.As(wrapped, &te) || te.From != LoanStateReturned {
		t.Fatalf("errors.As failed: %v", wrapped)
	}
	if got := err.Error(); got != "invalid transition: RETURNED -> APPROVED" {
		t.Errorf("unexpected Error(): %q", got)
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrValidation, ErrConflict,
		ErrOutOfStock, ErrInvalidTransition, ErrOverrelease,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel errors %d and %d should not match", i, j)
			}
		}
	}
}
