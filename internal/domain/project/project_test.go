package project

import (
	"errors"
	"testing"

	"github.com/Strob0t/CrewLink/internal/domain"
)

func TestCreateRequestValidate(t *testing.T) {
	req := CreateRequest{Name: "Billing revamp"}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Priority != PriorityMedium {
		t.Fatalf("expected default priority medium, got %q", req.Priority)
	}
}

func TestCreateRequestValidateMissingName(t *testing.T) {
	req := CreateRequest{}
	err := req.Validate()
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateRequestValidateBadPriority(t *testing.T) {
	req := CreateRequest{Name: "X", Priority: "critical"}
	err := req.Validate()
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPlanning, StatusActive, true},
		{StatusPlanning, StatusCancelled, true},
		{StatusPlanning, StatusCompleted, false},
		{StatusActive, StatusCompleted, true},
		{StatusActive, StatusCancelled, true},
		{StatusActive, StatusPlanning, false},
		{StatusCompleted, StatusActive, false},
		{StatusCancelled, StatusPlanning, false},
		{StatusActive, StatusActive, true}, // same-status is a no-op
	}

	for _, tc := range cases {
		err := ValidateTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, domain.ErrConflict) {
			t.Errorf("%s -> %s: expected ErrConflict, got %v", tc.from, tc.to, err)
		}
	}
}

func TestValidateTransitionUnknownStatus(t *testing.T) {
	err := ValidateTransition("archived", StatusActive)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
