package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewEnrollment_FreeCourseActivatesImmediately(t *testing.T) {
	e := NewEnrollment(uuid.New(), uuid.New(), true)
	if e.Status != EnrollmentActive {
		t.Errorf("expected ACTIVE, got %s", e.Status)
	}
	if e.StartDate == nil {
		t.Error("expected start date set")
	}
}

func TestNewEnrollment_PaidCourseStartsPending(t *testing.T) {
	e := NewEnrollment(uuid.New(), uuid.New(), false)
	if e.Status != EnrollmentPending {
		t.Errorf("expected PENDING, got %s", e.Status)
	}
}

func TestEnrollment_TransitionTable(t *testing.T) {
	cases := []struct {
		from    EnrollmentStatus
		to      EnrollmentStatus
		allowed bool
	}{
		{EnrollmentPending, EnrollmentActive, true},
		{EnrollmentPending, EnrollmentCancelled, true},
		{EnrollmentPending, EnrollmentRefunded, false},
		{EnrollmentActive, EnrollmentCompleted, true},
		{EnrollmentActive, EnrollmentCancelled, true},
		{EnrollmentActive, EnrollmentRefunded, true},
		{EnrollmentCompleted, EnrollmentRefunded, true},
		{EnrollmentCancelled, EnrollmentActive, false},
		{EnrollmentRefunded, EnrollmentActive, false},
		{EnrollmentCancelled, EnrollmentPending, false},
	}

	for _, tc := range cases {
		e := NewEnrollment(uuid.New(), uuid.New(), false)
		e.Status = tc.from
		err := e.CanTransitionTo(tc.to)
		if tc.allowed && err != nil {
			t.Errorf("%s -> %s: expected allowed, got %v", tc.from, tc.to, err)
		}
		if !tc.allowed && err == nil {
			t.Errorf("%s -> %s: expected rejection", tc.from, tc.to)
		}
	}
}

func TestEnrollment_NoResurrectionFromTerminal(t *testing.T) {
	e := NewEnrollment(uuid.New(), uuid.New(), false)
	if err := e.Cancel(time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := e.Activate(time.Now()); err == nil {
		t.Fatal("cancelled enrollment must not activate")
	}
	if e.Status != EnrollmentCancelled {
		t.Errorf("expected CANCELLED, got %s", e.Status)
	}
}
