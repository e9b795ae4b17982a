package domain

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus represents the state of a (student, course) relationship.
type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "PENDING"
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentCancelled EnrollmentStatus = "CANCELLED"
	EnrollmentRefunded  EnrollmentStatus = "REFUNDED"
)

// PaymentSummary is the payment projection embedded in an enrollment.
type PaymentSummary struct {
	AmountCents       int64
	Currency          string
	Method            PaymentMethod
	PaymentStatus     PaymentStatus
	TransactionRef    *string
	RefundAmountCents int64
}

// Enrollment represents one student's relationship to one course.
// At most one non-cancelled enrollment exists per (student, course).
type Enrollment struct {
	ID        uuid.UUID
	StudentID uuid.UUID
	CourseID  uuid.UUID

	Status  EnrollmentStatus
	Payment PaymentSummary

	Progress int // 0-100

	// SeatReleased guards the course seat counter against double release.
	SeatReleased bool

	StartDate      *time.Time
	CompletionDate *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewEnrollment creates an enrollment. Free courses activate immediately;
// paid courses stay PENDING until their payment completes.
func NewEnrollment(studentID, courseID uuid.UUID, free bool) *Enrollment {
	now := time.Now().UTC()
	e := &Enrollment{
		ID:        uuid.New(),
		StudentID: studentID,
		CourseID:  courseID,
		Status:    EnrollmentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if free {
		e.Status = EnrollmentActive
		e.StartDate = &now
	}
	return e
}

// CanTransitionTo validates a status change against the transition table.
//
// Valid transitions are:
//   - Pending → Active, Cancelled
//   - Active → Completed, Cancelled, Refunded
//   - Completed → Refunded
//
// Cancelled and Refunded are terminal: a late payment-success event can
// never move a cancelled or refunded enrollment back to Active.
func (e *Enrollment) CanTransitionTo(target EnrollmentStatus) error {
	switch e.Status {
	case EnrollmentPending:
		if target == EnrollmentActive || target == EnrollmentCancelled {
			return nil
		}
	case EnrollmentActive:
		switch target {
		case EnrollmentCompleted, EnrollmentCancelled, EnrollmentRefunded:
			return nil
		}
	case EnrollmentCompleted:
		if target == EnrollmentRefunded {
			return nil
		}
	}
	return NewInvalidTransitionError("enrollment", string(e.Status), string(target))
}

func (e *Enrollment) IsTerminal() bool {
	return e.Status == EnrollmentCancelled || e.Status == EnrollmentRefunded
}

// Activate moves a pending enrollment to ACTIVE once its payment completed.
func (e *Enrollment) Activate(at time.Time) error {
	if err := e.CanTransitionTo(EnrollmentActive); err != nil {
		return err
	}
	e.Status = EnrollmentActive
	e.StartDate = &at
	e.UpdatedAt = at
	return nil
}

func (e *Enrollment) Cancel(at time.Time) error {
	if err := e.CanTransitionTo(EnrollmentCancelled); err != nil {
		return err
	}
	e.Status = EnrollmentCancelled
	e.UpdatedAt = at
	return nil
}

func (e *Enrollment) MarkRefunded(at time.Time) error {
	if err := e.CanTransitionTo(EnrollmentRefunded); err != nil {
		return err
	}
	e.Status = EnrollmentRefunded
	e.UpdatedAt = at
	return nil
}
