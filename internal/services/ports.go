// Package services holds the business operations of the enrollment
// payment system: checkout, confirmation reconciliation, cancellation
// and refunds. Handlers stay thin; everything stateful happens here
// through conditional updates against the stores.
package services

import (
	"context"
	"time"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/google/uuid"
)

// PaymentStore persists payments. Every Mark* method is a conditional
// update: it applies the transition only when the stored status still
// allows it and reports whether a row actually changed, which is what
// makes concurrent delivery of the same confirmation safe without locks.
type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindByTransactionRef(ctx context.Context, ref string) (*domain.Payment, error)
	FindPendingByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*domain.Payment, error)
	FindPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Payment, error)

	SetTransactionRef(ctx context.Context, id uuid.UUID, ref string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, transactionRef string, validationRef *string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, code, message string) (bool, error)
	CancelPending(ctx context.Context, id uuid.UUID) (bool, error)

	// ApplyRefund atomically accumulates a refund while the payment is
	// COMPLETED and the balance allows it, flipping the status to
	// REFUNDED when the cumulative refund reaches the full amount.
	// Returns the updated payment, or a domain error when the
	// precondition no longer holds.
	ApplyRefund(ctx context.Context, id uuid.UUID, amountCents int64, reason, actor string, at time.Time) (*domain.Payment, error)
}

// EnrollmentStore persists enrollments, with the same conditional-update
// discipline as PaymentStore.
type EnrollmentStore interface {
	Create(ctx context.Context, e *domain.Enrollment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)
	// FindCurrentByStudentAndCourse returns the one non-cancelled
	// enrollment for the pair, or nil when none exists.
	FindCurrentByStudentAndCourse(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Enrollment, error)

	Activate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkSeatReleased flips the per-enrollment release guard; it
	// reports true only for the first caller.
	MarkSeatReleased(ctx context.Context, id uuid.UUID) (bool, error)

	UpdatePaymentSummary(ctx context.Context, id uuid.UUID, s domain.PaymentSummary) error
}

// CourseStore reads courses and keeps their seat counter.
type CourseStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	// ReserveSeat atomically increments the seat counter, failing with
	// CAPACITY_EXCEEDED when the course is full.
	ReserveSeat(ctx context.Context, courseID uuid.UUID) error
	// ReleaseSeat decrements the counter, clamped at zero.
	ReleaseSeat(ctx context.Context, courseID uuid.UUID) error
}

// EventStore durably records every inbound confirmation event before it
// is acknowledged to the provider.
type EventStore interface {
	Record(ctx context.Context, evt Event) error
}

// DedupCache is a best-effort short-TTL cache that short-circuits repeat
// deliveries of an already-confirmed transaction. Losing it only costs
// a no-op database round trip.
type DedupCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string, ttl time.Duration) error
}
