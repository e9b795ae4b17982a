package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
)

// CancelService handles student- and admin-initiated enrollment
// cancellation.
type CancelService struct {
	payments    PaymentStore
	enrollments EnrollmentStore
	courses     CourseStore
	logger      *slog.Logger
}

func NewCancelService(payments PaymentStore, enrollments EnrollmentStore, courses CourseStore, logger *slog.Logger) *CancelService {
	return &CancelService{
		payments:    payments,
		enrollments: enrollments,
		courses:     courses,
		logger:      logger,
	}
}

// Cancel moves an enrollment to CANCELLED, releases its seat exactly
// once and cancels any still-pending payment.
//
// Calling it twice is a no-op that reports the cancelled state again.
// The seat-release step runs on the repeat call too: if a crash landed
// between the status flip and the release, the retry heals it, and the
// released flag keeps the decrement from ever running twice.
func (s *CancelService) Cancel(ctx context.Context, enrollmentID uuid.UUID) (*domain.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	switch enrollment.Status {
	case domain.EnrollmentPending, domain.EnrollmentActive:
		won, err := s.enrollments.Cancel(ctx, enrollmentID)
		if err != nil {
			return nil, err
		}
		if !won {
			// Lost a race; reload and fall through to the idempotent
			// cleanup below.
			enrollment, err = s.enrollments.FindByID(ctx, enrollmentID)
			if err != nil {
				return nil, err
			}
			if enrollment.Status != domain.EnrollmentCancelled {
				return nil, domain.NewInvalidTransitionError("enrollment",
					string(enrollment.Status), string(domain.EnrollmentCancelled))
			}
		}
	case domain.EnrollmentCancelled:
		// Repeat call; still run the cleanup.
	default:
		return nil, domain.NewInvalidTransitionError("enrollment",
			string(enrollment.Status), string(domain.EnrollmentCancelled))
	}

	if err := s.releaseSeatOnce(ctx, enrollment); err != nil {
		return nil, err
	}

	if err := s.cancelPendingPayment(ctx, enrollmentID); err != nil {
		return nil, err
	}

	enrollment, err = s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("enrollment cancelled", "enrollment_id", enrollmentID)
	return enrollment, nil
}

// releaseSeatOnce decrements the course seat counter at most once per
// enrollment, guarded by the persisted released flag.
func (s *CancelService) releaseSeatOnce(ctx context.Context, enrollment *domain.Enrollment) error {
	first, err := s.enrollments.MarkSeatReleased(ctx, enrollment.ID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	if err := s.courses.ReleaseSeat(ctx, enrollment.CourseID); err != nil {
		return err
	}
	s.logger.Info("seat released", "enrollment_id", enrollment.ID, "course_id", enrollment.CourseID)
	return nil
}

func (s *CancelService) cancelPendingPayment(ctx context.Context, enrollmentID uuid.UUID) error {
	payment, err := s.payments.FindPendingByEnrollment(ctx, enrollmentID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.payments.CancelPending(ctx, payment.ID); err != nil {
		return err
	}
	s.logger.Info("pending payment cancelled", "payment_id", payment.ID)
	return nil
}
