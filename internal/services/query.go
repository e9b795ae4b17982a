package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
)

// QueryService serves read-only lookups for the REST layer.
type QueryService struct {
	payments    PaymentStore
	enrollments EnrollmentStore
}

func NewQueryService(payments PaymentStore, enrollments EnrollmentStore) *QueryService {
	return &QueryService{payments: payments, enrollments: enrollments}
}

func (s *QueryService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.payments.FindByID(ctx, id)
}

func (s *QueryService) GetEnrollment(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	return s.enrollments.FindByID(ctx, id)
}
