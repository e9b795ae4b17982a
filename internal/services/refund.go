package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
)

// RefundService processes admin-initiated refunds, partial or full.
type RefundService struct {
	payments    PaymentStore
	enrollments EnrollmentStore
	courses     CourseStore
	gateways    *gateway.Registry
	logger      *slog.Logger
}

func NewRefundService(
	payments PaymentStore,
	enrollments EnrollmentStore,
	courses CourseStore,
	gateways *gateway.Registry,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		payments:    payments,
		enrollments: enrollments,
		courses:     courses,
		gateways:    gateways,
		logger:      logger,
	}
}

// Refund sends amountCents back to the payer. The provider call runs
// before any local write: a declined or failed provider refund leaves
// the records untouched. Cumulative refunds never exceed the original
// amount; reaching the full amount flips both the payment and the
// enrollment to REFUNDED and frees the seat.
func (s *RefundService) Refund(ctx context.Context, paymentID uuid.UUID, amountCents int64, reason, actor string) (*domain.Payment, error) {
	if amountCents <= 0 {
		return nil, domain.NewInvalidAmountError(amountCents)
	}
	if reason == "" {
		return nil, domain.NewValidationError("refund reason is required")
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentCompleted {
		return nil, domain.NewInvalidStateError("payment",
			string(payment.Status), string(domain.PaymentCompleted))
	}
	if balance := payment.RefundableCents(); amountCents > balance {
		return nil, domain.NewRefundExceedsBalanceError(amountCents, balance)
	}

	if payment.Method != domain.MethodCash {
		if err := s.refundAtProvider(ctx, payment, amountCents); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	payment, err = s.payments.ApplyRefund(ctx, paymentID, amountCents, reason, actor, now)
	if err != nil {
		return nil, err
	}

	if err := s.enrollments.UpdatePaymentSummary(ctx, payment.EnrollmentID, summaryOf(payment)); err != nil {
		return nil, err
	}

	if payment.Status == domain.PaymentRefunded {
		if err := s.refundEnrollment(ctx, payment.EnrollmentID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("refund processed",
		"payment_id", payment.ID,
		"amount_cents", amountCents,
		"total_refunded_cents", payment.Refund.AmountCents,
		"status", payment.Status,
		"actor", actor,
	)
	return payment, nil
}

func (s *RefundService) refundAtProvider(ctx context.Context, payment *domain.Payment, amountCents int64) error {
	client, err := s.gateways.ClientFor(payment.Method)
	if err != nil {
		return err
	}
	if payment.GatewayTransactionRef == nil {
		return domain.NewInvalidStateError("payment", "no transaction reference", "gateway reference")
	}
	if _, err := client.Refund(ctx, *payment.GatewayTransactionRef, amountCents); err != nil {
		return err
	}
	return nil
}

// refundEnrollment moves the enrollment to REFUNDED after a full refund
// and releases the seat if cancellation has not already done so.
func (s *RefundService) refundEnrollment(ctx context.Context, enrollmentID uuid.UUID) error {
	if _, err := s.enrollments.MarkRefunded(ctx, enrollmentID); err != nil {
		return err
	}
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return err
	}
	first, err := s.enrollments.MarkSeatReleased(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if first {
		if err := s.courses.ReleaseSeat(ctx, enrollment.CourseID); err != nil {
			return err
		}
	}
	return nil
}
