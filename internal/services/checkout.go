package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
)

// CheckoutService owns the enrollment and payment-initiation half of the
// flow: everything up to the point where a confirmation channel takes
// over.
type CheckoutService struct {
	payments    PaymentStore
	enrollments EnrollmentStore
	courses     CourseStore
	gateways    *gateway.Registry
	logger      *slog.Logger
}

func NewCheckoutService(
	payments PaymentStore,
	enrollments EnrollmentStore,
	courses CourseStore,
	gateways *gateway.Registry,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		payments:    payments,
		enrollments: enrollments,
		courses:     courses,
		gateways:    gateways,
		logger:      logger,
	}
}

// EnrollResult is what a new enrollment produces. Payment is nil for
// free courses, which activate immediately.
type EnrollResult struct {
	Enrollment *domain.Enrollment
	Payment    *domain.Payment
}

// Enroll registers a student on a course. The seat is reserved before
// any record is created so an over-capacity request fails without side
// effects; a free course activates in the same call, a paid course
// leaves a pending enrollment and payment behind for InitPayment.
func (s *CheckoutService) Enroll(ctx context.Context, studentID, courseID uuid.UUID, method domain.PaymentMethod) (*EnrollResult, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}

	existing, err := s.enrollments.FindCurrentByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewAlreadyCompletedError("student is already enrolled in this course")
	}

	if err := s.courses.ReserveSeat(ctx, courseID); err != nil {
		return nil, err
	}

	free := course.IsFree()
	enrollment := domain.NewEnrollment(studentID, courseID, free)
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		s.releaseSeatQuietly(ctx, courseID)
		return nil, err
	}

	if free {
		s.logger.Info("free course enrollment activated",
			"enrollment_id", enrollment.ID,
			"course_id", courseID,
		)
		return &EnrollResult{Enrollment: enrollment}, nil
	}

	payment, err := domain.NewPayment(studentID, enrollment.ID, courseID, course.PriceCents, course.Currency, method)
	if err != nil {
		s.releaseSeatQuietly(ctx, courseID)
		return nil, err
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		s.releaseSeatQuietly(ctx, courseID)
		return nil, err
	}

	s.logger.Info("enrollment created, payment pending",
		"enrollment_id", enrollment.ID,
		"payment_id", payment.ID,
		"amount_cents", payment.AmountCents,
		"method", payment.Method,
	)
	return &EnrollResult{Enrollment: enrollment, Payment: payment}, nil
}

// InitPaymentResult carries what the client needs to continue the flow:
// a client token for the intent flow or a redirect URL for the hosted
// page, never both.
type InitPaymentResult struct {
	Payment        *domain.Payment
	TransactionRef string
	ClientToken    string
	RedirectURL    string
}

// InitPayment starts (or restarts) the gateway leg for a pending
// payment. The transaction reference is persisted before the provider
// is contacted; an async notification racing the response can then
// always correlate back to the payment.
func (s *CheckoutService) InitPayment(ctx context.Context, enrollmentID uuid.UUID, callbacks gateway.CallbackURLs) (*InitPaymentResult, error) {
	payment, err := s.payments.FindPendingByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if payment.Method == domain.MethodCash {
		return nil, domain.NewValidationError("cash payments are settled manually, not via a gateway")
	}

	client, err := s.gateways.ClientFor(payment.Method)
	if err != nil {
		return nil, err
	}

	ref := payment.GatewayTransactionRef
	if ref == nil {
		generated := newTransactionRef()
		if err := s.payments.SetTransactionRef(ctx, payment.ID, generated); err != nil {
			return nil, err
		}
		ref = &generated
	}

	course, err := s.courses.FindByID(ctx, payment.CourseID)
	if err != nil {
		return nil, err
	}

	res, err := client.Initiate(ctx, gateway.InitiateRequest{
		TransactionRef: *ref,
		AmountCents:    payment.AmountCents,
		Currency:       payment.Currency,
		Description:    "Enrollment in " + course.Title,
		Metadata: map[string]string{
			"payment_id":    payment.ID.String(),
			"enrollment_id": enrollmentID.String(),
		},
		Callbacks: callbacks,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment initiated",
		"payment_id", payment.ID,
		"transaction_ref", *ref,
		"method", payment.Method,
	)
	return &InitPaymentResult{
		Payment:        payment,
		TransactionRef: *ref,
		ClientToken:    res.ClientToken,
		RedirectURL:    res.RedirectURL,
	}, nil
}

// RetryPayment opens a fresh payment for an enrollment whose previous
// attempt failed. The new payment may use a different method, so a
// student declined by one gateway can switch to another. Only one
// payment per enrollment is open at a time.
func (s *CheckoutService) RetryPayment(ctx context.Context, enrollmentID uuid.UUID, method domain.PaymentMethod) (*domain.Payment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != domain.EnrollmentPending {
		return nil, domain.NewInvalidStateError("enrollment", string(enrollment.Status), string(domain.EnrollmentPending))
	}

	if open, err := s.payments.FindPendingByEnrollment(ctx, enrollmentID); err == nil && open != nil {
		return nil, domain.NewInvalidStateError("payment", "open", "none")
	} else if err != nil && !domain.IsErrorCode(err, domain.ErrCodeNotFound) {
		return nil, err
	}

	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	payment, err := domain.NewPayment(enrollment.StudentID, enrollmentID, enrollment.CourseID, course.PriceCents, course.Currency, method)
	if err != nil {
		return nil, err
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info("payment retry opened",
		"enrollment_id", enrollmentID,
		"payment_id", payment.ID,
		"method", method,
	)
	return payment, nil
}

// releaseSeatQuietly undoes a reservation on a failed enroll path. The
// error is logged, not propagated: the caller already has a better one.
func (s *CheckoutService) releaseSeatQuietly(ctx context.Context, courseID uuid.UUID) {
	if err := s.courses.ReleaseSeat(ctx, courseID); err != nil {
		s.logger.Error("failed to release reserved seat", "course_id", courseID, "error", err)
	}
}

func newTransactionRef() string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
