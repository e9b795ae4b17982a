package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
)

type refundFixture struct {
	payments    *MockPaymentStore
	enrollments *MockEnrollmentStore
	courses     *MockCourseStore
	redirect    *MockGatewayClient
	svc         *RefundService
}

func newRefundFixture() *refundFixture {
	f := &refundFixture{
		payments:    NewMockPaymentStore(),
		enrollments: NewMockEnrollmentStore(),
		courses:     NewMockCourseStore(),
		redirect:    &MockGatewayClient{},
	}
	registry := gateway.NewRegistry()
	registry.Register(domain.MethodRedirect, f.redirect)
	f.svc = NewRefundService(f.payments, f.enrollments, f.courses, registry, discardLogger())
	return f
}

// seedCompleted plants an active enrollment whose payment of 9999 cents
// has completed.
func (f *refundFixture) seedCompleted(t *testing.T, method domain.PaymentMethod) (*domain.Payment, *domain.Enrollment) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	course := &domain.Course{ID: uuid4(t), Title: "Databases", PriceCents: 9999, Currency: "USD", MaxStudents: 5, CurrentStudents: 1}
	f.courses.Add(course)

	enrollment := domain.NewEnrollment(uuid4(t), course.ID, false)
	require.NoError(t, f.enrollments.Create(ctx, enrollment))

	payment, err := domain.NewPayment(enrollment.StudentID, enrollment.ID, course.ID, 9999, "USD", method)
	require.NoError(t, err)
	require.NoError(t, f.payments.Create(ctx, payment))

	ref := "TXN-RF-" + payment.ID.String()[:8]
	require.NoError(t, f.payments.SetTransactionRef(ctx, payment.ID, ref))
	won, err := f.payments.MarkCompleted(ctx, payment.ID, ref, nil, now)
	require.NoError(t, err)
	require.True(t, won)
	won, err = f.enrollments.Activate(ctx, enrollment.ID, now)
	require.NoError(t, err)
	require.True(t, won)

	payment, err = f.payments.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	return payment, enrollment
}

func TestRefundPartialThenFull(t *testing.T) {
	f := newRefundFixture()
	ctx := context.Background()
	payment, enrollment := f.seedCompleted(t, domain.MethodRedirect)

	got, err := f.svc.Refund(ctx, payment.ID, 5000, "course dissatisfaction", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, got.Status, "partial refund keeps the payment completed")
	assert.Equal(t, int64(5000), got.Refund.AmountCents)

	storedEnrollment, err := f.enrollments.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentActive, storedEnrollment.Status)
	assert.Equal(t, int64(5000), storedEnrollment.Payment.RefundAmountCents)

	// The remainder completes the refund and retires the enrollment.
	got, err = f.svc.Refund(ctx, payment.ID, 4999, "remainder", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, got.Status)
	assert.Equal(t, int64(9999), got.Refund.AmountCents)

	storedEnrollment, err = f.enrollments.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentRefunded, storedEnrollment.Status)
	assert.True(t, storedEnrollment.SeatReleased)

	storedCourse, err := f.courses.FindByID(ctx, storedEnrollment.CourseID)
	require.NoError(t, err)
	assert.Equal(t, 0, storedCourse.CurrentStudents)
}

func TestRefundCumulativeBound(t *testing.T) {
	f := newRefundFixture()
	ctx := context.Background()
	payment, _ := f.seedCompleted(t, domain.MethodRedirect)

	_, err := f.svc.Refund(ctx, payment.ID, 5000, "first", "admin-1")
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, payment.ID, 5001, "too much", "admin-1")
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeRefundExceedsBalance))

	stored, err := f.payments.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), stored.Refund.AmountCents, "rejected refund changes nothing")
}

func TestRefundProviderFailureLeavesRecordsUntouched(t *testing.T) {
	f := newRefundFixture()
	ctx := context.Background()
	payment, _ := f.seedCompleted(t, domain.MethodRedirect)
	f.redirect.RefundFn = func(ctx context.Context, ref string, amountCents int64) (*gateway.RefundResult, error) {
		return nil, &gateway.Error{Kind: gateway.KindAPIError, Code: "internal", Message: "provider exploded", StatusCode: 500}
	}

	_, err := f.svc.Refund(ctx, payment.ID, 5000, "attempt", "admin-1")
	require.Error(t, err)

	stored, err := f.payments.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, stored.Status)
	assert.Equal(t, int64(0), stored.Refund.AmountCents)
}

func TestRefundCashSkipsProvider(t *testing.T) {
	f := newRefundFixture()
	ctx := context.Background()
	payment, _ := f.seedCompleted(t, domain.MethodCash)
	// No cash client registered; a provider call would fail the test.

	got, err := f.svc.Refund(ctx, payment.ID, 9999, "manual refund", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, got.Status)
}

func TestRefundPreconditions(t *testing.T) {
	f := newRefundFixture()
	ctx := context.Background()
	payment, _ := f.seedCompleted(t, domain.MethodRedirect)

	t.Run("zero amount", func(t *testing.T) {
		_, err := f.svc.Refund(ctx, payment.ID, 0, "zero", "admin-1")
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
	})

	t.Run("missing reason", func(t *testing.T) {
		_, err := f.svc.Refund(ctx, payment.ID, 100, "", "admin-1")
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))
	})

	t.Run("payment not completed", func(t *testing.T) {
		pending, err := domain.NewPayment(uuid4(t), uuid4(t), uuid4(t), 4500, "USD", domain.MethodRedirect)
		require.NoError(t, err)
		require.NoError(t, f.payments.Create(ctx, pending))

		_, err = f.svc.Refund(ctx, pending.ID, 100, "early", "admin-1")
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidState))
	})
}
