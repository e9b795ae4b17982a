package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/enrollment-gateway/internal/domain"
)

type cancelFixture struct {
	payments    *MockPaymentStore
	enrollments *MockEnrollmentStore
	courses     *MockCourseStore
	svc         *CancelService
}

func newCancelFixture() *cancelFixture {
	f := &cancelFixture{
		payments:    NewMockPaymentStore(),
		enrollments: NewMockEnrollmentStore(),
		courses:     NewMockCourseStore(),
	}
	f.svc = NewCancelService(f.payments, f.enrollments, f.courses, discardLogger())
	return f
}

// seed plants a course with one reserved seat, a pending enrollment on
// it and a pending payment.
func (f *cancelFixture) seed(t *testing.T) (*domain.Course, *domain.Enrollment, *domain.Payment) {
	t.Helper()
	ctx := context.Background()

	course := &domain.Course{ID: uuid4(t), Title: "Networking", PriceCents: 4500, Currency: "USD", MaxStudents: 5, CurrentStudents: 1}
	f.courses.Add(course)

	enrollment := domain.NewEnrollment(uuid4(t), course.ID, false)
	require.NoError(t, f.enrollments.Create(ctx, enrollment))

	payment, err := domain.NewPayment(enrollment.StudentID, enrollment.ID, course.ID, 4500, "USD", domain.MethodRedirect)
	require.NoError(t, err)
	require.NoError(t, f.payments.Create(ctx, payment))
	return course, enrollment, payment
}

func TestCancelPendingEnrollment(t *testing.T) {
	f := newCancelFixture()
	ctx := context.Background()
	course, enrollment, payment := f.seed(t)

	got, err := f.svc.Cancel(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCancelled, got.Status)
	assert.True(t, got.SeatReleased)

	storedCourse, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, storedCourse.CurrentStudents)

	storedPayment, err := f.payments.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCancelled, storedPayment.Status)
}

func TestCancelTwiceReleasesSeatOnce(t *testing.T) {
	f := newCancelFixture()
	ctx := context.Background()
	course, enrollment, _ := f.seed(t)

	_, err := f.svc.Cancel(ctx, enrollment.ID)
	require.NoError(t, err)

	got, err := f.svc.Cancel(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCancelled, got.Status)

	storedCourse, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, storedCourse.CurrentStudents, "seat counter decremented exactly once")
}

func TestCancelActiveEnrollment(t *testing.T) {
	f := newCancelFixture()
	ctx := context.Background()
	_, enrollment, payment := f.seed(t)

	// Simulate a completed payment and activated enrollment first.
	ref := "TXN-ACT-1"
	require.NoError(t, f.payments.SetTransactionRef(ctx, payment.ID, ref))
	won, err := f.payments.MarkCompleted(ctx, payment.ID, ref, nil, enrollment.CreatedAt)
	require.NoError(t, err)
	require.True(t, won)
	won, err = f.enrollments.Activate(ctx, enrollment.ID, enrollment.CreatedAt)
	require.NoError(t, err)
	require.True(t, won)

	got, err := f.svc.Cancel(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCancelled, got.Status)

	// The completed payment is untouched: money movement is a refund
	// decision, not a cancellation side effect.
	storedPayment, err := f.payments.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, storedPayment.Status)
}

func TestCancelRefundedEnrollment(t *testing.T) {
	f := newCancelFixture()
	ctx := context.Background()
	_, enrollment, _ := f.seed(t)

	won, err := f.enrollments.Activate(ctx, enrollment.ID, enrollment.CreatedAt)
	require.NoError(t, err)
	require.True(t, won)
	won, err = f.enrollments.MarkRefunded(ctx, enrollment.ID)
	require.NoError(t, err)
	require.True(t, won)

	_, err = f.svc.Cancel(ctx, enrollment.ID)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
}

func TestCancelUnknownEnrollment(t *testing.T) {
	f := newCancelFixture()

	_, err := f.svc.Cancel(context.Background(), uuid4(t))
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeNotFound))
}
