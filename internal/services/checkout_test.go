package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
)

type checkoutFixture struct {
	payments    *MockPaymentStore
	enrollments *MockEnrollmentStore
	courses     *MockCourseStore
	intent      *MockGatewayClient
	redirect    *MockGatewayClient
	svc         *CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		payments:    NewMockPaymentStore(),
		enrollments: NewMockEnrollmentStore(),
		courses:     NewMockCourseStore(),
		intent:      &MockGatewayClient{},
		redirect:    &MockGatewayClient{},
	}
	registry := gateway.NewRegistry()
	registry.Register(domain.MethodIntent, f.intent)
	registry.Register(domain.MethodRedirect, f.redirect)
	f.svc = NewCheckoutService(f.payments, f.enrollments, f.courses, registry, discardLogger())
	return f
}

func (f *checkoutFixture) addCourse(t *testing.T, priceCents int64, maxStudents int) *domain.Course {
	t.Helper()
	c := &domain.Course{
		ID:          uuid4(t),
		Title:       "Distributed Systems",
		PriceCents:  priceCents,
		Currency:    "USD",
		MaxStudents: maxStudents,
	}
	f.courses.Add(c)
	return c
}

func TestEnrollPaidCourseCreatesPendingPair(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 9999, 10)
	student := uuid4(t)

	res, err := f.svc.Enroll(ctx, student, course.ID, domain.MethodIntent)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentPending, res.Enrollment.Status)
	require.NotNil(t, res.Payment)
	assert.Equal(t, domain.PaymentPending, res.Payment.Status)
	assert.Equal(t, int64(9999), res.Payment.AmountCents)
	assert.Equal(t, res.Enrollment.ID, res.Payment.EnrollmentID)

	stored, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentStudents, "seat reserved up front")
}

func TestEnrollFreeCourseActivatesImmediately(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 0, 0)

	res, err := f.svc.Enroll(ctx, uuid4(t), course.ID, domain.MethodIntent)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentActive, res.Enrollment.Status)
	assert.NotNil(t, res.Enrollment.StartDate)
	assert.Nil(t, res.Payment)
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 9999, 10)
	student := uuid4(t)

	_, err := f.svc.Enroll(ctx, student, course.ID, domain.MethodIntent)
	require.NoError(t, err)

	_, err = f.svc.Enroll(ctx, student, course.ID, domain.MethodIntent)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeAlreadyCompleted))

	stored, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentStudents, "rejected attempt holds no seat")
}

func TestEnrollFullCourse(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 9999, 1)

	_, err := f.svc.Enroll(ctx, uuid4(t), course.ID, domain.MethodIntent)
	require.NoError(t, err)

	_, err = f.svc.Enroll(ctx, uuid4(t), course.ID, domain.MethodIntent)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeCapacityExceeded))
}

func TestInitPaymentPersistsRefBeforeProviderCall(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 9999, 10)

	res, err := f.svc.Enroll(ctx, uuid4(t), course.ID, domain.MethodIntent)
	require.NoError(t, err)

	// When the provider is contacted, an async notification could race
	// the response, so the correlation id must already be on record.
	f.intent.InitiateFn = func(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
		stored, err := f.payments.FindByTransactionRef(ctx, req.TransactionRef)
		require.NoError(t, err, "transaction ref must be stored before Initiate")
		require.Equal(t, res.Payment.ID, stored.ID)
		return &gateway.InitiateResult{TransactionRef: req.TransactionRef, ClientToken: "tok_123"}, nil
	}

	init, err := f.svc.InitPayment(ctx, res.Enrollment.ID, gateway.CallbackURLs{})
	require.NoError(t, err)
	assert.NotEmpty(t, init.TransactionRef)
	assert.Equal(t, "tok_123", init.ClientToken)
	assert.Empty(t, init.RedirectURL)
}

func TestInitPaymentReusesExistingRef(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 9999, 10)

	res, err := f.svc.Enroll(ctx, uuid4(t), course.ID, domain.MethodRedirect)
	require.NoError(t, err)

	first, err := f.svc.InitPayment(ctx, res.Enrollment.ID, gateway.CallbackURLs{})
	require.NoError(t, err)

	second, err := f.svc.InitPayment(ctx, res.Enrollment.ID, gateway.CallbackURLs{})
	require.NoError(t, err)
	assert.Equal(t, first.TransactionRef, second.TransactionRef, "a retry keeps the original correlation id")
}

func TestInitPaymentRejectsCash(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 9999, 10)

	res, err := f.svc.Enroll(ctx, uuid4(t), course.ID, domain.MethodCash)
	require.NoError(t, err)

	_, err = f.svc.InitPayment(ctx, res.Enrollment.ID, gateway.CallbackURLs{})
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))
}

func TestInitPaymentWithoutPendingPayment(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.svc.InitPayment(context.Background(), uuid4(t), gateway.CallbackURLs{})
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeNotFound))
}

func TestRetryPaymentAfterFailure(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 9999, 10)

	res, err := f.svc.Enroll(ctx, uuid4(t), course.ID, domain.MethodIntent)
	require.NoError(t, err)

	ok, err := f.payments.MarkFailed(ctx, res.Payment.ID, "GATEWAY_DECLINED", "card declined")
	require.NoError(t, err)
	require.True(t, ok)

	// The student switches to the hosted-page flow on the second try.
	retry, err := f.svc.RetryPayment(ctx, res.Enrollment.ID, domain.MethodRedirect)
	require.NoError(t, err)
	assert.NotEqual(t, res.Payment.ID, retry.ID)
	assert.Equal(t, domain.PaymentPending, retry.Status)
	assert.Equal(t, domain.MethodRedirect, retry.Method)
	assert.Equal(t, int64(9999), retry.AmountCents)

	stored, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentStudents, "retry never touches the seat count")
}

func TestRetryPaymentRejectsOpenPayment(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 9999, 10)

	res, err := f.svc.Enroll(ctx, uuid4(t), course.ID, domain.MethodIntent)
	require.NoError(t, err)

	_, err = f.svc.RetryPayment(ctx, res.Enrollment.ID, domain.MethodIntent)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidState))
}

func TestRetryPaymentRequiresPendingEnrollment(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	course := f.addCourse(t, 0, 0)

	res, err := f.svc.Enroll(ctx, uuid4(t), course.ID, domain.MethodIntent)
	require.NoError(t, err)
	require.Equal(t, domain.EnrollmentActive, res.Enrollment.Status)

	_, err = f.svc.RetryPayment(ctx, res.Enrollment.ID, domain.MethodIntent)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidState))
}
