package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
)

// MockPaymentStore
type MockPaymentStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*domain.Payment

	CreateFn                  func(ctx context.Context, p *domain.Payment) error
	FindByIDFn                func(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindByTransactionRefFn    func(ctx context.Context, ref string) (*domain.Payment, error)
	FindPendingByEnrollmentFn func(ctx context.Context, enrollmentID uuid.UUID) (*domain.Payment, error)
	FindPendingOlderThanFn    func(ctx context.Context, age time.Duration, limit int) ([]*domain.Payment, error)
	SetTransactionRefFn       func(ctx context.Context, id uuid.UUID, ref string) error
	MarkCompletedFn           func(ctx context.Context, id uuid.UUID, transactionRef string, validationRef *string, paidAt time.Time) (bool, error)
	MarkFailedFn              func(ctx context.Context, id uuid.UUID, code, message string) (bool, error)
	CancelPendingFn           func(ctx context.Context, id uuid.UUID) (bool, error)
	ApplyRefundFn             func(ctx context.Context, id uuid.UUID, amountCents int64, reason, actor string, at time.Time) (*domain.Payment, error)
}

func NewMockPaymentStore() *MockPaymentStore {
	return &MockPaymentStore{payments: make(map[uuid.UUID]*domain.Payment)}
}

func clonePayment(p *domain.Payment) *domain.Payment {
	cp := *p
	if p.GatewayTransactionRef != nil {
		ref := *p.GatewayTransactionRef
		cp.GatewayTransactionRef = &ref
	}
	if p.ValidationRef != nil {
		ref := *p.ValidationRef
		cp.ValidationRef = &ref
	}
	if p.Failure != nil {
		f := *p.Failure
		cp.Failure = &f
	}
	return &cp
}

func (m *MockPaymentStore) Create(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, p)
	}
	m.payments[p.ID] = clonePayment(p)
	return nil
}

func (m *MockPaymentStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if p, ok := m.payments[id]; ok {
		return clonePayment(p), nil
	}
	return nil, domain.NewNotFoundError("payment", id.String())
}

func (m *MockPaymentStore) FindByTransactionRef(ctx context.Context, ref string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindByTransactionRefFn != nil {
		return m.FindByTransactionRefFn(ctx, ref)
	}
	for _, p := range m.payments {
		if p.GatewayTransactionRef != nil && *p.GatewayTransactionRef == ref {
			return clonePayment(p), nil
		}
	}
	return nil, domain.NewNotFoundError("payment", ref)
}

func (m *MockPaymentStore) FindPendingByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindPendingByEnrollmentFn != nil {
		return m.FindPendingByEnrollmentFn(ctx, enrollmentID)
	}
	for _, p := range m.payments {
		if p.EnrollmentID == enrollmentID && (p.Status == domain.PaymentPending || p.Status == domain.PaymentProcessing) {
			return clonePayment(p), nil
		}
	}
	return nil, domain.NewNotFoundError("pending payment for enrollment", enrollmentID.String())
}

func (m *MockPaymentStore) FindPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindPendingOlderThanFn != nil {
		return m.FindPendingOlderThanFn(ctx, age, limit)
	}
	cutoff := time.Now().Add(-age)
	var out []*domain.Payment
	for _, p := range m.payments {
		if len(out) >= limit {
			break
		}
		if (p.Status == domain.PaymentPending || p.Status == domain.PaymentProcessing) && p.CreatedAt.Before(cutoff) {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (m *MockPaymentStore) SetTransactionRef(ctx context.Context, id uuid.UUID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetTransactionRefFn != nil {
		return m.SetTransactionRefFn(ctx, id, ref)
	}
	p, ok := m.payments[id]
	if !ok {
		return domain.NewNotFoundError("payment", id.String())
	}
	p.GatewayTransactionRef = &ref
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockPaymentStore) MarkCompleted(ctx context.Context, id uuid.UUID, transactionRef string, validationRef *string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkCompletedFn != nil {
		return m.MarkCompletedFn(ctx, id, transactionRef, validationRef, paidAt)
	}
	p, ok := m.payments[id]
	if !ok {
		return false, domain.NewNotFoundError("payment", id.String())
	}
	if p.Status != domain.PaymentPending && p.Status != domain.PaymentProcessing {
		return false, nil
	}
	p.Status = domain.PaymentCompleted
	if p.GatewayTransactionRef == nil {
		p.GatewayTransactionRef = &transactionRef
	}
	if validationRef != nil {
		p.ValidationRef = validationRef
	}
	p.PaymentDate = &paidAt
	p.RecomputeNetAmount()
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockPaymentStore) MarkFailed(ctx context.Context, id uuid.UUID, code, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkFailedFn != nil {
		return m.MarkFailedFn(ctx, id, code, message)
	}
	p, ok := m.payments[id]
	if !ok {
		return false, domain.NewNotFoundError("payment", id.String())
	}
	if p.Status != domain.PaymentPending && p.Status != domain.PaymentProcessing {
		return false, nil
	}
	p.Status = domain.PaymentFailed
	p.Failure = &domain.FailureReason{Code: code, Message: message}
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockPaymentStore) CancelPending(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CancelPendingFn != nil {
		return m.CancelPendingFn(ctx, id)
	}
	p, ok := m.payments[id]
	if !ok {
		return false, domain.NewNotFoundError("payment", id.String())
	}
	if p.Status != domain.PaymentPending && p.Status != domain.PaymentProcessing {
		return false, nil
	}
	p.Status = domain.PaymentCancelled
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockPaymentStore) ApplyRefund(ctx context.Context, id uuid.UUID, amountCents int64, reason, actor string, at time.Time) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ApplyRefundFn != nil {
		return m.ApplyRefundFn(ctx, id, amountCents, reason, actor, at)
	}
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.NewNotFoundError("payment", id.String())
	}
	if err := p.ApplyRefund(amountCents, reason, actor, at); err != nil {
		return nil, err
	}
	return clonePayment(p), nil
}

// MockEnrollmentStore
type MockEnrollmentStore struct {
	mu          sync.Mutex
	enrollments map[uuid.UUID]*domain.Enrollment

	CreateFn                        func(ctx context.Context, e *domain.Enrollment) error
	FindByIDFn                      func(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)
	FindCurrentByStudentAndCourseFn func(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Enrollment, error)
	ActivateFn                      func(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	CancelFn                        func(ctx context.Context, id uuid.UUID) (bool, error)
	MarkRefundedFn                  func(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSeatReleasedFn              func(ctx context.Context, id uuid.UUID) (bool, error)
	UpdatePaymentSummaryFn          func(ctx context.Context, id uuid.UUID, s domain.PaymentSummary) error
}

func NewMockEnrollmentStore() *MockEnrollmentStore {
	return &MockEnrollmentStore{enrollments: make(map[uuid.UUID]*domain.Enrollment)}
}

func cloneEnrollment(e *domain.Enrollment) *domain.Enrollment {
	ce := *e
	if e.StartDate != nil {
		t := *e.StartDate
		ce.StartDate = &t
	}
	if e.CompletionDate != nil {
		t := *e.CompletionDate
		ce.CompletionDate = &t
	}
	if e.Payment.TransactionRef != nil {
		ref := *e.Payment.TransactionRef
		ce.Payment.TransactionRef = &ref
	}
	return &ce
}

func (m *MockEnrollmentStore) Create(ctx context.Context, e *domain.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, e)
	}
	m.enrollments[e.ID] = cloneEnrollment(e)
	return nil
}

func (m *MockEnrollmentStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if e, ok := m.enrollments[id]; ok {
		return cloneEnrollment(e), nil
	}
	return nil, domain.NewNotFoundError("enrollment", id.String())
}

func (m *MockEnrollmentStore) FindCurrentByStudentAndCourse(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindCurrentByStudentAndCourseFn != nil {
		return m.FindCurrentByStudentAndCourseFn(ctx, studentID, courseID)
	}
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID &&
			e.Status != domain.EnrollmentCancelled && e.Status != domain.EnrollmentRefunded {
			return cloneEnrollment(e), nil
		}
	}
	return nil, nil
}

func (m *MockEnrollmentStore) Activate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ActivateFn != nil {
		return m.ActivateFn(ctx, id, at)
	}
	e, ok := m.enrollments[id]
	if !ok {
		return false, domain.NewNotFoundError("enrollment", id.String())
	}
	if e.Status != domain.EnrollmentPending {
		return false, nil
	}
	e.Status = domain.EnrollmentActive
	e.StartDate = &at
	e.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockEnrollmentStore) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CancelFn != nil {
		return m.CancelFn(ctx, id)
	}
	e, ok := m.enrollments[id]
	if !ok {
		return false, domain.NewNotFoundError("enrollment", id.String())
	}
	if e.Status != domain.EnrollmentPending && e.Status != domain.EnrollmentActive {
		return false, nil
	}
	e.Status = domain.EnrollmentCancelled
	e.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockEnrollmentStore) MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkRefundedFn != nil {
		return m.MarkRefundedFn(ctx, id)
	}
	e, ok := m.enrollments[id]
	if !ok {
		return false, domain.NewNotFoundError("enrollment", id.String())
	}
	switch e.Status {
	case domain.EnrollmentActive, domain.EnrollmentCompleted:
		e.Status = domain.EnrollmentRefunded
		e.UpdatedAt = time.Now().UTC()
		return true, nil
	default:
		return false, nil
	}
}

func (m *MockEnrollmentStore) MarkSeatReleased(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkSeatReleasedFn != nil {
		return m.MarkSeatReleasedFn(ctx, id)
	}
	e, ok := m.enrollments[id]
	if !ok {
		return false, domain.NewNotFoundError("enrollment", id.String())
	}
	if e.SeatReleased {
		return false, nil
	}
	e.SeatReleased = true
	e.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockEnrollmentStore) UpdatePaymentSummary(ctx context.Context, id uuid.UUID, s domain.PaymentSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdatePaymentSummaryFn != nil {
		return m.UpdatePaymentSummaryFn(ctx, id, s)
	}
	e, ok := m.enrollments[id]
	if !ok {
		return domain.NewNotFoundError("enrollment", id.String())
	}
	e.Payment = s
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// MockCourseStore
type MockCourseStore struct {
	mu      sync.Mutex
	courses map[uuid.UUID]*domain.Course

	FindByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	ReserveSeatFn func(ctx context.Context, courseID uuid.UUID) error
	ReleaseSeatFn func(ctx context.Context, courseID uuid.UUID) error
}

func NewMockCourseStore() *MockCourseStore {
	return &MockCourseStore{courses: make(map[uuid.UUID]*domain.Course)}
}

func (m *MockCourseStore) Add(c *domain.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := *c
	m.courses[c.ID] = &cc
}

func (m *MockCourseStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if c, ok := m.courses[id]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, domain.NewNotFoundError("course", id.String())
}

func (m *MockCourseStore) ReserveSeat(ctx context.Context, courseID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReserveSeatFn != nil {
		return m.ReserveSeatFn(ctx, courseID)
	}
	c, ok := m.courses[courseID]
	if !ok {
		return domain.NewNotFoundError("course", courseID.String())
	}
	if !c.HasCapacity() {
		return domain.NewCapacityExceededError(courseID.String())
	}
	c.CurrentStudents++
	return nil
}

func (m *MockCourseStore) ReleaseSeat(ctx context.Context, courseID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReleaseSeatFn != nil {
		return m.ReleaseSeatFn(ctx, courseID)
	}
	c, ok := m.courses[courseID]
	if !ok {
		return domain.NewNotFoundError("course", courseID.String())
	}
	if c.CurrentStudents > 0 {
		c.CurrentStudents--
	}
	return nil
}

// MockEventStore
type MockEventStore struct {
	mu     sync.Mutex
	events []Event

	RecordFn func(ctx context.Context, evt Event) error
}

func NewMockEventStore() *MockEventStore {
	return &MockEventStore{}
}

func (m *MockEventStore) Record(ctx context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordFn != nil {
		return m.RecordFn(ctx, evt)
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *MockEventStore) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// MockDedupCache
type MockDedupCache struct {
	mu   sync.Mutex
	seen map[string]bool

	SeenFn     func(ctx context.Context, key string) (bool, error)
	MarkSeenFn func(ctx context.Context, key string, ttl time.Duration) error
}

func NewMockDedupCache() *MockDedupCache {
	return &MockDedupCache{seen: make(map[string]bool)}
}

func (m *MockDedupCache) Seen(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SeenFn != nil {
		return m.SeenFn(ctx, key)
	}
	return m.seen[key], nil
}

func (m *MockDedupCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkSeenFn != nil {
		return m.MarkSeenFn(ctx, key, ttl)
	}
	m.seen[key] = true
	return nil
}

// MockGatewayClient
type MockGatewayClient struct {
	InitiateFn       func(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error)
	RetrieveStatusFn func(ctx context.Context, transactionRef string) (*gateway.StatusResult, error)
	ValidateFn       func(ctx context.Context, validationRef string) (*gateway.ValidationResult, error)
	RefundFn         func(ctx context.Context, transactionRef string, amountCents int64) (*gateway.RefundResult, error)
}

func (m *MockGatewayClient) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	if m.InitiateFn != nil {
		return m.InitiateFn(ctx, req)
	}
	return &gateway.InitiateResult{TransactionRef: req.TransactionRef, ClientToken: "tok_mock"}, nil
}

func (m *MockGatewayClient) RetrieveStatus(ctx context.Context, transactionRef string) (*gateway.StatusResult, error) {
	if m.RetrieveStatusFn != nil {
		return m.RetrieveStatusFn(ctx, transactionRef)
	}
	return &gateway.StatusResult{Status: gateway.StatusPending}, nil
}

func (m *MockGatewayClient) Validate(ctx context.Context, validationRef string) (*gateway.ValidationResult, error) {
	if m.ValidateFn != nil {
		return m.ValidateFn(ctx, validationRef)
	}
	return &gateway.ValidationResult{Valid: false, RawStatus: "NOT_FOUND"}, nil
}

func (m *MockGatewayClient) Refund(ctx context.Context, transactionRef string, amountCents int64) (*gateway.RefundResult, error) {
	if m.RefundFn != nil {
		return m.RefundFn(ctx, transactionRef, amountCents)
	}
	return &gateway.RefundResult{RefundRef: "rf_mock"}, nil
}
