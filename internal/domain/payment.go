// Package domain defines the entities of the enrollment payment system.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod identifies which gateway flow a payment uses.
type PaymentMethod string

const (
	MethodIntent   PaymentMethod = "INTENT"
	MethodRedirect PaymentMethod = "REDIRECT"
	MethodCash     PaymentMethod = "CASH"
)

// PaymentStatus represents the current state of a payment in its lifecycle.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// FailureReason records why a payment ended up FAILED.
type FailureReason struct {
	Code    string
	Message string
}

// Refund tracks cumulative refunds issued against a payment.
type Refund struct {
	AmountCents int64
	Reason      string
	ProcessedBy string
	ProcessedAt *time.Time
}

// Payment represents one purchase attempt for an enrollment.
// Amount and Currency are fixed at creation; only status, net amount
// and refund fields mutate afterwards.
type Payment struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	EnrollmentID uuid.UUID
	CourseID     uuid.UUID

	AmountCents    int64
	Currency       string
	DiscountCents  int64
	TaxCents       int64
	NetAmountCents int64

	Method PaymentMethod
	Status PaymentStatus

	GatewayTransactionRef *string
	ValidationRef         *string

	Refund  Refund
	Failure *FailureReason

	Metadata map[string]string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaymentDate *time.Time
}

// NewPayment creates a PENDING payment for an enrollment.
func NewPayment(userID, enrollmentID, courseID uuid.UUID, amountCents int64, currency string, method PaymentMethod) (*Payment, error) {
	if amountCents <= 0 {
		return nil, NewInvalidAmountError(amountCents)
	}
	if len(currency) != 3 {
		return nil, NewValidationError("currency must be a 3-letter code")
	}
	switch method {
	case MethodIntent, MethodRedirect, MethodCash:
	default:
		return nil, NewValidationError("unknown payment method: " + string(method))
	}

	now := time.Now().UTC()
	p := &Payment{
		ID:           uuid.New(),
		UserID:       userID,
		EnrollmentID: enrollmentID,
		CourseID:     courseID,
		AmountCents:  amountCents,
		Currency:     currency,
		Method:       method,
		Status:       PaymentPending,
		Metadata:     map[string]string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.RecomputeNetAmount()
	return p, nil
}

// RecomputeNetAmount re-derives the net amount from amount, discount and tax.
// Called before every persist so the stored value never drifts.
func (p *Payment) RecomputeNetAmount() {
	p.NetAmountCents = p.AmountCents - p.DiscountCents + p.TaxCents
}

// CanTransitionTo validates a status change against the transition table.
//
// Valid transitions are:
//   - Pending → Processing, Completed, Failed, Cancelled
//   - Processing → Completed, Failed, Cancelled
//   - Completed → Refunded
//
// Failed, Cancelled and Refunded are terminal.
func (p *Payment) CanTransitionTo(target PaymentStatus) error {
	switch p.Status {
	case PaymentPending:
		switch target {
		case PaymentProcessing, PaymentCompleted, PaymentFailed, PaymentCancelled:
			return nil
		}
	case PaymentProcessing:
		switch target {
		case PaymentCompleted, PaymentFailed, PaymentCancelled:
			return nil
		}
	case PaymentCompleted:
		if target == PaymentRefunded {
			return nil
		}
	}
	return NewInvalidTransitionError("payment", string(p.Status), string(target))
}

// IsTerminal reports whether no further status change is possible,
// other than COMPLETED moving to REFUNDED.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	default:
		return false
	}
}

// MarkCompleted moves the payment to COMPLETED and pins the gateway
// correlation ids.
func (p *Payment) MarkCompleted(transactionRef string, validationRef *string, at time.Time) error {
	if err := p.CanTransitionTo(PaymentCompleted); err != nil {
		return err
	}
	p.Status = PaymentCompleted
	if p.GatewayTransactionRef == nil {
		p.GatewayTransactionRef = &transactionRef
	}
	if validationRef != nil {
		p.ValidationRef = validationRef
	}
	p.PaymentDate = &at
	p.UpdatedAt = at
	p.RecomputeNetAmount()
	return nil
}

// MarkFailed records a definitive failure on the payment itself.
func (p *Payment) MarkFailed(code, message string) error {
	if err := p.CanTransitionTo(PaymentFailed); err != nil {
		return err
	}
	p.Status = PaymentFailed
	p.Failure = &FailureReason{Code: code, Message: message}
	p.UpdatedAt = time.Now().UTC()
	p.RecomputeNetAmount()
	return nil
}

// RefundableCents is the remaining balance that may still be refunded.
func (p *Payment) RefundableCents() int64 {
	return p.AmountCents - p.Refund.AmountCents
}

// ApplyRefund accumulates a refund. The cumulative refund never decreases
// and never exceeds the original amount; a full refund flips the payment
// to REFUNDED.
func (p *Payment) ApplyRefund(amountCents int64, reason, actor string, at time.Time) error {
	if amountCents <= 0 {
		return NewInvalidAmountError(amountCents)
	}
	if p.Status != PaymentCompleted {
		return NewInvalidStateError("payment", string(p.Status), string(PaymentCompleted))
	}
	if amountCents > p.RefundableCents() {
		return NewRefundExceedsBalanceError(amountCents, p.RefundableCents())
	}

	p.Refund.AmountCents += amountCents
	p.Refund.Reason = reason
	p.Refund.ProcessedBy = actor
	p.Refund.ProcessedAt = &at
	if p.Refund.AmountCents == p.AmountCents {
		p.Status = PaymentRefunded
	}
	p.UpdatedAt = at
	p.RecomputeNetAmount()
	return nil
}
