package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestPayment(t *testing.T, amountCents int64) *Payment {
	t.Helper()
	p, err := NewPayment(uuid.New(), uuid.New(), uuid.New(), amountCents, "USD", MethodIntent)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return p
}

func TestNewPayment_Validation(t *testing.T) {
	if _, err := NewPayment(uuid.New(), uuid.New(), uuid.New(), 0, "USD", MethodIntent); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := NewPayment(uuid.New(), uuid.New(), uuid.New(), 100, "US", MethodIntent); err == nil {
		t.Error("expected error for bad currency")
	}
	if _, err := NewPayment(uuid.New(), uuid.New(), uuid.New(), 100, "USD", PaymentMethod("WIRE")); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestPayment_TransitionTable(t *testing.T) {
	cases := []struct {
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{PaymentPending, PaymentProcessing, true},
		{PaymentPending, PaymentCompleted, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentCancelled, true},
		{PaymentPending, PaymentRefunded, false},
		{PaymentProcessing, PaymentCompleted, true},
		{PaymentProcessing, PaymentPending, false},
		{PaymentCompleted, PaymentRefunded, true},
		{PaymentCompleted, PaymentFailed, false},
		{PaymentCompleted, PaymentPending, false},
		{PaymentFailed, PaymentCompleted, false},
		{PaymentCancelled, PaymentCompleted, false},
		{PaymentRefunded, PaymentCompleted, false},
	}

	for _, tc := range cases {
		p := newTestPayment(t, 9999)
		p.Status = tc.from
		err := p.CanTransitionTo(tc.to)
		if tc.allowed && err != nil {
			t.Errorf("%s -> %s: expected allowed, got %v", tc.from, tc.to, err)
		}
		if !tc.allowed && err == nil {
			t.Errorf("%s -> %s: expected rejection", tc.from, tc.to)
		}
	}
}

func TestPayment_NetAmountRecomputed(t *testing.T) {
	p := newTestPayment(t, 10000)
	p.DiscountCents = 1500
	p.TaxCents = 800
	p.RecomputeNetAmount()

	if p.NetAmountCents != 10000-1500+800 {
		t.Errorf("expected net %d, got %d", 10000-1500+800, p.NetAmountCents)
	}

	// Net amount must hold after every mutation as well.
	if err := p.MarkCompleted("txn-1", nil, time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.NetAmountCents != 10000-1500+800 {
		t.Errorf("net amount drifted after completion: %d", p.NetAmountCents)
	}
}

func TestPayment_MarkCompleted_PinsTransactionRef(t *testing.T) {
	p := newTestPayment(t, 9999)
	existing := "txn-original"
	p.GatewayTransactionRef = &existing

	if err := p.MarkCompleted("txn-other", nil, time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if *p.GatewayTransactionRef != "txn-original" {
		t.Error("transaction ref must be unique once set")
	}
	if p.PaymentDate == nil {
		t.Error("expected payment date set")
	}
}

func TestPayment_ApplyRefund_PartialThenFull(t *testing.T) {
	p := newTestPayment(t, 9999)
	p.Status = PaymentCompleted

	if err := p.ApplyRefund(5000, "partial", "admin-1", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Status != PaymentCompleted {
		t.Errorf("partial refund must keep status COMPLETED, got %s", p.Status)
	}
	if p.Refund.AmountCents != 5000 {
		t.Errorf("expected cumulative refund 5000, got %d", p.Refund.AmountCents)
	}

	if err := p.ApplyRefund(4999, "rest", "admin-1", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Status != PaymentRefunded {
		t.Errorf("full refund must flip status to REFUNDED, got %s", p.Status)
	}
}

func TestPayment_ApplyRefund_Bounds(t *testing.T) {
	p := newTestPayment(t, 9999)
	p.Status = PaymentCompleted

	if err := p.ApplyRefund(10000, "too much", "admin-1", time.Now()); !IsErrorCode(err, ErrCodeRefundExceedsBalance) {
		t.Errorf("expected REFUND_EXCEEDS_BALANCE, got %v", err)
	}
	if p.Refund.AmountCents != 0 {
		t.Error("rejected refund must leave state unchanged")
	}

	p.Refund.AmountCents = 9000
	if err := p.ApplyRefund(1001, "over", "admin-1", time.Now()); !IsErrorCode(err, ErrCodeRefundExceedsBalance) {
		t.Errorf("expected REFUND_EXCEEDS_BALANCE, got %v", err)
	}

	if err := p.ApplyRefund(0, "zero", "admin-1", time.Now()); !IsErrorCode(err, ErrCodeInvalidAmount) {
		t.Errorf("expected INVALID_AMOUNT, got %v", err)
	}
}

func TestPayment_ApplyRefund_RequiresCompleted(t *testing.T) {
	p := newTestPayment(t, 9999)
	if err := p.ApplyRefund(100, "nope", "admin-1", time.Now()); !IsErrorCode(err, ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE, got %v", err)
	}
}
