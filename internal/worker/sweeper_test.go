package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
	"github.com/courseloop/enrollment-gateway/internal/services"
)

type stubLister struct {
	payments []*domain.Payment
	err      error
	gotAge   time.Duration
	gotLimit int
}

func (s *stubLister) FindPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Payment, error) {
	s.gotAge = age
	s.gotLimit = limit
	return s.payments, s.err
}

type stubReconciler struct {
	confirmFn func(ctx context.Context, evt services.Event) (*services.ConfirmResult, error)
	calls     []services.Event
}

func (s *stubReconciler) Confirm(ctx context.Context, evt services.Event) (*services.ConfirmResult, error) {
	s.calls = append(s.calls, evt)
	return s.confirmFn(ctx, evt)
}

func pendingPayment(t *testing.T, ref string) *domain.Payment {
	t.Helper()
	p, err := domain.NewPayment(uuid.New(), uuid.New(), uuid.New(), 9999, "USD", domain.MethodRedirect)
	require.NoError(t, err)
	p.GatewayTransactionRef = &ref
	return p
}

func TestSweeperConfirmsStuckPayments(t *testing.T) {
	lister := &stubLister{payments: []*domain.Payment{
		pendingPayment(t, "TXN-S1"),
		pendingPayment(t, "TXN-S2"),
	}}
	rec := &stubReconciler{
		confirmFn: func(ctx context.Context, evt services.Event) (*services.ConfirmResult, error) {
			return &services.ConfirmResult{Outcome: services.OutcomeActivated}, nil
		},
	}
	s := NewSweeper(lister, rec, time.Minute, 50, 10*time.Minute, testLogger())

	s.RunOnce(context.Background())

	assert.Equal(t, 10*time.Minute, lister.gotAge)
	assert.Equal(t, 50, lister.gotLimit)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, services.ChannelSweep, rec.calls[0].Channel)
	assert.Equal(t, "TXN-S1", rec.calls[0].TransactionRef)
}

func TestSweeperSkipsPaymentsWithoutRef(t *testing.T) {
	noRef, err := domain.NewPayment(uuid.New(), uuid.New(), uuid.New(), 9999, "USD", domain.MethodIntent)
	require.NoError(t, err)
	lister := &stubLister{payments: []*domain.Payment{noRef}}
	rec := &stubReconciler{
		confirmFn: func(ctx context.Context, evt services.Event) (*services.ConfirmResult, error) {
			t.Fatal("should not confirm a payment without a transaction ref")
			return nil, nil
		},
	}
	s := NewSweeper(lister, rec, time.Minute, 50, 10*time.Minute, testLogger())

	s.RunOnce(context.Background())
	assert.Empty(t, rec.calls)
}

func TestSweeperKeepsGoingAfterFailures(t *testing.T) {
	lister := &stubLister{payments: []*domain.Payment{
		pendingPayment(t, "TXN-F1"),
		pendingPayment(t, "TXN-F2"),
	}}
	rec := &stubReconciler{
		confirmFn: func(ctx context.Context, evt services.Event) (*services.ConfirmResult, error) {
			if evt.TransactionRef == "TXN-F1" {
				return nil, &gateway.Error{Kind: gateway.KindConnection, Message: "down"}
			}
			return &services.ConfirmResult{Outcome: services.OutcomeStillPending}, nil
		},
	}
	s := NewSweeper(lister, rec, time.Minute, 50, 10*time.Minute, testLogger())

	s.RunOnce(context.Background())
	assert.Len(t, rec.calls, 2, "a failing payment does not stop the cycle")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
