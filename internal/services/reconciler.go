package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
)

// Channel identifies which of the confirmation sources delivered an event.
type Channel string

const (
	ChannelConfirm  Channel = "CONFIRM"  // synchronous confirm after client-side authorization
	ChannelWebhook  Channel = "WEBHOOK"  // provider webhook, at-least-once
	ChannelCallback Channel = "CALLBACK" // browser redirect back from the hosted page
	ChannelIPN      Channel = "IPN"      // server-to-server notify, independent of the browser
	ChannelVerify   Channel = "VERIFY"   // caller-initiated verify/poll
	ChannelSweep    Channel = "SWEEP"    // background sweeper re-validation
)

// Event is one claimed payment outcome arriving over any channel.
// Correlation is entirely via TransactionRef; ValidationRef is the
// provider-issued proof used to authenticate the claim.
type Event struct {
	TransactionRef     string
	ValidationRef      string
	Channel            Channel
	ClaimedStatus      string
	ClaimedAmountCents int64
	Payload            []byte
	ReceivedAt         time.Time
}

// Outcome describes what a confirmation attempt did.
type Outcome string

const (
	// OutcomeActivated: this event performed the transition.
	OutcomeActivated Outcome = "ACTIVATED"
	// OutcomeAlreadyCompleted: a duplicate of an already-applied event;
	// reported as success so providers stop retrying.
	OutcomeAlreadyCompleted Outcome = "ALREADY_COMPLETED"
	// OutcomeStillPending: the provider has not settled the payment yet.
	OutcomeStillPending Outcome = "STILL_PENDING"
	// OutcomeIgnoredTerminal: a late success against a cancelled,
	// refunded or failed payment; the record is never resurrected.
	OutcomeIgnoredTerminal Outcome = "IGNORED_TERMINAL"
	// OutcomeMarkedFailed: validation failed or the amount mismatched;
	// the failure is recorded on the payment, not thrown.
	OutcomeMarkedFailed Outcome = "MARKED_FAILED"
)

// ConfirmResult is the state after processing one event.
type ConfirmResult struct {
	Outcome    Outcome
	Payment    *domain.Payment
	Enrollment *domain.Enrollment
}

// ValidationPolicy controls how far the reconciler trusts a claimed
// outcome the provider validator cannot corroborate.
type ValidationPolicy string

const (
	// PolicyStrict trusts only the provider validate call.
	PolicyStrict ValidationPolicy = "strict"
	// PolicyLenient additionally accepts a callback-asserted success
	// when the validator reports not-found but the amount and
	// correlation id line up. Sandbox validators are known to lose
	// transactions; never default to this in production.
	PolicyLenient ValidationPolicy = "lenient"
)

const dedupTTL = time.Hour

// Reconciler is the single entry point every confirmation channel routes
// through. It applies idempotent, conditional transitions to the payment
// and its enrollment so that any arrival order or duplication of events
// converges on the same final state.
type Reconciler struct {
	payments    PaymentStore
	enrollments EnrollmentStore
	courses     CourseStore
	events      EventStore
	dedup       DedupCache
	gateways    *gateway.Registry

	policy         ValidationPolicy
	toleranceCents int64
	logger         *slog.Logger
}

func NewReconciler(
	payments PaymentStore,
	enrollments EnrollmentStore,
	courses CourseStore,
	events EventStore,
	dedup DedupCache,
	gateways *gateway.Registry,
	policy ValidationPolicy,
	toleranceCents int64,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		payments:       payments,
		enrollments:    enrollments,
		courses:        courses,
		events:         events,
		dedup:          dedup,
		gateways:       gateways,
		policy:         policy,
		toleranceCents: toleranceCents,
		logger:         logger,
	}
}

// Confirm processes one claimed payment outcome.
//
// The status guard is what makes every channel idempotent: whichever
// event arrives first performs the transition, every later duplicate is
// a no-op that still reports success. Gateway connection failures are
// returned untouched with no state change so the caller can retry.
func (r *Reconciler) Confirm(ctx context.Context, evt Event) (*ConfirmResult, error) {
	if evt.TransactionRef == "" {
		return nil, domain.NewValidationError("transaction reference is required")
	}
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}

	// Record the delivery before doing anything with it; async channels
	// must not be acknowledged until the event is durable.
	if err := r.events.Record(ctx, evt); err != nil {
		return nil, err
	}

	if res, ok := r.shortCircuit(ctx, evt); ok {
		return res, nil
	}

	payment, err := r.payments.FindByTransactionRef(ctx, evt.TransactionRef)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentCompleted, domain.PaymentRefunded:
		r.markSeen(ctx, evt)
		return r.resultFor(ctx, OutcomeAlreadyCompleted, payment)
	case domain.PaymentCancelled, domain.PaymentFailed:
		r.logger.Warn("ignoring confirmation for terminal payment",
			"payment_id", payment.ID,
			"status", payment.Status,
			"channel", evt.Channel,
		)
		return r.resultFor(ctx, OutcomeIgnoredTerminal, payment)
	}

	verified, outcome, err := r.verify(ctx, payment, evt)
	if err != nil {
		return nil, err
	}
	if outcome != "" {
		// Validation produced a definitive non-success.
		return r.settleNonSuccess(ctx, payment, evt, outcome)
	}

	if diff := verified - payment.AmountCents; diff > r.toleranceCents || diff < -r.toleranceCents {
		r.logger.Warn("confirmation amount mismatch",
			"payment_id", payment.ID,
			"expected_cents", payment.AmountCents,
			"reported_cents", verified,
			"channel", evt.Channel,
		)
		return r.fail(ctx, payment, domain.ErrCodeAmountMismatch,
			domain.NewAmountMismatchError(payment.AmountCents, verified).Message)
	}

	return r.complete(ctx, payment, evt)
}

// shortCircuit consults the dedup cache. A positive hit still reloads
// the payment so the caller gets current state.
func (r *Reconciler) shortCircuit(ctx context.Context, evt Event) (*ConfirmResult, bool) {
	if r.dedup == nil {
		return nil, false
	}
	seen, err := r.dedup.Seen(ctx, dedupKey(evt.TransactionRef))
	if err != nil || !seen {
		return nil, false
	}
	payment, err := r.payments.FindByTransactionRef(ctx, evt.TransactionRef)
	if err != nil || payment.Status != domain.PaymentCompleted && payment.Status != domain.PaymentRefunded {
		return nil, false
	}
	res, err := r.resultFor(ctx, OutcomeAlreadyCompleted, payment)
	if err != nil {
		return nil, false
	}
	return res, true
}

// verify asks the provider to corroborate the event. It returns the
// verified amount on success, or a non-empty outcome when the provider
// gave a definitive non-success answer.
func (r *Reconciler) verify(ctx context.Context, payment *domain.Payment, evt Event) (int64, Outcome, error) {
	client, err := r.gateways.ClientFor(payment.Method)
	if err != nil {
		return 0, "", err
	}

	if payment.Method == domain.MethodIntent {
		st, err := client.RetrieveStatus(ctx, evt.TransactionRef)
		if err != nil {
			return 0, "", err
		}
		switch st.Status {
		case gateway.StatusSucceeded:
			return st.AmountCents, "", nil
		case gateway.StatusPending:
			return 0, OutcomeStillPending, nil
		default:
			return 0, OutcomeMarkedFailed, nil
		}
	}

	validationRef := evt.ValidationRef
	if validationRef == "" && payment.ValidationRef != nil {
		validationRef = *payment.ValidationRef
	}
	if validationRef == "" {
		// No proof available (verify/sweep before any callback arrived):
		// fall back to a session status query.
		st, err := client.RetrieveStatus(ctx, evt.TransactionRef)
		if err != nil {
			return 0, "", err
		}
		switch st.Status {
		case gateway.StatusSucceeded:
			return st.AmountCents, "", nil
		case gateway.StatusPending:
			return 0, OutcomeStillPending, nil
		default:
			return 0, OutcomeMarkedFailed, nil
		}
	}

	v, err := client.Validate(ctx, validationRef)
	if err != nil {
		return 0, "", err
	}
	if v.Valid {
		if v.TransactionRef != "" && v.TransactionRef != evt.TransactionRef {
			r.logger.Warn("validation correlates to a different transaction",
				"payment_id", payment.ID,
				"validated_ref", v.TransactionRef,
				"event_ref", evt.TransactionRef,
			)
			return 0, OutcomeMarkedFailed, nil
		}
		return v.AmountCents, "", nil
	}

	if r.policy == PolicyLenient && v.RawStatus == "NOT_FOUND" && claimsSuccess(evt) {
		diff := evt.ClaimedAmountCents - payment.AmountCents
		if diff <= r.toleranceCents && diff >= -r.toleranceCents {
			r.logger.Warn("lenient policy accepting unverifiable callback",
				"payment_id", payment.ID,
				"transaction_ref", evt.TransactionRef,
				"channel", evt.Channel,
			)
			return evt.ClaimedAmountCents, "", nil
		}
	}

	return 0, OutcomeMarkedFailed, nil
}

func (r *Reconciler) settleNonSuccess(ctx context.Context, payment *domain.Payment, evt Event, outcome Outcome) (*ConfirmResult, error) {
	if outcome == OutcomeStillPending {
		return r.resultFor(ctx, OutcomeStillPending, payment)
	}
	return r.fail(ctx, payment, "VALIDATION_FAILED",
		"provider did not validate transaction "+evt.TransactionRef)
}

// complete performs the idempotent completion transition. The conditional
// update decides the winner under concurrent delivery; losers reload and
// report the state the winner produced.
func (r *Reconciler) complete(ctx context.Context, payment *domain.Payment, evt Event) (*ConfirmResult, error) {
	now := time.Now().UTC()
	var validationRef *string
	if evt.ValidationRef != "" {
		validationRef = &evt.ValidationRef
	}

	won, err := r.payments.MarkCompleted(ctx, payment.ID, evt.TransactionRef, validationRef, now)
	if err != nil {
		return nil, err
	}

	payment, err = r.payments.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	if !won {
		switch payment.Status {
		case domain.PaymentCompleted, domain.PaymentRefunded:
			r.markSeen(ctx, evt)
			return r.resultFor(ctx, OutcomeAlreadyCompleted, payment)
		default:
			return r.resultFor(ctx, OutcomeIgnoredTerminal, payment)
		}
	}

	enrollment, err := r.enrollments.FindByID(ctx, payment.EnrollmentID)
	if err != nil {
		return nil, err
	}

	if enrollment.Status == domain.EnrollmentPending {
		if _, err := r.enrollments.Activate(ctx, enrollment.ID, now); err != nil {
			return nil, err
		}
		enrollment, err = r.enrollments.FindByID(ctx, enrollment.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := r.enrollments.UpdatePaymentSummary(ctx, enrollment.ID, summaryOf(payment)); err != nil {
		return nil, err
	}

	r.markSeen(ctx, evt)
	r.logger.Info("payment confirmed",
		"payment_id", payment.ID,
		"enrollment_id", enrollment.ID,
		"channel", evt.Channel,
		"transaction_ref", evt.TransactionRef,
	)

	return &ConfirmResult{Outcome: OutcomeActivated, Payment: payment, Enrollment: enrollment}, nil
}

// fail records a definitive failure on the payment. Losing the race to a
// concurrent completion keeps the completion.
func (r *Reconciler) fail(ctx context.Context, payment *domain.Payment, code, message string) (*ConfirmResult, error) {
	won, err := r.payments.MarkFailed(ctx, payment.ID, code, message)
	if err != nil {
		return nil, err
	}

	payment, err = r.payments.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	if !won && (payment.Status == domain.PaymentCompleted || payment.Status == domain.PaymentRefunded) {
		return r.resultFor(ctx, OutcomeAlreadyCompleted, payment)
	}

	if err := r.enrollments.UpdatePaymentSummary(ctx, payment.EnrollmentID, summaryOf(payment)); err != nil {
		return nil, err
	}

	return r.resultFor(ctx, OutcomeMarkedFailed, payment)
}

// Abort handles explicit fail/cancel callbacks from the hosted page.
// cancelled distinguishes payer abandonment from a declined attempt.
func (r *Reconciler) Abort(ctx context.Context, transactionRef, reason string, cancelled bool) (*ConfirmResult, error) {
	if transactionRef == "" {
		return nil, domain.NewValidationError("transaction reference is required")
	}

	payment, err := r.payments.FindByTransactionRef(ctx, transactionRef)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentCompleted, domain.PaymentRefunded:
		// A success already won; a late abort cannot undo it.
		return r.resultFor(ctx, OutcomeAlreadyCompleted, payment)
	case domain.PaymentCancelled, domain.PaymentFailed:
		return r.resultFor(ctx, OutcomeIgnoredTerminal, payment)
	}

	if cancelled {
		if _, err := r.payments.CancelPending(ctx, payment.ID); err != nil {
			return nil, err
		}
		payment, err = r.payments.FindByID(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		if err := r.enrollments.UpdatePaymentSummary(ctx, payment.EnrollmentID, summaryOf(payment)); err != nil {
			return nil, err
		}
		return r.resultFor(ctx, OutcomeIgnoredTerminal, payment)
	}

	return r.fail(ctx, payment, "GATEWAY_DECLINED", reason)
}

func (r *Reconciler) resultFor(ctx context.Context, outcome Outcome, payment *domain.Payment) (*ConfirmResult, error) {
	enrollment, err := r.enrollments.FindByID(ctx, payment.EnrollmentID)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Outcome: outcome, Payment: payment, Enrollment: enrollment}, nil
}

func (r *Reconciler) markSeen(ctx context.Context, evt Event) {
	if r.dedup == nil {
		return
	}
	if err := r.dedup.MarkSeen(ctx, dedupKey(evt.TransactionRef), dedupTTL); err != nil {
		r.logger.Debug("dedup cache write failed", "error", err)
	}
}

func claimsSuccess(evt Event) bool {
	switch evt.ClaimedStatus {
	case "VALID", "VALIDATED", "SUCCESS", "succeeded":
		return true
	default:
		return false
	}
}

func dedupKey(transactionRef string) string {
	return "payments:confirmed:" + transactionRef
}

func summaryOf(p *domain.Payment) domain.PaymentSummary {
	return domain.PaymentSummary{
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		Method:            p.Method,
		PaymentStatus:     p.Status,
		TransactionRef:    p.GatewayTransactionRef,
		RefundAmountCents: p.Refund.AmountCents,
	}
}
