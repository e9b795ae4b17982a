package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courseloop/enrollment-gateway/internal/domain"
)

const paymentColumns = `
	id, user_id, enrollment_id, course_id, amount_cents, currency,
	discount_cents, tax_cents, net_amount_cents, method, status,
	gateway_transaction_ref, validation_ref,
	refund_amount_cents, refund_reason, refund_processed_by, refund_processed_at,
	failure_code, failure_message, metadata, payment_date, created_at, updated_at`

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	m := toPaymentModel(p)
	_, err := r.db.Exec(ctx, query,
		m.ID, m.UserID, m.EnrollmentID, m.CourseID, m.AmountCents, m.Currency,
		m.DiscountCents, m.TaxCents, m.NetAmountCents, m.Method, m.Status,
		m.GatewayTransactionRef, m.ValidationRef,
		m.RefundAmountCents, m.RefundReason, m.RefundProcessedBy, m.RefundProcessedAt,
		m.FailureCode, m.FailureMessage, m.Metadata, m.PaymentDate, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.db.QueryRow(ctx, query, id), id.String())
}

func (r *PaymentRepository) FindByTransactionRef(ctx context.Context, ref string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_transaction_ref = $1`
	return scanPayment(r.db.QueryRow(ctx, query, ref), ref)
}

func (r *PaymentRepository) FindPendingByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE enrollment_id = $1 AND status IN ('PENDING', 'PROCESSING')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPayment(r.db.QueryRow(ctx, query, enrollmentID), enrollmentID.String())
}

// FindPendingOlderThan lists pending payments the sweeper should
// re-validate, oldest first.
func (r *PaymentRepository) FindPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN ('PENDING', 'PROCESSING')
		  AND gateway_transaction_ref IS NOT NULL
		  AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	cutoff := time.Now().UTC().Add(-age)
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending payments: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		return scanPaymentRow(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending payments: %w", err)
	}
	return results, nil
}

// SetTransactionRef pins the correlation id before the provider is
// contacted. Pinning is first-write-wins: giving the same payment a
// second, different reference is an error.
func (r *PaymentRepository) SetTransactionRef(ctx context.Context, id uuid.UUID, ref string) error {
	query := `
		UPDATE payments
		SET gateway_transaction_ref = $2, updated_at = now()
		WHERE id = $1
		  AND (gateway_transaction_ref IS NULL OR gateway_transaction_ref = $2)
	`
	tag, err := r.db.Exec(ctx, query, id, ref)
	if err != nil {
		return fmt.Errorf("set transaction ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewInvalidStateError("payment", "transaction ref already pinned", "unset ref")
	}
	return nil
}

// MarkCompleted settles the payment if it is still in flight. The net
// amount is recomputed in the same statement so it can never go stale.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id uuid.UUID, transactionRef string, validationRef *string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'COMPLETED',
		    gateway_transaction_ref = COALESCE(gateway_transaction_ref, $2),
		    validation_ref = COALESCE($3, validation_ref),
		    payment_date = $4,
		    net_amount_cents = amount_cents - discount_cents + tax_cents,
		    updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')
	`
	tag, err := r.db.Exec(ctx, query, id, transactionRef, validationRef, paidAt)
	if err != nil {
		return false, fmt.Errorf("mark payment completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, code, message string) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'FAILED', failure_code = $2, failure_message = $3, updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')
	`
	tag, err := r.db.Exec(ctx, query, id, code, message)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) CancelPending(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'CANCELLED', updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("cancel payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ApplyRefund adds amountCents to the cumulative refund in one guarded
// statement. The WHERE clause enforces both the COMPLETED precondition
// and the balance bound; the CASE flips the status once the refund
// reaches the full amount.
func (r *PaymentRepository) ApplyRefund(ctx context.Context, id uuid.UUID, amountCents int64, reason, actor string, at time.Time) (*domain.Payment, error) {
	if amountCents <= 0 {
		return nil, domain.NewInvalidAmountError(amountCents)
	}
	query := `
		UPDATE payments
		SET refund_amount_cents = refund_amount_cents + $2,
		    refund_reason = $3,
		    refund_processed_by = $4,
		    refund_processed_at = $5,
		    status = CASE
		        WHEN refund_amount_cents + $2 >= amount_cents THEN 'REFUNDED'
		        ELSE status
		    END,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'COMPLETED'
		  AND refund_amount_cents + $2 <= amount_cents
		RETURNING ` + paymentColumns + `
	`
	p, err := scanPayment(r.db.QueryRow(ctx, query, id, amountCents, reason, actor, at), id.String())
	if err == nil {
		return p, nil
	}
	if !domain.IsErrorCode(err, domain.ErrCodeNotFound) {
		return nil, err
	}

	// The guarded update matched nothing; reload to say why.
	current, findErr := r.FindByID(ctx, id)
	if findErr != nil {
		return nil, findErr
	}
	if current.Status != domain.PaymentCompleted {
		return nil, domain.NewInvalidStateError("payment",
			string(current.Status), string(domain.PaymentCompleted))
	}
	return nil, domain.NewRefundExceedsBalanceError(amountCents, current.RefundableCents())
}

func scanPayment(row pgx.Row, id string) (*domain.Payment, error) {
	var m paymentModel
	err := row.Scan(
		&m.ID, &m.UserID, &m.EnrollmentID, &m.CourseID, &m.AmountCents, &m.Currency,
		&m.DiscountCents, &m.TaxCents, &m.NetAmountCents, &m.Method, &m.Status,
		&m.GatewayTransactionRef, &m.ValidationRef,
		&m.RefundAmountCents, &m.RefundReason, &m.RefundProcessedBy, &m.RefundProcessedAt,
		&m.FailureCode, &m.FailureMessage, &m.Metadata, &m.PaymentDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("payment", id)
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return toPaymentDomain(m), nil
}

func scanPaymentRow(row pgx.CollectableRow) (*domain.Payment, error) {
	var m paymentModel
	err := row.Scan(
		&m.ID, &m.UserID, &m.EnrollmentID, &m.CourseID, &m.AmountCents, &m.Currency,
		&m.DiscountCents, &m.TaxCents, &m.NetAmountCents, &m.Method, &m.Status,
		&m.GatewayTransactionRef, &m.ValidationRef,
		&m.RefundAmountCents, &m.RefundReason, &m.RefundProcessedBy, &m.RefundProcessedAt,
		&m.FailureCode, &m.FailureMessage, &m.Metadata, &m.PaymentDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return toPaymentDomain(m), nil
}
