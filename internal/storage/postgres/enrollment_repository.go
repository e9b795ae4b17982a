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

const enrollmentColumns = `
	id, student_id, course_id, status, progress, seat_released,
	payment_amount_cents, payment_currency, payment_method, payment_status,
	payment_transaction_ref, payment_refund_cents,
	start_date, completion_date, created_at, updated_at`

type EnrollmentRepository struct {
	db *pgxpool.Pool
}

func NewEnrollmentRepository(db *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) Create(ctx context.Context, e *domain.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, student_id, course_id, status, progress, seat_released,
			start_date, completion_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		e.ID, e.StudentID, e.CourseID, string(e.Status), e.Progress, e.SeatReleased,
		e.StartDate, e.CompletionDate, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewAlreadyCompletedError("student is already enrolled in this course")
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (r *EnrollmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	return scanEnrollment(r.db.QueryRow(ctx, query, id), id.String())
}

// FindCurrentByStudentAndCourse returns the live enrollment for a
// (student, course) pair, or nil when the student has none. Cancelled
// and refunded enrollments do not block re-enrollment.
func (r *EnrollmentRepository) FindCurrentByStudentAndCourse(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE student_id = $1 AND course_id = $2
		  AND status NOT IN ('CANCELLED', 'REFUNDED')
		LIMIT 1
	`
	e, err := scanEnrollment(r.db.QueryRow(ctx, query, studentID, courseID), studentID.String())
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *EnrollmentRepository) Activate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE enrollments
		SET status = 'ACTIVE', start_date = $2, updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
	`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("activate enrollment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EnrollmentRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE enrollments
		SET status = 'CANCELLED', updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'ACTIVE')
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("cancel enrollment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EnrollmentRepository) MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE enrollments
		SET status = 'REFUNDED', updated_at = now()
		WHERE id = $1 AND status IN ('ACTIVE', 'COMPLETED')
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark enrollment refunded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSeatReleased flips the release guard. Exactly one caller ever
// gets true; that caller owns the seat counter decrement.
func (r *EnrollmentRepository) MarkSeatReleased(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE enrollments
		SET seat_released = true, updated_at = now()
		WHERE id = $1 AND NOT seat_released
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark seat released: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EnrollmentRepository) UpdatePaymentSummary(ctx context.Context, id uuid.UUID, s domain.PaymentSummary) error {
	query := `
		UPDATE enrollments
		SET payment_amount_cents = $2,
		    payment_currency = $3,
		    payment_method = $4,
		    payment_status = $5,
		    payment_transaction_ref = $6,
		    payment_refund_cents = $7,
		    updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id,
		s.AmountCents, s.Currency, string(s.Method), string(s.PaymentStatus),
		s.TransactionRef, s.RefundAmountCents,
	)
	if err != nil {
		return fmt.Errorf("update payment summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("enrollment", id.String())
	}
	return nil
}

func scanEnrollment(row pgx.Row, id string) (*domain.Enrollment, error) {
	var m enrollmentModel
	err := row.Scan(
		&m.ID, &m.StudentID, &m.CourseID, &m.Status, &m.Progress, &m.SeatReleased,
		&m.PayAmountCents, &m.PayCurrency, &m.PayMethod, &m.PayStatus,
		&m.PayTransactionRef, &m.PayRefundCents,
		&m.StartDate, &m.CompletionDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("enrollment", id)
		}
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}
	return toEnrollmentDomain(m), nil
}
