package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courseloop/enrollment-gateway/internal/domain"
)

type CourseRepository struct {
	db *pgxpool.Pool
}

func NewCourseRepository(db *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	query := `
		SELECT id, title, price_cents, currency, max_students, current_students
		FROM courses WHERE id = $1
	`
	var c domain.Course
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Title, &c.PriceCents, &c.Currency, &c.MaxStudents, &c.CurrentStudents,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("course", id.String())
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}
	return &c, nil
}

// ReserveSeat takes one seat atomically. The capacity check and the
// increment live in the same statement, so concurrent enrollments can
// never oversell a course. max_students of zero means unlimited.
func (r *CourseRepository) ReserveSeat(ctx context.Context, courseID uuid.UUID) error {
	query := `
		UPDATE courses
		SET current_students = current_students + 1, updated_at = now()
		WHERE id = $1
		  AND (max_students = 0 OR current_students < max_students)
	`
	tag, err := r.db.Exec(ctx, query, courseID)
	if err != nil {
		return fmt.Errorf("reserve seat: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Either the course is full or it does not exist.
	if _, err := r.FindByID(ctx, courseID); err != nil {
		return err
	}
	return domain.NewCapacityExceededError(courseID.String())
}

// ReleaseSeat gives one seat back, clamped at zero.
func (r *CourseRepository) ReleaseSeat(ctx context.Context, courseID uuid.UUID) error {
	query := `
		UPDATE courses
		SET current_students = GREATEST(current_students - 1, 0), updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, courseID)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("course", courseID.String())
	}
	return nil
}
