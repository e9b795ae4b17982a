package domain

import "github.com/google/uuid"

// Course carries the pricing and seat capacity the payment flow needs.
// Full course management lives outside this service.
type Course struct {
	ID         uuid.UUID
	Title      string
	PriceCents int64
	Currency   string

	// MaxStudents of 0 means unlimited capacity.
	MaxStudents     int
	CurrentStudents int
}

func (c *Course) IsFree() bool {
	return c.PriceCents == 0
}

func (c *Course) HasCapacity() bool {
	return c.MaxStudents == 0 || c.CurrentStudents < c.MaxStudents
}
