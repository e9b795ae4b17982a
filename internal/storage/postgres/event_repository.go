package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courseloop/enrollment-gateway/internal/services"
)

// EventRepository keeps an append-only log of every confirmation
// delivery. Webhooks and IPNs are acknowledged only after their event
// row is durable, so a crash mid-processing loses nothing: the
// provider's retry replays against recorded history.
type EventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Record(ctx context.Context, evt services.Event) error {
	query := `
		INSERT INTO gateway_events (
			transaction_ref, validation_ref, channel, claimed_status,
			claimed_amount_cents, payload, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		evt.TransactionRef, evt.ValidationRef, string(evt.Channel),
		evt.ClaimedStatus, evt.ClaimedAmountCents, evt.Payload, evt.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("record gateway event: %w", err)
	}
	return nil
}
