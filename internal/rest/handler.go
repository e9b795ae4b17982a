// Package rest exposes the enrollment and payment flows over HTTP. Every
// confirmation-style endpoint funnels into the reconciler, so a webhook,
// a browser callback, an IPN and a manual verify are all interchangeable
// deliveries of the same fact.
package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
	"github.com/courseloop/enrollment-gateway/internal/services"
)

type CheckoutService interface {
	Enroll(ctx context.Context, studentID, courseID uuid.UUID, method domain.PaymentMethod) (*services.EnrollResult, error)
	InitPayment(ctx context.Context, enrollmentID uuid.UUID, callbacks gateway.CallbackURLs) (*services.InitPaymentResult, error)
	RetryPayment(ctx context.Context, enrollmentID uuid.UUID, method domain.PaymentMethod) (*domain.Payment, error)
}

type CancelService interface {
	Cancel(ctx context.Context, enrollmentID uuid.UUID) (*domain.Enrollment, error)
}

type RefundService interface {
	Refund(ctx context.Context, paymentID uuid.UUID, amountCents int64, reason, actor string) (*domain.Payment, error)
}

type Reconciler interface {
	Confirm(ctx context.Context, evt services.Event) (*services.ConfirmResult, error)
	Abort(ctx context.Context, transactionRef, reason string, cancelled bool) (*services.ConfirmResult, error)
}

type QueryService interface {
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetEnrollment(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	checkout   CheckoutService
	cancel     CancelService
	refunds    RefundService
	reconciler Reconciler
	queries    QueryService
	webhooks   *gateway.WebhookValidator
	access     AccessPolicy
	db         Pinger

	// publicBaseURL is this service's external address, the root the
	// redirect callback and IPN URLs are built on.
	publicBaseURL string
	// clientStatusURL is the browser page redirect callbacks land on.
	clientStatusURL string

	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(
	checkout CheckoutService,
	cancel CancelService,
	refunds RefundService,
	reconciler Reconciler,
	queries QueryService,
	webhooks *gateway.WebhookValidator,
	access AccessPolicy,
	db Pinger,
	publicBaseURL, clientStatusURL string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		checkout:        checkout,
		cancel:          cancel,
		refunds:         refunds,
		reconciler:      reconciler,
		queries:         queries,
		webhooks:        webhooks,
		access:          access,
		db:              db,
		publicBaseURL:   publicBaseURL,
		clientStatusURL: clientStatusURL,
		validate:        validator.New(),
		logger:          logger,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /enrollments", h.HandleEnroll)
	mux.HandleFunc("POST /enrollments/{id}/cancel", h.HandleCancelEnrollment)
	mux.HandleFunc("GET /enrollments/{id}", h.HandleGetEnrollment)
	mux.HandleFunc("POST /enrollments/{id}/payments", h.HandleRetryPayment)

	mux.HandleFunc("POST /payments/intent/init", h.HandleInitIntent)
	mux.HandleFunc("POST /payments/intent/confirm", h.HandleConfirmIntent)
	mux.HandleFunc("POST /payments/webhook", h.HandleWebhook)

	mux.HandleFunc("POST /payments/redirect/init", h.HandleInitRedirect)
	mux.HandleFunc("POST /payments/redirect/callback/{outcome}", h.HandleRedirectCallback)
	mux.HandleFunc("POST /payments/redirect/ipn", h.HandleIPN)
	mux.HandleFunc("POST /payments/redirect/verify", h.HandleVerify)

	mux.HandleFunc("POST /payments/{id}/refund", h.HandleRefund)
	mux.HandleFunc("GET /payments/{id}", h.HandleGetPayment)

	mux.HandleFunc("GET /healthz", h.HandleHealth)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			respondWithJSON(w, http.StatusServiceUnavailable, &APIError{
				Code:    "UNHEALTHY",
				Message: "database unreachable",
			})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, validationError(name + " must be a valid uuid")
	}
	return id, nil
}
