package rest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
	"github.com/courseloop/enrollment-gateway/internal/services"
)

type initPaymentRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required,uuid"`
}

// HandleInitIntent starts the client-side intent flow and returns the
// client token the frontend hands to the provider SDK.
func (h *Handler) HandleInitIntent(w http.ResponseWriter, r *http.Request) {
	h.handleInitPayment(w, r, gateway.CallbackURLs{})
}

// HandleInitRedirect starts the hosted-page flow and returns the URL to
// send the payer to. The provider calls the service back on the URLs
// built here.
func (h *Handler) HandleInitRedirect(w http.ResponseWriter, r *http.Request) {
	h.handleInitPayment(w, r, gateway.CallbackURLs{
		Success: h.publicBaseURL + "/payments/redirect/callback/success",
		Fail:    h.publicBaseURL + "/payments/redirect/callback/fail",
		Cancel:  h.publicBaseURL + "/payments/redirect/callback/cancel",
		IPN:     h.publicBaseURL + "/payments/redirect/ipn",
	})
}

func (h *Handler) handleInitPayment(w http.ResponseWriter, r *http.Request, callbacks gateway.CallbackURLs) {
	var req initPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, validationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, validationError(err.Error()))
		return
	}

	enrollmentID, _ := uuid.Parse(req.EnrollmentID)
	enrollment, err := h.requireOwner(r, enrollmentID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	switch enrollment.Status {
	case domain.EnrollmentPending:
	case domain.EnrollmentActive, domain.EnrollmentCompleted:
		respondWithError(w, domain.NewAlreadyCompletedError("enrollment is already paid"))
		return
	default:
		respondWithError(w, domain.NewInvalidStateError("enrollment", string(enrollment.Status), string(domain.EnrollmentPending)))
		return
	}

	res, err := h.checkout.InitPayment(r.Context(), enrollmentID, callbacks)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"payment_id":      res.Payment.ID.String(),
		"transaction_ref": res.TransactionRef,
		"client_token":    res.ClientToken,
		"redirect_url":    res.RedirectURL,
	})
}

type confirmRequest struct {
	TransactionRef string `json:"transaction_ref" validate:"required"`
	// ValidationRef is the proof a redirect provider handed the client;
	// without it the reconciler falls back to the stored one or a status
	// query.
	ValidationRef string `json:"validation_ref,omitempty"`
}

// HandleConfirmIntent is the synchronous confirmation the frontend sends
// after the provider SDK reports success. It is advisory only: the
// reconciler re-verifies against the provider before anything changes.
func (h *Handler) HandleConfirmIntent(w http.ResponseWriter, r *http.Request) {
	h.handleConfirm(w, r, services.ChannelConfirm)
}

// HandleVerify lets a client poll a pending payment; the check runs the
// exact same path as every other confirmation channel. Unlike the
// provider-facing endpoints it requires a caller identity.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(studentHeader) == "" && !h.access.IsAdmin(r.Context(), r.Header.Get(adminHeader)) {
		respondWithError(w, domain.NewAuthorizationError("caller identity is required"))
		return
	}
	h.handleConfirm(w, r, services.ChannelVerify)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request, channel services.Channel) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, validationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, validationError(err.Error()))
		return
	}

	res, err := h.reconciler.Confirm(r.Context(), services.Event{
		TransactionRef: req.TransactionRef,
		ValidationRef:  req.ValidationRef,
		Channel:        channel,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toConfirmView(res))
}

type refundRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"required"`
}

// HandleRefund processes an admin refund. The acting admin is
// identified by the X-Admin-ID header set by the upstream auth proxy.
func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	paymentID, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, err)
		return
	}

	actor := r.Header.Get(adminHeader)
	if !h.access.IsAdmin(r.Context(), actor) {
		respondWithError(w, domain.NewAuthorizationError("refunds require an admin caller"))
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, validationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, validationError(err.Error()))
		return
	}

	payment, err := h.refunds.Refund(r.Context(), paymentID, req.AmountCents, req.Reason, actor)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toPaymentView(payment))
}

type retryPaymentRequest struct {
	Method string `json:"method" validate:"required,oneof=INTENT REDIRECT CASH"`
}

// HandleRetryPayment opens a new payment for an enrollment after a
// failed attempt. The student may pick a different method this time.
func (h *Handler) HandleRetryPayment(w http.ResponseWriter, r *http.Request) {
	enrollmentID, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, err)
		return
	}
	if _, err := h.requireOwner(r, enrollmentID); err != nil {
		respondWithError(w, err)
		return
	}

	var req retryPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, validationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, validationError(err.Error()))
		return
	}

	payment, err := h.checkout.RetryPayment(r.Context(), enrollmentID, domain.PaymentMethod(req.Method))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toPaymentView(payment))
}

func (h *Handler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, err)
		return
	}

	payment, err := h.queries.GetPayment(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toPaymentView(payment))
}
