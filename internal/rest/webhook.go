package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/courseloop/enrollment-gateway/internal/gateway"
	"github.com/courseloop/enrollment-gateway/internal/services"
)

const signatureHeader = "Webhook-Signature"

type webhookPayload struct {
	Type           string `json:"type"`
	TransactionRef string `json:"transaction_ref"`
	AmountCents    int64  `json:"amount_cents"`
	Reason         string `json:"reason"`
}

// HandleWebhook receives provider notifications for the intent flow.
// A 200 tells the provider to stop retrying, so it is only sent once the
// delivery is durably recorded and processed; transient failures return
// 5xx to trigger a redelivery.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, validationError("unreadable request body"))
		return
	}

	if !h.webhooks.ValidateSignature(r.Header.Get(signatureHeader), body) {
		h.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		respondWithJSON(w, http.StatusUnauthorized, &APIError{
			Code:    "INVALID_SIGNATURE",
			Message: "webhook signature verification failed",
		})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondWithError(w, validationError("invalid webhook payload"))
		return
	}
	if payload.TransactionRef == "" {
		respondWithError(w, validationError("transaction_ref is required"))
		return
	}

	var res *services.ConfirmResult
	switch payload.Type {
	case "payment.succeeded":
		res, err = h.reconciler.Confirm(r.Context(), services.Event{
			TransactionRef:     payload.TransactionRef,
			Channel:            services.ChannelWebhook,
			ClaimedStatus:      "succeeded",
			ClaimedAmountCents: payload.AmountCents,
			Payload:            body,
		})
	case "payment.failed":
		res, err = h.reconciler.Abort(r.Context(), payload.TransactionRef, payload.Reason, false)
	default:
		// Unknown event types are acknowledged so providers do not
		// retry them forever.
		respondWithJSON(w, http.StatusOK, map[string]string{"received": payload.Type})
		return
	}
	if err != nil {
		if gateway.IsRetryable(err) {
			respondWithJSON(w, http.StatusBadGateway, &APIError{
				Code:    "GATEWAY_UNAVAILABLE",
				Message: "verification temporarily unavailable, retry the delivery",
			})
			return
		}
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"outcome": string(res.Outcome)})
}

// HandleRedirectCallback is where the hosted payment page sends the
// payer's browser afterwards. Whatever happens, the browser ends up on
// the client status page; the reconciler outcome only picks the result
// code carried along.
func (h *Handler) HandleRedirectCallback(w http.ResponseWriter, r *http.Request) {
	outcome := r.PathValue("outcome")
	if err := r.ParseForm(); err != nil {
		h.redirectToStatus(w, r, "", "error")
		return
	}
	tranRef := r.FormValue("tran_ref")
	if tranRef == "" {
		h.redirectToStatus(w, r, "", "error")
		return
	}

	var res *services.ConfirmResult
	var err error
	switch outcome {
	case "success":
		res, err = h.reconciler.Confirm(r.Context(), services.Event{
			TransactionRef:     tranRef,
			ValidationRef:      r.FormValue("val_id"),
			Channel:            services.ChannelCallback,
			ClaimedStatus:      r.FormValue("status"),
			ClaimedAmountCents: formCents(r, "amount_cents"),
		})
	case "fail":
		res, err = h.reconciler.Abort(r.Context(), tranRef, "provider reported failure", false)
	case "cancel":
		res, err = h.reconciler.Abort(r.Context(), tranRef, "payer cancelled", true)
	default:
		h.redirectToStatus(w, r, tranRef, "error")
		return
	}
	if err != nil {
		h.logger.Error("redirect callback processing failed",
			"transaction_ref", tranRef,
			"outcome", outcome,
			"error", err,
		)
		h.redirectToStatus(w, r, tranRef, "error")
		return
	}

	h.redirectToStatus(w, r, tranRef, resultCode(res.Outcome))
}

// HandleIPN is the server-to-server notification of the hosted flow. It
// carries the same facts as the browser callback but arrives whether or
// not the payer's browser ever comes back.
func (h *Handler) HandleIPN(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, validationError("invalid form payload"))
		return
	}
	tranRef := r.FormValue("tran_ref")
	if tranRef == "" {
		respondWithError(w, validationError("tran_ref is required"))
		return
	}

	status := r.FormValue("status")
	var res *services.ConfirmResult
	var err error
	switch status {
	case "FAILED":
		res, err = h.reconciler.Abort(r.Context(), tranRef, "provider reported failure", false)
	case "CANCELLED":
		res, err = h.reconciler.Abort(r.Context(), tranRef, "payer cancelled", true)
	default:
		res, err = h.reconciler.Confirm(r.Context(), services.Event{
			TransactionRef:     tranRef,
			ValidationRef:      r.FormValue("val_id"),
			Channel:            services.ChannelIPN,
			ClaimedStatus:      status,
			ClaimedAmountCents: formCents(r, "amount_cents"),
		})
	}
	if err != nil {
		if gateway.IsRetryable(err) {
			respondWithJSON(w, http.StatusBadGateway, &APIError{
				Code:    "GATEWAY_UNAVAILABLE",
				Message: "verification temporarily unavailable, retry the delivery",
			})
			return
		}
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"outcome": string(res.Outcome)})
}

func (h *Handler) redirectToStatus(w http.ResponseWriter, r *http.Request, tranRef, result string) {
	q := url.Values{}
	if tranRef != "" {
		q.Set("tran_ref", tranRef)
	}
	q.Set("result", result)
	http.Redirect(w, r, h.clientStatusURL+"?"+q.Encode(), http.StatusSeeOther)
}

func resultCode(outcome services.Outcome) string {
	switch outcome {
	case services.OutcomeActivated, services.OutcomeAlreadyCompleted:
		return "success"
	case services.OutcomeStillPending:
		return "pending"
	default:
		return "failed"
	}
}

func formCents(r *http.Request, field string) int64 {
	n, err := strconv.ParseInt(r.FormValue(field), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
