package rest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
)

type enrollRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	CourseID  string `json:"course_id" validate:"required,uuid"`
	Method    string `json:"method" validate:"required,oneof=INTENT REDIRECT CASH"`
}

func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, validationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, validationError(err.Error()))
		return
	}

	studentID, _ := uuid.Parse(req.StudentID)
	courseID, _ := uuid.Parse(req.CourseID)

	res, err := h.checkout.Enroll(r.Context(), studentID, courseID, domain.PaymentMethod(req.Method))
	if err != nil {
		respondWithError(w, err)
		return
	}

	body := map[string]interface{}{"enrollment": toEnrollmentView(res.Enrollment)}
	if res.Payment != nil {
		body["payment"] = toPaymentView(res.Payment)
	}
	respondWithJSON(w, http.StatusCreated, body)
}

func (h *Handler) HandleCancelEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, err)
		return
	}

	enrollment, err := h.cancel.Cancel(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toEnrollmentView(enrollment))
}

func (h *Handler) HandleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithError(w, err)
		return
	}

	enrollment, err := h.queries.GetEnrollment(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toEnrollmentView(enrollment))
}
