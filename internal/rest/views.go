package rest

import (
	"time"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/services"
)

type paymentView struct {
	ID                string     `json:"id"`
	EnrollmentID      string     `json:"enrollment_id"`
	CourseID          string     `json:"course_id"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency"`
	DiscountCents     int64      `json:"discount_cents"`
	TaxCents          int64      `json:"tax_cents"`
	NetAmountCents    int64      `json:"net_amount_cents"`
	Method            string     `json:"method"`
	Status            string     `json:"status"`
	TransactionRef    *string    `json:"transaction_ref,omitempty"`
	RefundAmountCents int64      `json:"refund_amount_cents"`
	FailureCode       string     `json:"failure_code,omitempty"`
	FailureMessage    string     `json:"failure_message,omitempty"`
	PaymentDate       *time.Time `json:"payment_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toPaymentView(p *domain.Payment) *paymentView {
	v := &paymentView{
		ID:                p.ID.String(),
		EnrollmentID:      p.EnrollmentID.String(),
		CourseID:          p.CourseID.String(),
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		DiscountCents:     p.DiscountCents,
		TaxCents:          p.TaxCents,
		NetAmountCents:    p.NetAmountCents,
		Method:            string(p.Method),
		Status:            string(p.Status),
		TransactionRef:    p.GatewayTransactionRef,
		RefundAmountCents: p.Refund.AmountCents,
		PaymentDate:       p.PaymentDate,
		CreatedAt:         p.CreatedAt,
	}
	if p.Failure != nil {
		v.FailureCode = p.Failure.Code
		v.FailureMessage = p.Failure.Message
	}
	return v
}

type enrollmentView struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	CourseID       string     `json:"course_id"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	PaymentStatus  string     `json:"payment_status,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toEnrollmentView(e *domain.Enrollment) *enrollmentView {
	return &enrollmentView{
		ID:             e.ID.String(),
		StudentID:      e.StudentID.String(),
		CourseID:       e.CourseID.String(),
		Status:         string(e.Status),
		Progress:       e.Progress,
		PaymentStatus:  string(e.Payment.PaymentStatus),
		StartDate:      e.StartDate,
		CompletionDate: e.CompletionDate,
		CreatedAt:      e.CreatedAt,
	}
}

type confirmView struct {
	Outcome    string          `json:"outcome"`
	Payment    *paymentView    `json:"payment,omitempty"`
	Enrollment *enrollmentView `json:"enrollment,omitempty"`
}

func toConfirmView(res *services.ConfirmResult) *confirmView {
	v := &confirmView{Outcome: string(res.Outcome)}
	if res.Payment != nil {
		v.Payment = toPaymentView(res.Payment)
	}
	if res.Enrollment != nil {
		v.Enrollment = toEnrollmentView(res.Enrollment)
	}
	return v
}
