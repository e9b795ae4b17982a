package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
)

type paymentModel struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	EnrollmentID          uuid.UUID
	CourseID              uuid.UUID
	AmountCents           int64
	Currency              string
	DiscountCents         int64
	TaxCents              int64
	NetAmountCents        int64
	Method                string
	Status                string
	GatewayTransactionRef *string
	ValidationRef         *string
	RefundAmountCents     int64
	RefundReason          *string
	RefundProcessedBy     *string
	RefundProcessedAt     *time.Time
	FailureCode           *string
	FailureMessage        *string
	Metadata              map[string]string
	PaymentDate           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func toPaymentDomain(m paymentModel) *domain.Payment {
	p := &domain.Payment{
		ID:                    m.ID,
		UserID:                m.UserID,
		EnrollmentID:          m.EnrollmentID,
		CourseID:              m.CourseID,
		AmountCents:           m.AmountCents,
		Currency:              m.Currency,
		DiscountCents:         m.DiscountCents,
		TaxCents:              m.TaxCents,
		NetAmountCents:        m.NetAmountCents,
		Method:                domain.PaymentMethod(m.Method),
		Status:                domain.PaymentStatus(m.Status),
		GatewayTransactionRef: m.GatewayTransactionRef,
		ValidationRef:         m.ValidationRef,
		Metadata:              m.Metadata,
		PaymentDate:           m.PaymentDate,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	p.Refund.AmountCents = m.RefundAmountCents
	if m.RefundReason != nil {
		p.Refund.Reason = *m.RefundReason
	}
	if m.RefundProcessedBy != nil {
		p.Refund.ProcessedBy = *m.RefundProcessedBy
	}
	p.Refund.ProcessedAt = m.RefundProcessedAt
	if m.FailureCode != nil {
		p.Failure = &domain.FailureReason{Code: *m.FailureCode}
		if m.FailureMessage != nil {
			p.Failure.Message = *m.FailureMessage
		}
	}
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}
	return p
}

func toPaymentModel(p *domain.Payment) paymentModel {
	m := paymentModel{
		ID:                    p.ID,
		UserID:                p.UserID,
		EnrollmentID:          p.EnrollmentID,
		CourseID:              p.CourseID,
		AmountCents:           p.AmountCents,
		Currency:              p.Currency,
		DiscountCents:         p.DiscountCents,
		TaxCents:              p.TaxCents,
		NetAmountCents:        p.NetAmountCents,
		Method:                string(p.Method),
		Status:                string(p.Status),
		GatewayTransactionRef: p.GatewayTransactionRef,
		ValidationRef:         p.ValidationRef,
		RefundAmountCents:     p.Refund.AmountCents,
		RefundProcessedAt:     p.Refund.ProcessedAt,
		Metadata:              p.Metadata,
		PaymentDate:           p.PaymentDate,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
	if p.Refund.Reason != "" {
		m.RefundReason = &p.Refund.Reason
	}
	if p.Refund.ProcessedBy != "" {
		m.RefundProcessedBy = &p.Refund.ProcessedBy
	}
	if p.Failure != nil {
		m.FailureCode = &p.Failure.Code
		m.FailureMessage = &p.Failure.Message
	}
	return m
}

type enrollmentModel struct {
	ID                uuid.UUID
	StudentID         uuid.UUID
	CourseID          uuid.UUID
	Status            string
	Progress          int
	SeatReleased      bool
	PayAmountCents    int64
	PayCurrency       *string
	PayMethod         *string
	PayStatus         *string
	PayTransactionRef *string
	PayRefundCents    int64
	StartDate         *time.Time
	CompletionDate    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func toEnrollmentDomain(m enrollmentModel) *domain.Enrollment {
	e := &domain.Enrollment{
		ID:             m.ID,
		StudentID:      m.StudentID,
		CourseID:       m.CourseID,
		Status:         domain.EnrollmentStatus(m.Status),
		Progress:       m.Progress,
		SeatReleased:   m.SeatReleased,
		StartDate:      m.StartDate,
		CompletionDate: m.CompletionDate,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	e.Payment.AmountCents = m.PayAmountCents
	e.Payment.RefundAmountCents = m.PayRefundCents
	e.Payment.TransactionRef = m.PayTransactionRef
	if m.PayCurrency != nil {
		e.Payment.Currency = *m.PayCurrency
	}
	if m.PayMethod != nil {
		e.Payment.Method = domain.PaymentMethod(*m.PayMethod)
	}
	if m.PayStatus != nil {
		e.Payment.PaymentStatus = domain.PaymentStatus(*m.PayStatus)
	}
	return e
}
