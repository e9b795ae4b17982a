package rest

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/courseloop/enrollment-gateway/internal/domain"
)

// Identity headers set by the upstream auth proxy. Authentication is
// external; this layer only checks capability against the claimed
// identity.
const (
	studentHeader = "X-Student-ID"
	adminHeader   = "X-Admin-ID"
)

type AccessPolicy interface {
	IsOwner(ctx context.Context, actorID string, enrollment *domain.Enrollment) bool
	IsAdmin(ctx context.Context, actorID string) bool
}

// HeaderIdentityPolicy is the default policy: the proxy has already
// authenticated the caller, so ownership reduces to an ID comparison
// and admin to header presence.
type HeaderIdentityPolicy struct{}

func (HeaderIdentityPolicy) IsOwner(_ context.Context, actorID string, enrollment *domain.Enrollment) bool {
	id, err := uuid.Parse(actorID)
	if err != nil || enrollment == nil {
		return false
	}
	return enrollment.StudentID == id
}

func (HeaderIdentityPolicy) IsAdmin(_ context.Context, actorID string) bool {
	return actorID != ""
}

// requireOwner loads the enrollment and checks the X-Student-ID caller
// owns it. Admins pass regardless.
func (h *Handler) requireOwner(r *http.Request, enrollmentID uuid.UUID) (*domain.Enrollment, error) {
	enrollment, err := h.queries.GetEnrollment(r.Context(), enrollmentID)
	if err != nil {
		return nil, err
	}
	if h.access.IsAdmin(r.Context(), r.Header.Get(adminHeader)) {
		return enrollment, nil
	}
	if !h.access.IsOwner(r.Context(), r.Header.Get(studentHeader), enrollment) {
		return nil, domain.NewAuthorizationError("caller does not own this enrollment")
	}
	return enrollment, nil
}
