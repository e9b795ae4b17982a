// Package gateway defines the contract every payment provider client
// implements, plus shared error types and the webhook signature validator.
package gateway

import (
	"context"

	"github.com/courseloop/enrollment-gateway/internal/domain"
)

// Status is a provider payment status normalised across providers.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusPending   Status = "PENDING"
	StatusFailed    Status = "FAILED"
)

// CallbackURLs are the return points a hosted payment page sends the
// payer (and its server-to-server notifications) back to.
type CallbackURLs struct {
	Success string
	Fail    string
	Cancel  string
	IPN     string
}

// InitiateRequest starts a payment attempt with a provider. TransactionRef
// is the caller-generated correlation id for the attempt.
type InitiateRequest struct {
	TransactionRef string
	AmountCents    int64
	Currency       string
	Description    string
	Metadata       map[string]string
	Callbacks      CallbackURLs
}

// InitiateResult carries whichever handle the provider flow needs:
// a client token for intent flows, a redirect URL for hosted flows.
type InitiateResult struct {
	TransactionRef string
	ClientToken    string
	RedirectURL    string
}

// StatusResult is a provider's answer to a status retrieval.
type StatusResult struct {
	Status         Status
	AmountCents    int64
	ProviderDetail string
}

// ValidationResult is a provider's answer to authenticating a claimed
// outcome. RawStatus keeps the provider's own wording for diagnostics;
// a RawStatus of "NOT_FOUND" with Valid=false means the provider could
// not locate the transaction at all.
type ValidationResult struct {
	Valid          bool
	AmountCents    int64
	RawStatus      string
	TransactionRef string
}

type RefundResult struct {
	RefundRef string
}

// Client wraps one external payment provider. All methods are safe to
// retry; implementations use bounded timeouts and return *Error with
// KindConnection when the provider is unreachable.
type Client interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	RetrieveStatus(ctx context.Context, transactionRef string) (*StatusResult, error)
	Validate(ctx context.Context, validationRef string) (*ValidationResult, error)
	Refund(ctx context.Context, transactionRef string, amountCents int64) (*RefundResult, error)
}

// Registry hands out the client for a payment method. Clients are
// constructor-injected at startup; nothing here is mutated afterwards.
type Registry struct {
	clients map[domain.PaymentMethod]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[domain.PaymentMethod]Client)}
}

func (r *Registry) Register(method domain.PaymentMethod, client Client) {
	r.clients[method] = client
}

func (r *Registry) ClientFor(method domain.PaymentMethod) (Client, error) {
	client, ok := r.clients[method]
	if !ok {
		return nil, domain.NewValidationError("no gateway configured for method " + string(method))
	}
	return client, nil
}
