// Package intentpay implements the gateway contract for the intent-based
// provider: the server opens a payment intent, the client authorizes it
// with the returned token, and the server confirms the intent's terminal
// status afterwards.
package intentpay

import (
	"context"
	"fmt"
	"net/http"

	"github.com/courseloop/enrollment-gateway/internal/config"
	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(cfg config.IntentGatewayConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, domain.NewConfigurationError("intent gateway credentials are not configured")
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}, nil
}

type intentRequest struct {
	Reference   string            `json:"reference"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type intentResponse struct {
	IntentID    string `json:"intent_id"`
	Reference   string `json:"reference"`
	ClientToken string `json:"client_token"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

type refundRequest struct {
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount_cents"`
}

type refundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	url := fmt.Sprintf("%s/v1/intents", c.baseURL)
	body := intentRequest{
		Reference:   req.TransactionRef,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	resp, err := gateway.Call[intentResponse](ctx, c.httpClient, http.MethodPost, url, c.headers(), body)
	if err != nil {
		return nil, err
	}

	return &gateway.InitiateResult{
		TransactionRef: req.TransactionRef,
		ClientToken:    resp.ClientToken,
	}, nil
}

func (c *Client) RetrieveStatus(ctx context.Context, transactionRef string) (*gateway.StatusResult, error) {
	url := fmt.Sprintf("%s/v1/intents/%s", c.baseURL, transactionRef)

	resp, err := gateway.Call[intentResponse](ctx, c.httpClient, http.MethodGet, url, c.headers(), nil)
	if err != nil {
		return nil, err
	}

	return &gateway.StatusResult{
		Status:         mapIntentStatus(resp.Status),
		AmountCents:    resp.AmountCents,
		ProviderDetail: resp.ErrorDetail,
	}, nil
}

// Validate for the intent flow is a status retrieval: the intent id is
// its own proof of validation.
func (c *Client) Validate(ctx context.Context, validationRef string) (*gateway.ValidationResult, error) {
	st, err := c.RetrieveStatus(ctx, validationRef)
	if err != nil {
		if gwErr, ok := gateway.IsGatewayError(err); ok && gwErr.StatusCode == http.StatusNotFound {
			return &gateway.ValidationResult{Valid: false, RawStatus: "NOT_FOUND"}, nil
		}
		return nil, err
	}
	return &gateway.ValidationResult{
		Valid:          st.Status == gateway.StatusSucceeded,
		AmountCents:    st.AmountCents,
		RawStatus:      string(st.Status),
		TransactionRef: validationRef,
	}, nil
}

func (c *Client) Refund(ctx context.Context, transactionRef string, amountCents int64) (*gateway.RefundResult, error) {
	url := fmt.Sprintf("%s/v1/refunds", c.baseURL)
	body := refundRequest{
		Reference:   transactionRef,
		AmountCents: amountCents,
	}

	resp, err := gateway.Call[refundResponse](ctx, c.httpClient, http.MethodPost, url, c.headers(), body)
	if err != nil {
		return nil, err
	}

	return &gateway.RefundResult{RefundRef: resp.RefundID}, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

func mapIntentStatus(s string) gateway.Status {
	switch s {
	case "succeeded":
		return gateway.StatusSucceeded
	case "requires_payment_method", "requires_confirmation", "processing", "pending":
		return gateway.StatusPending
	default:
		return gateway.StatusFailed
	}
}

var _ gateway.Client = (*Client)(nil)
