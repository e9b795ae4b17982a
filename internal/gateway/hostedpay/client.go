// Package hostedpay implements the gateway contract for the redirect-based
// provider: the server opens a hosted session, the payer pays on the
// provider's page, and completion is reported back through a browser
// callback, a server-to-server notification, or a caller verify.
package hostedpay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/courseloop/enrollment-gateway/internal/config"
	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
)

type Client struct {
	baseURL     string
	storeID     string
	storeSecret string
	httpClient  *http.Client
}

func New(cfg config.RedirectGatewayConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.StoreID == "" || cfg.StoreSecret == "" {
		return nil, domain.NewConfigurationError("redirect gateway credentials are not configured")
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		storeID:     cfg.StoreID,
		storeSecret: cfg.StoreSecret,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}, nil
}

type sessionRequest struct {
	StoreID     string `json:"store_id"`
	StoreSecret string `json:"store_passwd"`
	TranRef     string `json:"tran_ref"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	SuccessURL  string `json:"success_url"`
	FailURL     string `json:"fail_url"`
	CancelURL   string `json:"cancel_url"`
	IPNURL      string `json:"ipn_url"`
}

type sessionResponse struct {
	SessionKey string `json:"session_key"`
	GatewayURL string `json:"gateway_url"`
	Status     string `json:"status"`
	TranRef    string `json:"tran_ref"`
	// AmountCents is populated on status queries.
	AmountCents int64  `json:"amount_cents"`
	FailReason  string `json:"fail_reason,omitempty"`
}

type validationResponse struct {
	Status      string `json:"status"`
	TranRef     string `json:"tran_ref"`
	ValID       string `json:"val_id"`
	AmountCents int64  `json:"amount_cents"`
}

type refundResponse struct {
	RefundRef string `json:"refund_ref"`
	Status    string `json:"status"`
}

func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/sessions", c.baseURL)
	body := sessionRequest{
		StoreID:     c.storeID,
		StoreSecret: c.storeSecret,
		TranRef:     req.TransactionRef,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Description: req.Description,
		SuccessURL:  req.Callbacks.Success,
		FailURL:     req.Callbacks.Fail,
		CancelURL:   req.Callbacks.Cancel,
		IPNURL:      req.Callbacks.IPN,
	}

	resp, err := gateway.Call[sessionResponse](ctx, c.httpClient, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return nil, err
	}
	if resp.GatewayURL == "" {
		return nil, &gateway.Error{
			Kind:    gateway.KindAPIError,
			Code:    "missing_gateway_url",
			Message: "provider session response carried no hosted page URL",
		}
	}

	return &gateway.InitiateResult{
		TransactionRef: req.TransactionRef,
		RedirectURL:    resp.GatewayURL,
	}, nil
}

func (c *Client) RetrieveStatus(ctx context.Context, transactionRef string) (*gateway.StatusResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/sessions/%s?store_id=%s",
		c.baseURL, url.PathEscape(transactionRef), url.QueryEscape(c.storeID))

	resp, err := gateway.Call[sessionResponse](ctx, c.httpClient, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}

	return &gateway.StatusResult{
		Status:         mapSessionStatus(resp.Status),
		AmountCents:    resp.AmountCents,
		ProviderDetail: resp.FailReason,
	}, nil
}

// Validate authenticates a claimed outcome against the provider using the
// validation id the callback or notification carried.
func (c *Client) Validate(ctx context.Context, validationRef string) (*gateway.ValidationResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/validate?val_id=%s&store_id=%s",
		c.baseURL, url.QueryEscape(validationRef), url.QueryEscape(c.storeID))

	resp, err := gateway.Call[validationResponse](ctx, c.httpClient, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		if gwErr, ok := gateway.IsGatewayError(err); ok && gwErr.StatusCode == http.StatusNotFound {
			return &gateway.ValidationResult{Valid: false, RawStatus: "NOT_FOUND"}, nil
		}
		return nil, err
	}

	valid := resp.Status == "VALID" || resp.Status == "VALIDATED"
	return &gateway.ValidationResult{
		Valid:          valid,
		AmountCents:    resp.AmountCents,
		RawStatus:      resp.Status,
		TransactionRef: resp.TranRef,
	}, nil
}

func (c *Client) Refund(ctx context.Context, transactionRef string, amountCents int64) (*gateway.RefundResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/refunds", c.baseURL)
	body := map[string]any{
		"store_id":     c.storeID,
		"store_passwd": c.storeSecret,
		"tran_ref":     transactionRef,
		"amount_cents": amountCents,
	}

	resp, err := gateway.Call[refundResponse](ctx, c.httpClient, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return nil, err
	}

	return &gateway.RefundResult{RefundRef: resp.RefundRef}, nil
}

func mapSessionStatus(s string) gateway.Status {
	switch s {
	case "VALID", "VALIDATED", "SUCCESS":
		return gateway.StatusSucceeded
	case "PENDING", "UNATTEMPTED", "CREATED":
		return gateway.StatusPending
	default:
		return gateway.StatusFailed
	}
}

var _ gateway.Client = (*Client)(nil)
