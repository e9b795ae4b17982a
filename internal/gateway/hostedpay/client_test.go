package hostedpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/courseloop/enrollment-gateway/internal/config"
	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(config.RedirectGatewayConfig{
		BaseURL:     srv.URL,
		StoreID:     "store-1",
		StoreSecret: "secret",
		ConnTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(config.RedirectGatewayConfig{BaseURL: "http://gateway", StoreID: "store-1"})
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeConfiguration))
}

func TestClient_Initiate_ReturnsRedirectURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions", r.URL.Path)

		var req sessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "store-1", req.StoreID)
		assert.NotEmpty(t, req.IPNURL)

		json.NewEncoder(w).Encode(sessionResponse{
			SessionKey: "sess-1",
			GatewayURL: "https://pay.example.com/sess-1",
			Status:     "CREATED",
		})
	})

	res, err := c.Initiate(context.Background(), gateway.InitiateRequest{
		TransactionRef: "txn-1",
		AmountCents:    29900,
		Currency:       "USD",
		Callbacks: gateway.CallbackURLs{
			Success: "https://api.example.com/payments/redirect/callback/success",
			Fail:    "https://api.example.com/payments/redirect/callback/fail",
			Cancel:  "https://api.example.com/payments/redirect/callback/cancel",
			IPN:     "https://api.example.com/payments/redirect/ipn",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/sess-1", res.RedirectURL)
}

func TestClient_Initiate_MissingURLIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sessionResponse{Status: "FAILED"})
	})

	_, err := c.Initiate(context.Background(), gateway.InitiateRequest{
		TransactionRef: "txn-1", AmountCents: 100, Currency: "USD",
	})
	gwErr, ok := gateway.IsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, gateway.KindAPIError, gwErr.Kind)
}

func TestClient_Validate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/validate", r.URL.Path)
		assert.Equal(t, "val-1", r.URL.Query().Get("val_id"))
		assert.Equal(t, "store-1", r.URL.Query().Get("store_id"))

		json.NewEncoder(w).Encode(validationResponse{
			Status:      "VALIDATED",
			TranRef:     "txn-1",
			ValID:       "val-1",
			AmountCents: 29900,
		})
	})

	v, err := c.Validate(context.Background(), "val-1")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, int64(29900), v.AmountCents)
	assert.Equal(t, "txn-1", v.TransactionRef)
}

func TestClient_Validate_InvalidAndNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(validationResponse{Status: "INVALID_TRANSACTION"})
	})
	v, err := c.Validate(context.Background(), "val-bad")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "not_found"})
	})
	v, err = c.Validate(context.Background(), "val-missing")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, "NOT_FOUND", v.RawStatus)
}

func TestClient_Refund(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/refunds", r.URL.Path)
		json.NewEncoder(w).Encode(refundResponse{RefundRef: "rf-1", Status: "SUCCESS"})
	})

	res, err := c.Refund(context.Background(), "txn-1", 5000)
	require.NoError(t, err)
	assert.Equal(t, "rf-1", res.RefundRef)
}

func TestClient_TimeoutIsRetryable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.RetrieveStatus(context.Background(), "txn-1")
	gwErr, ok := gateway.IsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, gateway.KindConnection, gwErr.Kind)
	assert.True(t, gwErr.IsRetryable())
}
