package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type providerErrorResponse struct {
	Err     string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Call sends a JSON request to a provider and decodes the JSON response.
// Non-2xx responses are mapped onto *Error by status code; transport
// failures (DNS, refused connection, exceeded deadline) become
// KindConnection so callers can treat them as retryable.
func Call[Resp any](ctx context.Context, client *http.Client, method, url string, headers map[string]string, reqBody any) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, newConnectionError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, mapProviderError(resp.StatusCode, body)
	}

	var providerResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&providerResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &providerResp, nil
}

func mapProviderError(statusCode int, body []byte) *Error {
	var parsed providerErrorResponse
	_ = json.Unmarshal(body, &parsed)

	code := parsed.Code
	if code == "" {
		code = parsed.Err
	}
	message := parsed.Message
	if message == "" {
		message = string(body)
	}

	kind := KindInvalidRequest
	switch {
	case statusCode >= 500:
		kind = KindAPIError
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		kind = KindAuth
	case statusCode == http.StatusPaymentRequired || code == "card_declined" || code == "insufficient_funds":
		kind = KindDeclined
	}

	return &Error{
		Kind:       kind,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}
