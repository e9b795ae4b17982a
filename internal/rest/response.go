package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}
	if response.Success {
		response.Data = data
	} else if apiErr, ok := data.(*APIError); ok {
		response.Error = apiErr
	}

	_ = json.NewEncoder(w).Encode(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	code := "INTERNAL_ERROR"
	message := err.Error()
	status := http.StatusInternalServerError

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message
		status = statusForDomainCode(domainErr.Code)
	} else if gwErr, ok := gateway.IsGatewayError(err); ok {
		code, message, status = mapGatewayError(gwErr)
	}

	respondWithJSON(w, status, &APIError{
		Code:    code,
		Message: message,
	})
}

func statusForDomainCode(code string) int {
	switch code {
	case domain.ErrCodeValidation, domain.ErrCodeInvalidAmount:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAuthorization:
		return http.StatusForbidden
	case domain.ErrCodeAlreadyCompleted, domain.ErrCodeCapacityExceeded,
		domain.ErrCodeInvalidTransition, domain.ErrCodeInvalidState,
		domain.ErrCodeAmountMismatch, domain.ErrCodeRefundExceedsBalance:
		return http.StatusConflict
	case domain.ErrCodeConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// mapGatewayError translates provider failures. Transient outages become
// 502 so clients and providers know to retry; declines are definitive.
func mapGatewayError(gwErr *gateway.Error) (code, message string, status int) {
	switch gwErr.Kind {
	case gateway.KindDeclined:
		return "PAYMENT_DECLINED", gwErr.Message, http.StatusPaymentRequired
	case gateway.KindConnection, gateway.KindAPIError:
		return "GATEWAY_UNAVAILABLE", "payment provider is temporarily unavailable", http.StatusBadGateway
	default:
		return "GATEWAY_ERROR", gwErr.Message, http.StatusBadGateway
	}
}

func validationError(message string) *domain.DomainError {
	return domain.NewValidationError(message)
}
