package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/k-weiss/tokenpool/internal/pool"
	"github.com/k-weiss/tokenpool/internal/remote"
)

// Error codes returned in API responses
const (
	ErrCodePoolExhausted    = "POOL_EXHAUSTED"
	ErrCodePoolShuttingDown = "POOL_SHUTTING_DOWN"
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// APIError represents a structured API error response
type APIError struct {
	Code    string                 `json:"error_code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeAPIError writes a structured error response with appropriate HTTP status
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr APIError
	statusCode := http.StatusInternalServerError

	var exh *pool.ExhaustedError
	switch {
	case errors.As(err, &exh):
		apiErr = APIError{
			Code:    ErrCodePoolExhausted,
			Message: err.Error(),
			Details: map[string]interface{}{"stats": exh.Stats},
		}
		statusCode = http.StatusServiceUnavailable

	case errors.Is(err, pool.ErrExhausted):
		apiErr = APIError{
			Code:    ErrCodePoolExhausted,
			Message: err.Error(),
		}
		statusCode = http.StatusServiceUnavailable

	case errors.Is(err, pool.ErrShuttingDown):
		apiErr = APIError{
			Code:    ErrCodePoolShuttingDown,
			Message: err.Error(),
		}
		statusCode = http.StatusServiceUnavailable

	case errors.Is(err, remote.ErrAuthenticationFailed):
		apiErr = APIError{
			Code:    ErrCodeAuthFailed,
			Message: err.Error(),
		}
		statusCode = http.StatusBadGateway

	default:
		apiErr = APIError{
			Code:    ErrCodeInternalError,
			Message: err.Error(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErr)
}

// writeValidationError writes a 400 Bad Request with validation details
func writeValidationError(w http.ResponseWriter, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(APIError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
		Details: details,
	})
}

// writeUnauthorizedError writes a 401 Unauthorized error
func writeUnauthorizedError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(APIError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	})
}
