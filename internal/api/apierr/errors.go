package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/rps-ledger/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidSlot         = "INVALID_SLOT"
	CodeInvalidShape        = "INVALID_SHAPE"
	CodeEmptySecret         = "EMPTY_SECRET"
	CodeInvalidAddress      = "INVALID_ADDRESS"
	CodeUnknownMethod       = "UNKNOWN_METHOD"
	CodeInvalidArgument     = "INVALID_ARGUMENT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeContractNotFound    = "CONTRACT_NOT_FOUND"
	CodeTransactionRejected = "TRANSACTION_REJECTED"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Specific argument errors first; they all also match ErrInvalidArgument
	switch {
	case errors.Is(err, model.ErrContractNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeContractNotFound, "Contract not found"}}
	case errors.Is(err, model.ErrInvalidSlot):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidSlot, "Slot must be 1 or 2"}}
	case errors.Is(err, model.ErrInvalidShape):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidShape, "Shape must be Rock, Paper or Scissors"}}
	case errors.Is(err, model.ErrEmptySecret):
		return &httpError{http.StatusBadRequest, APIError{CodeEmptySecret, "Secret must not be empty"}}
	case errors.Is(err, model.ErrInvalidAddress):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidAddress, err.Error()}}
	case errors.Is(err, model.ErrUnknownMethod):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownMethod, err.Error()}}
	case errors.Is(err, model.ErrInvalidArgument):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidArgument, err.Error()}}
	case errors.Is(err, model.ErrTransactionRejected):
		return &httpError{http.StatusConflict, APIError{CodeTransactionRejected, err.Error()}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// ToError converts an error response back into the model error it was written for.
// Unknown codes yield nil.
func ToError(apiErr APIError) error {
	var kind error
	switch apiErr.Code {
	case CodeContractNotFound:
		kind = model.ErrContractNotFound
	case CodeInvalidSlot:
		return model.ErrInvalidSlot
	case CodeInvalidShape:
		return model.ErrInvalidShape
	case CodeEmptySecret:
		return model.ErrEmptySecret
	case CodeInvalidAddress:
		kind = model.ErrInvalidAddress
	case CodeUnknownMethod:
		kind = model.ErrUnknownMethod
	case CodeInvalidArgument, CodeInvalidRequest, CodeUnauthorized:
		kind = model.ErrInvalidArgument
	case CodeTransactionRejected:
		kind = model.ErrTransactionRejected
	default:
		return nil
	}
	if apiErr.Message == "" || apiErr.Message == kind.Error() {
		return kind
	}
	return &remoteError{kind: kind, message: apiErr.Message}
}

// remoteError carries the server's message while matching its kind
type remoteError struct {
	kind    error
	message string
}

func (e *remoteError) Error() string { return e.message }
func (e *remoteError) Unwrap() error { return e.kind }

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Caller account required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
