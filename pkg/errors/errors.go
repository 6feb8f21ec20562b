package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound           = "NOT_FOUND"
	CodeBadRequest         = "BAD_REQUEST"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeAlreadyTerminal    = "ALREADY_TERMINAL"
	CodePaymentFailed      = "PAYMENT_FAILED"
	CodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func NotFound(resource string, err error) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, err)
}

func BadRequest(message string, err error) *AppError {
	return New(CodeBadRequest, message, http.StatusBadRequest, err)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest, nil)
}

func InsufficientStock(requested, available int) *AppError {
	return New(CodeInsufficientStock,
		fmt.Sprintf("Only %d units available, %d requested", available, requested),
		http.StatusConflict, nil)
}

// Unauthorized is for requests without a valid session.
func Unauthorized(message string, err error) *AppError {
	return New(CodeUnauthenticated, message, http.StatusUnauthorized, err)
}

// NotPermitted is for an authenticated actor attempting an action reserved to another role or owner.
func NotPermitted(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusForbidden, nil)
}

func InvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition,
		fmt.Sprintf("Order cannot move from %s to %s", from, to),
		http.StatusConflict, nil)
}

func AlreadyTerminal(status string) *AppError {
	return New(CodeAlreadyTerminal,
		fmt.Sprintf("Order is already %s", status),
		http.StatusConflict, nil)
}

func PaymentFailed(reason string) *AppError {
	if reason == "" {
		reason = "declined"
	}
	return New(CodePaymentFailed, "Payment failed: "+reason, http.StatusPaymentRequired, nil)
}

func GatewayUnavailable(service string, err error) *AppError {
	return New(CodeGatewayUnavailable, service+" is unavailable, please retry", http.StatusServiceUnavailable, err)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict, nil)
}

func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, http.StatusInternalServerError, err)
}

func TooManyRequests(message string) *AppError {
	return New(CodeTooManyRequests, message, http.StatusTooManyRequests, nil)
}
