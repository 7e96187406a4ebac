package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidTransition  Kind = "INVALID_TRANSITION"
	KindVersionConflict    Kind = "VERSION_CONFLICT"
	KindSessionExpired     Kind = "SESSION_EXPIRED"
	KindSessionInvalid     Kind = "SESSION_INVALID"
	KindAmountMismatch     Kind = "AMOUNT_MISMATCH"
	KindRefundNotAllowed   Kind = "REFUND_NOT_ALLOWED"
	KindGatewayUnavailable Kind = "GATEWAY_UNAVAILABLE"
	KindValidationFailed   Kind = "VALIDATION_FAILED"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindInternal           Kind = "INTERNAL"
)

// Stable codes returned to clients.
const (
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeOrderNotFound      = "ORDER_NOT_FOUND"
	CodeTableNotFound      = "TABLE_NOT_FOUND"
	CodePaymentNotFound    = "PAYMENT_NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeVersionConflict    = "VERSION_CONFLICT"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeSessionInvalid     = "SESSION_INVALID"
	CodeAmountMismatch     = "AMOUNT_MISMATCH"
	CodeRefundNotAllowed   = "REFUND_NOT_ALLOWED"
	CodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is the application error carried across service boundaries.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can write errors.Is(err, apperror.ErrVersionConflict).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindVersionConflict, KindRefundNotAllowed:
		return http.StatusConflict
	case KindSessionExpired, KindUnauthorized:
		return http.StatusUnauthorized
	case KindSessionInvalid:
		return http.StatusForbidden
	case KindAmountMismatch:
		return http.StatusUnprocessableEntity
	case KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	case KindValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry after re-reading state.
func (e *Error) Retryable() bool {
	return e.Kind == KindVersionConflict || e.Kind == KindGatewayUnavailable
}

func New(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Kind-only sentinels for errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrVersionConflict    = &Error{Kind: KindVersionConflict}
	ErrSessionExpired     = &Error{Kind: KindSessionExpired}
	ErrSessionInvalid     = &Error{Kind: KindSessionInvalid}
	ErrAmountMismatch     = &Error{Kind: KindAmountMismatch}
	ErrRefundNotAllowed   = &Error{Kind: KindRefundNotAllowed}
	ErrGatewayUnavailable = &Error{Kind: KindGatewayUnavailable}
	ErrValidationFailed   = &Error{Kind: KindValidationFailed}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}

	ErrSessionNotFound = &Error{Kind: KindNotFound, Code: CodeSessionNotFound}
	ErrOrderNotFound   = &Error{Kind: KindNotFound, Code: CodeOrderNotFound}
	ErrTableNotFound   = &Error{Kind: KindNotFound, Code: CodeTableNotFound}
	ErrPaymentNotFound = &Error{Kind: KindNotFound, Code: CodePaymentNotFound}
)

func SessionNotFound() *Error {
	return New(KindNotFound, CodeSessionNotFound, "Session not found", nil)
}

func OrderNotFound(orderId string) *Error {
	return New(KindNotFound, CodeOrderNotFound, fmt.Sprintf("Order %s not found", orderId), nil)
}

func TableNotFound() *Error {
	return New(KindNotFound, CodeTableNotFound, "Table not found", nil)
}

func PaymentNotFound(gatewayPaymentId string) *Error {
	return New(KindNotFound, CodePaymentNotFound, fmt.Sprintf("Payment %s not found", gatewayPaymentId), nil)
}

func InvalidTransition(from, to string) *Error {
	return New(KindInvalidTransition, CodeInvalidTransition, fmt.Sprintf("Cannot move order from %s to %s", from, to), nil)
}

func VersionConflict(orderId string) *Error {
	return New(KindVersionConflict, CodeVersionConflict, fmt.Sprintf("Order %s was modified concurrently, refresh and retry", orderId), nil)
}

func SessionExpired() *Error {
	return New(KindSessionExpired, CodeSessionExpired, "Session has expired, please scan the table code again", nil)
}

func SessionInvalid(reason string) *Error {
	return New(KindSessionInvalid, CodeSessionInvalid, reason, nil)
}

func AmountMismatch() *Error {
	return New(KindAmountMismatch, CodeAmountMismatch, "Payment amount does not match the order total", nil)
}

func RefundNotAllowed(status string) *Error {
	return New(KindRefundNotAllowed, CodeRefundNotAllowed, fmt.Sprintf("Refund not allowed for payment in status %s", status), nil)
}

func GatewayUnavailable(err error) *Error {
	return New(KindGatewayUnavailable, CodeGatewayUnavailable, "Payment gateway unavailable, please retry", err)
}

func Validation(message string) *Error {
	return New(KindValidationFailed, CodeValidationFailed, message, nil)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, CodeUnauthorized, message, nil)
}

func Internal(err error) *Error {
	return New(KindInternal, CodeInternal, "Internal server error", err)
}

// From returns err as *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
