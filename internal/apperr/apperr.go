package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	KindValidation    = "validation"
	KindUnauthorized  = "unauthenticated"
	KindForbidden     = "forbidden"
	KindNotFound      = "not_found"
	KindConflict      = "conflict"
	KindWindowExpired = "window_expired"
	KindUpstream      = "upstream"
	KindInternal      = "internal"
)

const (
	CodeItemNotFound         = "ERR_ORDER_001"
	CodeNotAuthorized        = "ERR_ORDER_002"
	CodeInvalidTransition    = "ERR_ORDER_003"
	CodeAlreadyConfirmed     = "ERR_ORDER_004"
	CodeBuyerNotAcknowledged = "ERR_ORDER_005"
	CodeWindowExpired        = "ERR_ORDER_006"
	CodeConcurrentUpdate     = "ERR_ORDER_007"
	CodePayoutsNotEnabled    = "ERR_ORDER_008"
	CodeTransferFailed       = "ERR_ORDER_009"
	CodeInvalidInput         = "ERR_ORDER_010"
	CodeUnauthenticated      = "ERR_AUTH_001"
	CodeInternal             = "ERR_INTERNAL"
)

// Error is a classified error carrying a stable code for API consumers.
type Error struct {
	Code    string
	kind    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() string { return e.kind }

// Is matches on code so wrapped instances compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, kind: e.kind, Message: e.Message, Err: cause}
}

// WithMessage returns a copy of e with a more specific human message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, kind: e.kind, Message: msg, Err: e.Err}
}

func newError(code, kind, msg string) *Error {
	return &Error{Code: code, kind: kind, Message: msg}
}

var (
	ErrItemNotFound         = newError(CodeItemNotFound, KindNotFound, "order item or pickup not found")
	ErrNotAuthorized        = newError(CodeNotAuthorized, KindForbidden, "not authorized for this item")
	ErrInvalidTransition    = newError(CodeInvalidTransition, KindValidation, "invalid status transition")
	ErrAlreadyConfirmed     = newError(CodeAlreadyConfirmed, KindConflict, "already confirmed")
	ErrBuyerNotAcknowledged = newError(CodeBuyerNotAcknowledged, KindValidation, "buyer has not acknowledged receipt yet")
	ErrWindowExpired        = newError(CodeWindowExpired, KindWindowExpired, "confirmation window expired, both parties must confirm again")
	ErrConcurrentUpdate     = newError(CodeConcurrentUpdate, KindConflict, "item was updated by another request, please retry")
	ErrPayoutsNotEnabled    = newError(CodePayoutsNotEnabled, KindValidation, "vendor payouts are not enabled")
	ErrTransferFailed       = newError(CodeTransferFailed, KindUpstream, "payout transfer failed, please retry")
	ErrInvalidInput         = newError(CodeInvalidInput, KindValidation, "invalid input")
	ErrUnauthenticated      = newError(CodeUnauthenticated, KindUnauthorized, "authentication required")
)

// Kind classifies any error, including plain context errors.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return KindInternal
	}
}

// Code returns the stable code for err, ERR_INTERNAL when unclassified.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Message returns the human message for err without internal detail.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

var kindToStatus = map[string]int{
	KindValidation:    http.StatusBadRequest,
	KindUnauthorized:  http.StatusUnauthorized,
	KindForbidden:     http.StatusForbidden,
	KindNotFound:      http.StatusNotFound,
	KindConflict:      http.StatusConflict,
	KindWindowExpired: http.StatusConflict,
	KindUpstream:      http.StatusBadGateway,
	"timeout":         http.StatusGatewayTimeout,
	"canceled":        http.StatusRequestTimeout,
}

func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[Kind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}
