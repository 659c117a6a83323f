package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorPriceUnavailable  ErrorCode = "PRICE_UNAVAILABLE"
	ErrorPaymentMismatch   ErrorCode = "PAYMENT_MISMATCH"
	ErrorVaultNotConfirmed ErrorCode = "VAULT_NOT_CONFIRMED"
	ErrorNoOrderFound      ErrorCode = "NO_ORDER_FOUND"
	ErrorUpstream          ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal          ErrorCode = "INTERNAL_ERROR"
)

// Error is the typed failure every usecase operation returns. Validation
// codes reject the request without side effects; ErrorInternal marks storage
// failures the caller cannot recover from.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
