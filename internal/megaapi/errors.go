package megaapi

import (
	"errors"
	"fmt"
)

// ErrNetwork is the category of every failure raised by this package.
var ErrNetwork = errors.New("mega_network_error")

var (
	ErrBadResponse    = fmt.Errorf("%w: bad_response", ErrNetwork)
	ErrHTTPStatus     = fmt.Errorf("%w: http_status", ErrNetwork)
	ErrNotFound       = fmt.Errorf("%w: not_found", ErrNetwork)
	ErrLoginRequired  = fmt.Errorf("%w: login_required", ErrNetwork)
	ErrQuotaExceeded  = fmt.Errorf("%w: quota_exceeded", ErrNetwork)
	ErrTemporarilyOff = fmt.Errorf("%w: temporarily_unavailable", ErrNetwork)
)

// APIError is a Mega API error code without a dedicated sentinel.
type APIError struct {
	Code int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mega_api_error:%d", e.Code)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNetwork
}

func mapAPIError(code int) error {
	switch code {
	case -9:
		return ErrNotFound
	case -17:
		return ErrQuotaExceeded
	case -18, -4, -3:
		return ErrTemporarilyOff
	case -11, -14, -16:
		return ErrLoginRequired
	default:
		return &APIError{Code: code}
	}
}
