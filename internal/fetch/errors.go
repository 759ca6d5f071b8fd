package fetch

import (
	"context"
	"errors"

	"github.com/Witriol/megafetch/internal/mega"
	"github.com/Witriol/megafetch/internal/megaapi"
	"github.com/Witriol/megafetch/internal/sink"
)

// ErrorCode maps a pipeline error to a stable snake_case code for history
// rows and CLI output.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, mega.ErrBadLink):
		return "bad_link"
	case errors.Is(err, mega.ErrBadKeyLength):
		return "bad_key_length"
	case errors.Is(err, mega.ErrDerive):
		return "bad_key"
	case errors.Is(err, mega.ErrAttrBadTag):
		return "attr_bad_tag"
	case errors.Is(err, mega.ErrAttrBadEncoding):
		return "attr_bad_encoding"
	case errors.Is(err, mega.ErrAttrMalformed):
		return "attr_malformed"
	case errors.Is(err, mega.ErrAttr):
		return "attr_error"
	case errors.Is(err, mega.ErrMACMismatch):
		return "mac_mismatch"
	case errors.Is(err, mega.ErrDecrypt):
		return "decrypt_failed"
	case errors.Is(err, mega.ErrInvalidEncoding):
		return "invalid_encoding"
	case errors.Is(err, ErrSizeMismatch):
		return "size_mismatch"
	case errors.Is(err, megaapi.ErrNotFound):
		return "not_found"
	case errors.Is(err, megaapi.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, megaapi.ErrTemporarilyOff):
		return "temporarily_unavailable"
	case errors.Is(err, megaapi.ErrLoginRequired):
		return "login_required"
	case errors.Is(err, megaapi.ErrBadResponse):
		return "bad_response"
	case errors.Is(err, megaapi.ErrHTTPStatus):
		return "http_status"
	case errors.Is(err, sink.ErrExists):
		return "file_exists"
	case errors.Is(err, sink.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, megaapi.ErrNetwork):
		return "network_error"
	default:
		return "fetch_failed"
	}
}

// IsNetwork reports whether err is a connection or API problem as opposed
// to a bad link or key.
func IsNetwork(err error) bool {
	return errors.Is(err, megaapi.ErrNetwork) && !mega.IsCrypto(err)
}

// Diagnosis is a one-line human explanation for err.
func Diagnosis(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, mega.ErrParse):
		return "bad link: not a Mega public file link"
	case mega.IsCrypto(err):
		return "bad link: the key does not decrypt this file (check for copy-paste errors)"
	case IsNetwork(err):
		return "bad connection: " + ErrorCode(err)
	default:
		return err.Error()
	}
}
