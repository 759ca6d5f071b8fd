package mega

import (
	"errors"
	"fmt"
)

// Error categories. Specific errors below wrap exactly one of them so callers
// can match either the category or the precise failure with errors.Is.
var (
	ErrParse           = errors.New("mega_parse_error")
	ErrInvalidEncoding = errors.New("mega_invalid_encoding")
	ErrDerive          = errors.New("mega_derive_error")
	ErrAttr            = errors.New("mega_attr_error")
	ErrDecrypt         = errors.New("mega_decrypt_error")
)

var (
	ErrBadLink         = fmt.Errorf("%w: bad_link", ErrParse)
	ErrBadKeyLength    = fmt.Errorf("%w: bad_key_length", ErrDerive)
	ErrAttrBadEncoding = fmt.Errorf("%w: bad_encoding", ErrAttr)
	ErrAttrBadTag      = fmt.Errorf("%w: bad_tag", ErrAttr)
	ErrAttrMalformed   = fmt.Errorf("%w: malformed", ErrAttr)
	ErrMACMismatch     = fmt.Errorf("%w: mac_mismatch", ErrDecrypt)
)

// IsCrypto reports whether err comes from link handling or decryption rather
// than from the network. A wrong key pasted into a link ends up here.
func IsCrypto(err error) bool {
	return errors.Is(err, ErrParse) ||
		errors.Is(err, ErrInvalidEncoding) ||
		errors.Is(err, ErrDerive) ||
		errors.Is(err, ErrAttr) ||
		errors.Is(err, ErrDecrypt)
}
