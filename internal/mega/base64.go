package mega

import (
	"encoding/base64"
	"fmt"
	"strings"
)

var b64Translate = strings.NewReplacer("-", "+", "_", "/")

// DecodeBase64URL decodes Mega's unpadded URL-safe base64. Commas are dropped
// first; padding is computed on the unpadded length before the alphabet swap.
func DecodeBase64URL(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, ",", "")
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	s = b64Translate.Replace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return b, nil
}

// EncodeBase64URL is the inverse of DecodeBase64URL.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
