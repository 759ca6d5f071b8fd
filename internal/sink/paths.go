package sink

import (
	"errors"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("sink_invalid_name")

// cleanName reduces a decrypted or user supplied file name to a single safe
// path element. Names come from the uploader, so separators are never trusted.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	base := filepath.Base(name)
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", ErrInvalidName
	}
	return base, nil
}
