package mega

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	fileIDLen      = 8
	keyFragmentLen = 43
)

// ShareLink is a parsed public file link. Values are only produced by
// ParseLink and are never partially populated.
type ShareLink struct {
	Raw         string
	FileID      string
	KeyFragment string
}

// Accepted link grammars, tried in order. The key group also admits %20 so
// copy-paste artifacts can be stripped before the length check.
var linkGrammars = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://mega(?:\.co)?\.nz/[^#]*#!([a-z0-9_-]{8})!((?:[a-z0-9_-]|%20)+)$`),
	regexp.MustCompile(`(?i)^https?://mega\.nz/file/([a-z0-9_-]{8})#((?:[a-z0-9_-]|%20)+)$`),
}

var tokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseLink extracts the file id and key fragment from a share link.
func ParseLink(raw string) (ShareLink, error) {
	trimmed := strings.TrimSpace(raw)
	for _, re := range linkGrammars {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		id := m[1]
		key := strings.ReplaceAll(m[2], "%20", "")
		if len(id) != fileIDLen || len(key) != keyFragmentLen || !tokenRe.MatchString(key) {
			continue
		}
		return ShareLink{Raw: raw, FileID: id, KeyFragment: key}, nil
	}
	return ShareLink{}, ErrBadLink
}

// CanHandle is a cheap host check used before attempting a full parse.
func CanHandle(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "mega.nz" || host == "mega.co.nz"
}

// URL returns the canonical current-format link.
func (l ShareLink) URL() string {
	return "https://mega.nz/file/" + l.FileID + "#" + l.KeyFragment
}

// Redacted returns the canonical link with the key hidden. Use it for logs.
func (l ShareLink) Redacted() string {
	if l.FileID == "" {
		return ""
	}
	return "https://mega.nz/file/" + l.FileID + "#***"
}
