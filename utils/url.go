package utils

import (
	"net/url"
	"strings"
)

// EncodeURLWithSpaces re-encodes a URL whose path or query may contain raw
// spaces. Entase photo URLs sometimes arrive unencoded, which net/http
// rejects.
func EncodeURLWithSpaces(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	encoded := u.Scheme + "://" + u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		encoded += "?" + strings.ReplaceAll(u.RawQuery, " ", "%20")
	}
	return encoded, nil
}
