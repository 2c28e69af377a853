package validators

import "strings"

// BearerToken extracts the token from an Authorization header. present is false when
// the header is absent; a present header with an empty token is the caller's error.
func BearerToken(header string) (token string, present bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	if strings.EqualFold(header, "bearer") {
		return "", true
	}
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		header = header[7:]
	}
	return strings.TrimSpace(header), true
}
