package validators

import (
	"net/url"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
)

// SanitizeString trims input and caps it at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && utf8.RuneCountInString(trimmed) > maxLen {
		return string([]rune(trimmed)[:maxLen])
	}
	return trimmed
}

// PathParam unescapes and sanitizes a route parameter, rejecting blanks.
func PathParam(raw, field string, maxLen int) (string, error) {
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	value := SanitizeString(raw, maxLen)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "missing path parameter").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}
