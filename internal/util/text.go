package util

import "strings"

// SanitizeText makes user supplied text safe to store in a TEXT column and
// to send as a mail body: invalid UTF-8 and NUL bytes are dropped and line
// endings are normalised to \n.
func SanitizeText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	sanitized = strings.ReplaceAll(sanitized, "\x00", "")
	return strings.ReplaceAll(sanitized, "\r\n", "\n")
}
