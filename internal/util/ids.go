package util

import gonanoid "github.com/matoous/go-nanoid/v2"

const idLength = 21

// NewID returns a random public identifier for flows and runs.
func NewID() string {
	return gonanoid.Must(idLength)
}

// IsID reports whether s has the shape of an identifier created by NewID.
func IsID(s string) bool {
	if len(s) != idLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
