package validators

import (
	"errors"
	"strings"
)

var ErrInvalidToken = errors.New("invalid auth token")

// BearerToken extracts the token from an Authorization header. It reports
// false when no header was sent and ErrInvalidToken when it is malformed.
func BearerToken(header string) (string, bool, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false, nil
	}
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", true, ErrInvalidToken
	}
	token := strings.TrimSpace(header[7:])
	if token == "" {
		return "", true, ErrInvalidToken
	}
	return token, true, nil
}
