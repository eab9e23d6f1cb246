package validators

import (
	"errors"
	"net/http"
	"strings"
)

var ErrInvalidToken = errors.New("invalid auth token")

const bearerScheme = "bearer"

// ParseBearerToken extracts the token from an Authorization header value.
// The "Bearer" scheme prefix is optional.
func ParseBearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	switch {
	case len(parts) == 1 && !strings.EqualFold(parts[0], bearerScheme):
		return parts[0], nil
	case len(parts) == 2 && strings.EqualFold(parts[0], bearerScheme):
		return parts[1], nil
	default:
		return "", ErrInvalidToken
	}
}

func BearerToken(r *http.Request) (string, error) {
	return ParseBearerToken(r.Header.Get("Authorization"))
}
