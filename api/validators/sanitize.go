package validators

import (
	"net/http"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
)

// ParseQueryText trims a free-text query parameter. Values longer than maxLen
// runes are rejected rather than cut, so the caller never matches on a prefix
// the client did not send.
func ParseQueryText(r *http.Request, key string, maxLen int) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter too long").WithDetails(map[string]any{"field": key, "max": maxLen})
	}
	return value, nil
}
