package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/sweetshop/sweetshop-backend/pkg/enums"
)

type principalKey struct{}

type requestIDKey struct{}

// Principal is the authenticated caller attached to the request by Auth.
type Principal struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	SessionID string
}

// IsAdmin reports whether the caller may administer the catalog.
func (p Principal) IsAdmin() bool {
	return p.Role == enums.UserRoleAdmin
}

// WithPrincipal stores p on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller set by Auth. ok is false on
// unauthenticated routes.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != uuid.Nil
}

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
