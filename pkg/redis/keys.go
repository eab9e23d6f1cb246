package redis

import "strings"

// Keyspace namespaces every key the service writes.
type Keyspace struct {
	Namespace string
}

// DefaultKeyspace is used by clients built with New.
var DefaultKeyspace = Keyspace{Namespace: "sweetshop"}

func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.build("idempotency", scope, id)
}

func (k Keyspace) RateLimitKey(scope string) string {
	return k.build("rate_limit", scope)
}

// AccessSessionKey maps an access token jti to its refresh token.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.build("session", "access", accessID)
}

func (k Keyspace) build(parts ...string) string {
	ns := k.Namespace
	if ns == "" {
		ns = DefaultKeyspace.Namespace
	}
	var b strings.Builder
	b.WriteString(ns)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
