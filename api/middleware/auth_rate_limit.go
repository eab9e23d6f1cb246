package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sweetshop/sweetshop-backend/api/responses"
	"github.com/sweetshop/sweetshop-backend/pkg/config"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
	pkgredis "github.com/sweetshop/sweetshop-backend/pkg/redis"
)

// maxRateLimitBody caps how much of the body is buffered to read the email.
const maxRateLimitBody = 64 << 10

// AuthRateLimitPolicy throttles one auth endpoint per client IP and per
// submitted email within a fixed window.
type AuthRateLimitPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	EmailLimit int
}

// LoginRateLimit builds the policy guarding POST /api/auth/login.
func LoginRateLimit(cfg config.AuthRateLimitConfig) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{Name: "login", Window: cfg.LoginWindow, IPLimit: cfg.LoginIPLimit, EmailLimit: cfg.LoginEmailLimit}
}

// RegisterRateLimit builds the policy guarding POST /api/auth/register.
func RegisterRateLimit(cfg config.AuthRateLimitConfig) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{Name: "register", Window: cfg.RegisterWindow, IPLimit: cfg.RegisterIPLimit, EmailLimit: cfg.RegisterEmailLimit}
}

// rateLimitRule is one throttled dimension. key returns "" when the request
// carries nothing to count against.
type rateLimitRule struct {
	dimension string
	limit     int
	key       func(r *http.Request) string
}

func (p AuthRateLimitPolicy) rules() []rateLimitRule {
	var rules []rateLimitRule
	if p.IPLimit > 0 {
		rules = append(rules, rateLimitRule{dimension: "ip", limit: p.IPLimit, key: clientIP})
	}
	if p.EmailLimit > 0 {
		rules = append(rules, rateLimitRule{dimension: "email", limit: p.EmailLimit, key: emailDigest})
	}
	return rules
}

// AuthRateLimit rejects requests over any of the policy's limits with 429
// and a Retry-After of one window.
func AuthRateLimit(policy AuthRateLimitPolicy, limiter pkgredis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	rules := policy.rules()
	name := strings.ToLower(strings.TrimSpace(policy.Name))
	if name == "" {
		name = "auth"
	}

	return func(next http.Handler) http.Handler {
		if policy.Window <= 0 || len(rules) == 0 || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, rule := range rules {
				key := rule.key(r)
				if key == "" {
					continue
				}
				allowed, attempts, err := limiter.FixedWindowAllow(ctx, rule.dimension+":"+name+":"+key, int64(rule.limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if allowed {
					continue
				}

				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":         name,
						"dimension":      rule.dimension,
						"attempts":       attempts,
						"limit":          rule.limit,
						"window_seconds": int(policy.Window.Seconds()),
					}), "auth.rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP reads RemoteAddr, which chi's RealIP middleware has already
// rewritten from X-Forwarded-For or X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// emailDigest hashes the normalized "email" field of a JSON body and
// restores the body for the next handler.
func emailDigest(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
