package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sweetshop/sweetshop-backend/pkg/config"
)

// clockSkew tolerates small drift between the minting and verifying hosts.
const clockSkew = 5 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	ErrSigningKeyMissing = errors.New("jwt secret is required")
	ErrIncompleteClaims  = errors.New("token missing user_id or jti")
)

// MintAccessToken signs an HS256 access token valid from now for the
// configured lifetime. An empty JTI is replaced by a random one.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	ttl, err := signingTTL(cfg)
	if err != nil {
		return "", err
	}
	switch {
	case payload.UserID == uuid.Nil:
		return "", errors.New("user id is required")
	case !payload.Role.IsValid():
		return "", fmt.Errorf("invalid user role %q", payload.Role)
	}

	id := strings.TrimSpace(payload.JTI)
	if id == "" {
		id = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

func signingTTL(cfg config.JWTConfig) (time.Duration, error) {
	if cfg.Secret == "" {
		return 0, ErrSigningKeyMissing
	}
	if cfg.Issuer == "" {
		return 0, errors.New("jwt issuer is required")
	}
	ttl := cfg.AccessTokenTTL()
	if ttl <= 0 {
		return 0, errors.New("jwt expiration minutes must be positive")
	}
	return ttl, nil
}

// ParseAccessToken verifies signature, issuer and expiry.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return verify(cfg, raw,
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
}

// ParseAccessTokenAllowExpired verifies signature and issuer but ignores
// time-based claims. Refresh and logout use it to locate the session of a
// lapsed access token.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return verify(cfg, raw, jwt.WithoutClaimsValidation())
}

func verify(cfg config.JWTConfig, raw string, opts ...jwt.ParserOption) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrSigningKeyMissing
	}
	opts = append(opts,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)

	claims := new(AccessTokenClaims)
	key := []byte(cfg.Secret)
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil }, opts...); err != nil {
		return nil, err
	}

	if claims.UserID == uuid.Nil || claims.ID == "" {
		return nil, ErrIncompleteClaims
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("token carries invalid role %q", claims.Role)
	}
	return claims, nil
}
