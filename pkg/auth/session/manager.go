package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweetshop/sweetshop-backend/pkg/config"
	redisclient "github.com/sweetshop/sweetshop-backend/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrMissingAccessID     = errors.New("access id is required")
)

// Store is the key/value surface sessions are persisted in.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what request authentication needs to reject
// access tokens whose session was revoked.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager ties each access token id (the JWT jti) to one refresh token.
// Only a SHA-256 digest of the refresh token is stored, so reading the
// store does not yield usable credentials. Missing entries mean the
// session ended.
type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, cfg config.JWTConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	refreshTTL, accessTTL := cfg.RefreshTokenTTL(), cfg.AccessTokenTTL()
	switch {
	case refreshTTL <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case refreshTTL <= accessTTL:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", refreshTTL, accessTTL)
	}
	return &Manager{store: store, ttl: refreshTTL}, nil
}

// Generate opens a session for accessID and returns its refresh token.
func (m *Manager) Generate(ctx context.Context, accessID string) (string, error) {
	key, err := m.key(accessID)
	if err != nil {
		return "", err
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, key, digest(token), m.ttl); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}

// Rotate exchanges a refresh token for a new session. The old session is
// removed so the same refresh token cannot be presented twice.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, refreshToken string) (accessID, token string, err error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", "", ErrInvalidRefreshToken
	}
	key, err := m.key(oldAccessID)
	if err != nil {
		return "", "", ErrInvalidRefreshToken
	}

	stored, found, err := m.lookup(ctx, key)
	switch {
	case err != nil:
		return "", "", err
	case !found:
		return "", "", ErrInvalidRefreshToken
	case subtle.ConstantTimeCompare([]byte(stored), []byte(digest(refreshToken))) != 1:
		return "", "", ErrInvalidRefreshToken
	}

	if err := m.store.Del(ctx, key); err != nil {
		return "", "", fmt.Errorf("dropping rotated session: %w", err)
	}
	accessID = NewAccessID()
	token, err = m.Generate(ctx, accessID)
	if err != nil {
		return "", "", err
	}
	return accessID, token, nil
}

// Revoke ends the session tied to accessID. Unknown ids are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	key, err := m.key(accessID)
	if err != nil {
		return false, err
	}
	_, found, err := m.lookup(ctx, key)
	return found, err
}

func (m *Manager) key(accessID string) (string, error) {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return "", ErrMissingAccessID
	}
	return m.store.AccessSessionKey(accessID), nil
}

func (m *Manager) lookup(ctx context.Context, key string) (string, bool, error) {
	value, err := m.store.Get(ctx, key)
	if redisclient.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// NewAccessID returns a random token id for the JWT jti claim.
func NewAccessID() string {
	return uuid.NewString()
}

func newRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
