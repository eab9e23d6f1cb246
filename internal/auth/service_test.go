package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sweetshop/sweetshop-backend/internal/users"
	pkgAuth "github.com/sweetshop/sweetshop-backend/pkg/auth"
	"github.com/sweetshop/sweetshop-backend/pkg/auth/session"
	"github.com/sweetshop/sweetshop-backend/pkg/config"
	"github.com/sweetshop/sweetshop-backend/pkg/db/models"
	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
	"github.com/sweetshop/sweetshop-backend/pkg/security"
)

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryStore) AccessSessionKey(accessID string) string {
	return "session:access:" + accessID
}

var testJWT = config.JWTConfig{
	Secret:                 "secret",
	Issuer:                 "sweetshop",
	ExpirationMinutes:      30,
	RefreshTokenTTLMinutes: 600,
}

type testEnv struct {
	svc      Service
	sessions *session.Manager
	repo     *users.Repository
}

func newTestEnv(t *testing.T, authCfg config.AuthConfig) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:auth_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.User{}))

	manager, err := session.NewManager(newMemoryStore(), testJWT)
	require.NoError(t, err)

	repo := users.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: manager,
		Hasher: security.NewHasher(config.PasswordConfig{
			ArgonMemoryKB:    64,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		}),
		JWTConfig:  testJWT,
		AuthConfig: authCfg,
	})
	require.NoError(t, err)
	return &testEnv{svc: svc, sessions: manager, repo: repo}
}

func TestRegisterIssuesSession(t *testing.T) {
	env := newTestEnv(t, config.AuthConfig{AdminEmail: "admin@sweetshop.com"})
	ctx := context.Background()

	resp, err := env.svc.Register(ctx, RegisterRequest{
		Email:    "Buyer@Example.com",
		Password: "secret1",
		Name:     " Buyer ",
	})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", resp.User.Email)
	assert.Equal(t, "Buyer", resp.User.Name)
	assert.Equal(t, enums.UserRoleUser, resp.User.Role)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.False(t, claims.IsAdmin())

	ok, err := env.sessions.HasSession(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, config.AuthConfig{})
	ctx := context.Background()

	_, err := env.svc.Register(ctx, RegisterRequest{Email: "dup@example.com", Password: "secret1", Name: "One"})
	require.NoError(t, err)

	_, err = env.svc.Register(ctx, RegisterRequest{Email: "DUP@example.com", Password: "secret2", Name: "Two"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestRegisterValidatesInput(t *testing.T) {
	env := newTestEnv(t, config.AuthConfig{})
	ctx := context.Background()

	cases := []RegisterRequest{
		{Email: "", Password: "secret1", Name: "A"},
		{Email: "a@example.com", Password: "short", Name: "A"},
		{Email: "a@example.com", Password: "secret1", Name: "  "},
	}
	for _, tc := range cases {
		_, err := env.svc.Register(ctx, tc)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	}
}

func TestRegisterAdminRoleRules(t *testing.T) {
	ctx := context.Background()

	closed := newTestEnv(t, config.AuthConfig{AdminEmail: "admin@sweetshop.com"})
	resp, err := closed.svc.Register(ctx, RegisterRequest{Email: "eve@example.com", Password: "secret1", Name: "Eve", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleUser, resp.User.Role)

	resp, err = closed.svc.Register(ctx, RegisterRequest{Email: "ADMIN@sweetshop.com", Password: "secret1", Name: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleAdmin, resp.User.Role)

	open := newTestEnv(t, config.AuthConfig{AllowAdminSignup: true})
	resp, err = open.svc.Register(ctx, RegisterRequest{Email: "ops@example.com", Password: "secret1", Name: "Ops", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleAdmin, resp.User.Role)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, config.AuthConfig{})
	ctx := context.Background()

	registered, err := env.svc.Register(ctx, RegisterRequest{Email: "buyer@example.com", Password: "secret1", Name: "Buyer"})
	require.NoError(t, err)

	resp, err := env.svc.Login(ctx, LoginRequest{Email: "BUYER@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, resp.User.ID)
	assert.NotNil(t, resp.User.LastLoginAt)
	assert.NotEqual(t, registered.RefreshToken, resp.RefreshToken)

	stored, err := env.repo.FindByID(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, config.AuthConfig{})
	ctx := context.Background()

	_, err := env.svc.Register(ctx, RegisterRequest{Email: "buyer@example.com", Password: "secret1", Name: "Buyer"})
	require.NoError(t, err)

	for _, req := range []LoginRequest{
		{Email: "buyer@example.com", Password: "wrong-pass"},
		{Email: "nobody@example.com", Password: "secret1"},
		{Email: "", Password: ""},
	} {
		_, err := env.svc.Login(ctx, req)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
		assert.Equal(t, invalidCredentialsMessage, pkgerrors.As(err).Message())
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t, config.AuthConfig{})
	ctx := context.Background()

	resp, err := env.svc.Register(ctx, RegisterRequest{Email: "buyer@example.com", Password: "secret1", Name: "Buyer"})
	require.NoError(t, err)

	profile, err := env.svc.Profile(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", profile.Email)

	_, err = env.svc.Profile(ctx, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

type countingHasher struct {
	passwordHasher
	verifies int
}

func (c *countingHasher) Verify(password, encoded string) (bool, error) {
	c.verifies++
	return c.passwordHasher.Verify(password, encoded)
}

func TestLoginVerifiesPasswordForUnknownEmail(t *testing.T) {
	env := newTestEnv(t, config.AuthConfig{})
	hasher := &countingHasher{passwordHasher: security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1})}
	svc, err := NewService(ServiceParams{
		UserRepo:       env.repo,
		SessionManager: env.sessions,
		Hasher:         hasher,
		JWTConfig:      testJWT,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "secret1"})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
	assert.Equal(t, 1, hasher.verifies)
}

func TestRegisterReportsEveryInvalidField(t *testing.T) {
	env := newTestEnv(t, config.AuthConfig{})
	_, err := env.svc.Register(context.Background(), RegisterRequest{Email: " ", Password: "abc", Name: ""})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Len(t, details, 3)
}
