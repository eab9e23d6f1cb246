package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweetshop/sweetshop-backend/internal/users"
	pkgAuth "github.com/sweetshop/sweetshop-backend/pkg/auth"
	"github.com/sweetshop/sweetshop-backend/pkg/auth/session"
	"github.com/sweetshop/sweetshop-backend/pkg/config"
	"github.com/sweetshop/sweetshop-backend/pkg/db"
	"github.com/sweetshop/sweetshop-backend/pkg/db/models"
	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
)

const invalidCredentialsMessage = "invalid email or password"

// Service backs the register, login and profile endpoints.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error)
	Login(ctx context.Context, req LoginRequest) (*SessionResponse, error)
	Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Hasher         passwordHasher
	JWTConfig      config.JWTConfig
	AuthConfig     config.AuthConfig
	Logger         *logger.Logger
	Clock          func() time.Time
}

type service struct {
	users    userRepository
	sessions sessionManager
	hasher   passwordHasher
	jwtCfg   config.JWTConfig
	authCfg  config.AuthConfig
	logg     *logger.Logger
	now      func() time.Time

	// decoy is verified when the email is unknown so both login failures
	// cost one password verification.
	decoyOnce sync.Once
	decoy     string
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.UserRepo == nil:
		return nil, errors.New("user repository is required")
	case params.SessionManager == nil:
		return nil, errors.New("session manager is required")
	case params.Hasher == nil:
		return nil, errors.New("password hasher is required")
	}
	svc := &service{
		users:    params.UserRepo,
		sessions: params.SessionManager,
		hasher:   params.Hasher,
		jwtCfg:   params.JWTConfig,
		authCfg:  params.AuthConfig,
		logg:     params.Logger,
		now:      params.Clock,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	taken, err := s.users.EmailTaken(ctx, req.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
	}
	if taken {
		return nil, errEmailTaken()
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         s.grantedRole(req.Email, req.Role),
	})
	switch {
	case db.IsUniqueViolation(err, ""):
		// lost a race with a concurrent signup for the same address
		return nil, errEmailTaken()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(s.logg.WithActorRole(ctx, string(user.Role)), "user.registered")
	return s.issueSession(ctx, user, s.now())
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*SessionResponse, error) {
	user, err := s.verifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user.login")
	return s.issueSession(ctx, user, now)
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user")
	}
	user, err := s.users.FindByID(ctx, userID)
	switch {
	case db.IsNotFound(err):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return users.FromModel(user), nil
}

// grantedRole makes the configured admin address an admin. Any other admin
// request is downgraded unless admin signup is open.
func (s *service) grantedRole(email, requested string) enums.UserRole {
	if admin := users.NormalizeEmail(s.authCfg.AdminEmail); admin != "" && admin == email {
		return enums.UserRoleAdmin
	}
	role, err := enums.ParseUserRole(requested)
	if err != nil || (role == enums.UserRoleAdmin && !s.authCfg.AllowAdminSignup) {
		return enums.UserRoleUser
	}
	return role
}

func (s *service) issueSession(ctx context.Context, user *models.User, now time.Time) (*SessionResponse, error) {
	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return &SessionResponse{AccessToken: token, RefreshToken: refresh, User: users.FromModel(user)}, nil
}

func (s *service) verifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, errInvalidCredentials()
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case db.IsNotFound(err):
		s.burnVerification(password)
		return nil, errInvalidCredentials()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, errInvalidCredentials()
	}
	return user, nil
}

func (s *service) burnVerification(password string) {
	s.decoyOnce.Do(func() {
		s.decoy, _ = s.hasher.Hash(uuid.NewString())
	})
	if s.decoy != "" {
		_, _ = s.hasher.Verify(password, s.decoy)
	}
}

func errInvalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
}

func errEmailTaken() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
}
