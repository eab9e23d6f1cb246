package auth

import (
	"fmt"
	"strings"

	"github.com/sweetshop/sweetshop-backend/internal/users"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
)

const minPasswordLength = 6

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest opens an account. Role is a request, not a grant: see
// service.grantedRole.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
}

// normalize trims and lowercases the identifying fields and re-checks the
// rules that matter when the service is called without the HTTP validator.
func (r RegisterRequest) normalize() (RegisterRequest, error) {
	r.Email = users.NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))

	problems := map[string]string{}
	if r.Email == "" {
		problems["email"] = "is required"
	}
	if r.Name == "" {
		problems["name"] = "is required"
	}
	if len(r.Password) < minPasswordLength {
		problems["password"] = fmt.Sprintf("must be at least %d", minPasswordLength)
	}
	if len(problems) > 0 {
		return r, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(problems)
	}
	return r, nil
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	AccessToken  string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	User         *users.UserDTO `json:"user"`
}
