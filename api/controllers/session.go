package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sweetshop/sweetshop-backend/api/responses"
	"github.com/sweetshop/sweetshop-backend/api/validators"
	pkgAuth "github.com/sweetshop/sweetshop-backend/pkg/auth"
	"github.com/sweetshop/sweetshop-backend/pkg/auth/session"
	"github.com/sweetshop/sweetshop-backend/pkg/config"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
)

type sessionTokenRotator interface {
	Rotate(ctx context.Context, oldAccessID, refreshToken string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type refreshResponse struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type logoutResponse struct {
	Status string `json:"status"`
}

var errSessionsUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable")

// AuthLogout ends the session of the presented access token. Expired tokens
// are accepted.
func AuthLogout(manager sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims, err := presentedSession(r, cfg, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := manager.Revoke(ctx, claims.ID); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session"))
			return
		}
		if logg != nil {
			logg.Info(logg.WithUserID(ctx, claims.UserID.String()), "auth.logout")
		}
		responses.WriteSuccess(w, logoutResponse{Status: "logged_out"})
	}
}

// AuthRefresh trades a refresh token for a new token pair. The new access
// token keeps the caller's identity and role.
func AuthRefresh(manager sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		claims, err := presentedSession(r, cfg, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		accessID, refreshToken, err := manager.Rotate(ctx, claims.ID, body.RefreshToken)
		if err != nil {
			responses.WriteError(ctx, logg, w, rotationError(err))
			return
		}
		accessToken, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
			UserID: claims.UserID,
			Role:   claims.Role,
			JTI:    accessID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt"))
			return
		}
		responses.WriteSuccess(w, refreshResponse{AccessToken: accessToken, RefreshToken: refreshToken})
	}
}

func presentedSession(r *http.Request, cfg config.JWTConfig, manager sessionTokenRotator) (*pkgAuth.AccessTokenClaims, error) {
	if manager == nil {
		return nil, errSessionsUnavailable
	}
	raw, err := validators.BearerToken(r)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return claims, nil
}

func rotationError(err error) error {
	if errors.Is(err, session.ErrInvalidRefreshToken) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
}
