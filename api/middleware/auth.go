package middleware

import (
	"net/http"

	"github.com/sweetshop/sweetshop-backend/api/responses"
	"github.com/sweetshop/sweetshop-backend/api/validators"
	pkgAuth "github.com/sweetshop/sweetshop-backend/pkg/auth"
	"github.com/sweetshop/sweetshop-backend/pkg/auth/session"
	"github.com/sweetshop/sweetshop-backend/pkg/config"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
)

// Auth resolves the bearer token into a Principal. Tokens whose Redis session
// was revoked by logout or refresh are rejected before they expire.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				ctx = logg.WithUserID(ctx, principal.UserID.String())
				ctx = logg.WithActorRole(ctx, principal.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (Principal, error) {
	raw, err := validators.BearerToken(r)
	if err != nil {
		return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, raw)
	if err != nil {
		return Principal{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	if sessions != nil {
		active, err := sessions.HasSession(r.Context(), claims.ID)
		if err != nil {
			return Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !active {
			return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired or logged out")
		}
	}

	return Principal{UserID: claims.UserID, Role: claims.Role, SessionID: claims.ID}, nil
}
