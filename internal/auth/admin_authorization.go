package auth

import (
	"context"
	"log/slog"
	"net/http"
)

// AdminAuthorizer answers the single authorization question the admin API
// needs. The access service implements it via the admin override.
type AdminAuthorizer interface {
	IsAdmin(ctx context.Context, username string) (bool, error)
}

type AdminAuthorization struct {
	authorizer AdminAuthorizer
	logger     *slog.Logger
}

func NewAdminAuthorization(authorizer AdminAuthorizer, logger *slog.Logger) *AdminAuthorization {
	return &AdminAuthorization{
		authorizer: authorizer,
		logger:     logger,
	}
}

// RequireAdmin gates every admin route. The check goes back to the store on
// each request so a revoked admin flag takes effect immediately, not at
// token expiry.
func (a *AdminAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || identity == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			isAdmin, err := a.authorizer.IsAdmin(r.Context(), identity.Username)
			if err != nil {
				a.logger.ErrorContext(r.Context(), "admin check failed", "error", err, "username", identity.Username)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !isAdmin {
				a.logger.WarnContext(r.Context(), "access denied: admin permissions required", "username", identity.Username)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
