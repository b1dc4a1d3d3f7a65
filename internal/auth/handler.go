package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/access"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/frahmantamala/access-management/pkg/logger"
)

// AccessAPI is the slice of the access service the auth endpoints need:
// self-registration and identity resolution for the middleware.
type AccessAPI interface {
	RegisterUser(ctx context.Context, username, passwordHash string) error
	UserData(ctx context.Context, username string) (*access.User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Access  AccessAPI
}

func NewHandler(svc ServiceAPI, accessAPI AccessAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Access:      accessAPI,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.Logger.Warn("authentication failed", "username", dto.Username, "error", err)
		h.writeAuthError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken)
	if err != nil {
		h.Logger.Warn("token refresh failed", "error", err)
		h.writeAuthError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// Register handles POST /auth/register: self-service signup into a pending
// account. The access service decides whether registration is open.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := h.Service.HashPassword(dto.Password)
	if err != nil {
		h.Logger.Error("failed to hash password", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.Access.RegisterUser(r.Context(), dto.Username, hash); err != nil {
		h.writeAuthError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// AuthMiddleware validates the bearer token and resolves the caller into
// request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := h.Access.UserData(r.Context(), claims.Username)
		if err != nil {
			h.Logger.Warn("auth middleware: failed to load user", "username", claims.Username, "error", err)
			h.WriteError(w, http.StatusUnauthorized, "user not found")
			return
		}

		identity := &Identity{
			Username: user.Username,
			Pending:  user.Pending,
			Admin:    user.Admin,
		}

		ctx := ContextWithIdentity(r.Context(), identity)
		ctx = internal.ContextWithUsername(ctx, identity.Username)
		ctx = logger.With(ctx, "username", identity.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		status, body := appErr.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}

	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		h.WriteError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}
