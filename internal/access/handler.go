package access

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/frahmantamala/access-management/pkg/logger"
	"github.com/go-chi/chi"
)

// ServiceAPI is everything the admin endpoints need from the access service.
type ServiceAPI interface {
	PendingUsers(ctx context.Context) ([]*User, error)
	AllUsersData(ctx context.Context) ([]*User, error)
	UserData(ctx context.Context, username string) (*User, error)
	DeleteUser(ctx context.Context, username string) error
	ApproveUser(ctx context.Context, username string) error
	SetUserAdmin(ctx context.Context, username string, admin bool) error
	EditUserGroup(ctx context.Context, username, group string, add bool) error
	Groups(ctx context.Context) ([]string, error)
	GroupMembers(ctx context.Context, group string) ([]string, error)
	CreateGroup(ctx context.Context, group string) error
	DeleteGroup(ctx context.Context, group string) error
	UserPackagePermissions(ctx context.Context, username string) ([]PackagePermissionDTO, error)
	GroupPackagePermissions(ctx context.Context, group string) ([]PackagePermissionDTO, error)
	PackagePermissions(ctx context.Context, pkg string) (*PackageACLDTO, error)
	EditUserPermission(ctx context.Context, pkg, username string, level Level, grant bool) error
	EditGroupPermission(ctx context.Context, pkg, group string, level Level, grant bool) error
	SetAllowRegister(ctx context.Context, allow bool) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	if appErr, ok := internal.IsAppError(err); ok {
		status, body := appErr.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}
	h.Logger.Error(fallback, "error", err)
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}

// GetPendingUsers handles GET /admin/pending_users
func (h *Handler) GetPendingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.PendingUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list pending users")
		return
	}
	h.WriteJSON(w, http.StatusOK, users)
}

// GetUsers handles GET /admin/user
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.AllUsersData(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list users")
		return
	}
	h.WriteJSON(w, http.StatusOK, users)
}

// GetUser handles GET /admin/user/{username}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.Service.UserData(r.Context(), username)
	if err != nil {
		h.writeServiceError(w, err, "failed to get user")
		return
	}
	h.WriteJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /admin/user/{username}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.Service.DeleteUser(r.Context(), username); err != nil {
		h.writeServiceError(w, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveUser handles POST /admin/user/{username}/approve
func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.Service.ApproveUser(r.Context(), username); err != nil {
		h.writeServiceError(w, err, "failed to approve user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAdminStatus handles POST /admin/user/{username}/admin
func (h *Handler) SetAdminStatus(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var dto SetAdminDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Service.SetUserAdmin(r.Context(), username, *dto.Admin); err != nil {
		h.writeServiceError(w, err, "failed to set admin status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditUserGroup handles PUT and DELETE /admin/user/{username}/group/{group}
func (h *Handler) EditUserGroup(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	group := chi.URLParam(r, "group")
	add := r.Method == http.MethodPut

	if err := h.Service.EditUserGroup(r.Context(), username, group, add); err != nil {
		h.writeServiceError(w, err, "failed to edit group membership")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGroups handles GET /admin/group
func (h *Handler) GetGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Service.Groups(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list groups")
		return
	}
	h.WriteJSON(w, http.StatusOK, groups)
}

// CreateGroup handles PUT /admin/group/{group}
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	if err := h.Service.CreateGroup(r.Context(), group); err != nil {
		h.writeServiceError(w, err, "failed to create group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteGroup handles DELETE /admin/group/{group}
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	if err := h.Service.DeleteGroup(r.Context(), group); err != nil {
		h.writeServiceError(w, err, "failed to delete group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGroupDetail handles GET /admin/group/{group}: members plus grants.
func (h *Handler) GetGroupDetail(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	members, err := h.Service.GroupMembers(r.Context(), group)
	if err != nil {
		h.writeServiceError(w, err, "failed to get group members")
		return
	}
	packages, err := h.Service.GroupPackagePermissions(r.Context(), group)
	if err != nil {
		h.writeServiceError(w, err, "failed to get group permissions")
		return
	}

	h.WriteJSON(w, http.StatusOK, GroupDetailDTO{Members: members, Packages: packages})
}

// GetUserPermissions handles GET /admin/user/{username}/permissions
func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	perms, err := h.Service.UserPackagePermissions(r.Context(), username)
	if err != nil {
		h.writeServiceError(w, err, "failed to get user permissions")
		return
	}
	h.WriteJSON(w, http.StatusOK, perms)
}

// GetPackagePermissions handles GET /admin/package/{package}
func (h *Handler) GetPackagePermissions(w http.ResponseWriter, r *http.Request) {
	pkg := chi.URLParam(r, "package")

	acl, err := h.Service.PackagePermissions(r.Context(), pkg)
	if err != nil {
		h.writeServiceError(w, err, "failed to get package permissions")
		return
	}
	h.WriteJSON(w, http.StatusOK, acl)
}

// EditPermission handles PUT and DELETE
// /admin/package/{package}/type/{type}/name/{name}/permission/{permission}
func (h *Handler) EditPermission(w http.ResponseWriter, r *http.Request) {
	pkg := chi.URLParam(r, "package")
	ownerType := chi.URLParam(r, "type")
	name := chi.URLParam(r, "name")
	grant := r.Method == http.MethodPut

	level, ok := ParseLevel(chi.URLParam(r, "permission"))
	if !ok {
		status, body := internal.ErrInvalidPermission.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}

	var err error
	switch PrincipalKind(ownerType) {
	case KindUser:
		err = h.Service.EditUserPermission(r.Context(), pkg, name, level, grant)
	case KindGroup:
		err = h.Service.EditGroupPermission(r.Context(), pkg, name, level, grant)
	default:
		status, body := internal.ErrInvalidOwnerType.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}
	if err != nil {
		h.writeServiceError(w, err, "failed to edit permission")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleAllowRegister handles POST /admin/register
func (h *Handler) ToggleAllowRegister(w http.ResponseWriter, r *http.Request) {
	var dto AllowRegisterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Service.SetAllowRegister(r.Context(), *dto.Allow); err != nil {
		h.writeServiceError(w, err, "failed to toggle registration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
