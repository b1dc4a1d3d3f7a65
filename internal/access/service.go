package access

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/events"
)

// IdentityRepository is the durable record of users and groups. Deletes
// cascade over memberships and grants inside a single transaction.
type IdentityRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) error
	GetUser(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	ListPendingUsers(ctx context.Context) ([]*User, error)
	ApproveUser(ctx context.Context, username string) error
	SetAdmin(ctx context.Context, username string, admin bool) error
	DeleteUser(ctx context.Context, username string) error
	AddToGroup(ctx context.Context, username, group string) error
	RemoveFromGroup(ctx context.Context, username, group string) error
	CreateGroup(ctx context.Context, name string) error
	DeleteGroup(ctx context.Context, name string) error
	ListGroups(ctx context.Context) ([]string, error)
	GroupMembers(ctx context.Context, name string) ([]string, error)
}

// PermissionRepository is the sparse mapping from (principal, package) to
// read/write flags. Setting an empty grant removes the row.
type PermissionRepository interface {
	SetPermission(ctx context.Context, grant *Grant) error
	GetPermission(ctx context.Context, principal Principal, pkg string) (*Grant, error)
	PermissionsForPrincipal(ctx context.Context, principal Principal) ([]*Grant, error)
	PermissionsForPackage(ctx context.Context, pkg string) ([]*Grant, error)
}

// SettingsRepository persists the registration policy flag.
type SettingsRepository interface {
	GetAllowRegister(ctx context.Context) (bool, error)
	SetAllowRegister(ctx context.Context, allow bool) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service orchestrates the identity and permission stores and owns the
// registration policy flag.
type Service struct {
	identity IdentityRepository
	perms    PermissionRepository
	settings SettingsRepository
	events   EventPublisher
	logger   *slog.Logger

	allowRegister atomic.Bool
}

func NewService(identity IdentityRepository, perms PermissionRepository, settings SettingsRepository, publisher EventPublisher, logger *slog.Logger) *Service {
	s := &Service{
		identity: identity,
		perms:    perms,
		settings: settings,
		events:   publisher,
		logger:   logger,
	}

	allow, err := settings.GetAllowRegister(context.Background())
	if err != nil {
		logger.Warn("could not load registration flag, defaulting to closed", "error", err)
		allow = false
	}
	s.allowRegister.Store(allow)

	return s
}

// ----------------- users -----------------

func (s *Service) PendingUsers(ctx context.Context) ([]*User, error) {
	users, err := s.identity.ListPendingUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending users: %w", err)
	}
	return users, nil
}

func (s *Service) AllUsersData(ctx context.Context) ([]*User, error) {
	users, err := s.identity.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *Service) UserData(ctx context.Context, username string) (*User, error) {
	return s.identity.GetUser(ctx, username)
}

// RegisterUser creates a pending account. The caller hashes the password;
// this service never sees plaintext credentials.
func (s *Service) RegisterUser(ctx context.Context, username, passwordHash string) error {
	if username == "" {
		return internal.NewValidationError("username is required", internal.ErrCodeValidationFailed)
	}
	if !s.allowRegister.Load() {
		return internal.ErrRegistrationClosed
	}

	if err := s.identity.CreateUser(ctx, username, passwordHash); err != nil {
		return err
	}

	s.publish(ctx, events.NewUserRegisteredEvent(username))
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, username string) error {
	if err := s.identity.DeleteUser(ctx, username); err != nil {
		return err
	}

	s.logger.Info("user deleted", "username", username)
	s.publish(ctx, events.NewUserDeletedEvent(username))
	return nil
}

// ApproveUser clears the pending flag. Approving an already-approved user is
// a no-op, not an error.
func (s *Service) ApproveUser(ctx context.Context, username string) error {
	if err := s.identity.ApproveUser(ctx, username); err != nil {
		return err
	}

	s.publish(ctx, events.NewUserApprovedEvent(username))
	return nil
}

// SetUserAdmin toggles the admin override. An admin may demote themselves;
// there is deliberately no lockout guard here.
func (s *Service) SetUserAdmin(ctx context.Context, username string, admin bool) error {
	if err := s.identity.SetAdmin(ctx, username, admin); err != nil {
		return err
	}

	s.logger.Info("admin flag changed", "username", username, "admin", admin)
	s.publish(ctx, events.NewUserAdminChangedEvent(username, admin))
	return nil
}

// EditUserGroup adds or removes a stored membership. The reserved
// pseudo-groups have implicit membership and are never editable.
func (s *Service) EditUserGroup(ctx context.Context, username, group string, add bool) error {
	if IsReservedGroup(group) {
		return internal.ErrReservedGroup
	}

	var err error
	if add {
		err = s.identity.AddToGroup(ctx, username, group)
	} else {
		err = s.identity.RemoveFromGroup(ctx, username, group)
	}
	if err != nil {
		return err
	}

	s.publish(ctx, events.NewUserGroupChangedEvent(username, group, add))
	return nil
}

// ----------------- groups -----------------

func (s *Service) Groups(ctx context.Context) ([]string, error) {
	groups, err := s.identity.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// GroupMembers lists stored memberships. The reserved pseudo-groups have
// implicit membership and no rows, so they list as empty rather than
// unknown; their grants stay viewable through the group detail route.
func (s *Service) GroupMembers(ctx context.Context, group string) ([]string, error) {
	if IsReservedGroup(group) {
		return []string{}, nil
	}
	return s.identity.GroupMembers(ctx, group)
}

func (s *Service) CreateGroup(ctx context.Context, group string) error {
	if group == "" {
		return internal.NewValidationError("group name is required", internal.ErrCodeValidationFailed)
	}
	if IsReservedGroup(group) {
		return internal.ErrReservedGroup
	}

	if err := s.identity.CreateGroup(ctx, group); err != nil {
		return err
	}

	s.publish(ctx, events.NewGroupCreatedEvent(group))
	return nil
}

func (s *Service) DeleteGroup(ctx context.Context, group string) error {
	if IsReservedGroup(group) {
		return internal.ErrReservedGroup
	}

	if err := s.identity.DeleteGroup(ctx, group); err != nil {
		return err
	}

	s.logger.Info("group deleted", "group", group)
	s.publish(ctx, events.NewGroupDeletedEvent(group))
	return nil
}

// ----------------- permission projections -----------------

func (s *Service) UserPackagePermissions(ctx context.Context, username string) ([]PackagePermissionDTO, error) {
	if _, err := s.identity.GetUser(ctx, username); err != nil {
		return nil, err
	}
	return s.principalPackagePermissions(ctx, UserPrincipal(username))
}

func (s *Service) GroupPackagePermissions(ctx context.Context, group string) ([]PackagePermissionDTO, error) {
	if !IsReservedGroup(group) {
		if _, err := s.identity.GroupMembers(ctx, group); err != nil {
			return nil, err
		}
	}
	return s.principalPackagePermissions(ctx, GroupPrincipal(group))
}

func (s *Service) principalPackagePermissions(ctx context.Context, principal Principal) ([]PackagePermissionDTO, error) {
	grants, err := s.perms.PermissionsForPrincipal(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants for %s %s: %w", principal.Kind, principal.Name, err)
	}

	out := make([]PackagePermissionDTO, 0, len(grants))
	for _, g := range grants {
		out = append(out, PackagePermissionDTO{Package: g.Package, Permissions: g.Permissions()})
	}
	return out, nil
}

func (s *Service) PackagePermissions(ctx context.Context, pkg string) (*PackageACLDTO, error) {
	grants, err := s.perms.PermissionsForPackage(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants for package %s: %w", pkg, err)
	}

	acl := &PackageACLDTO{
		Package: pkg,
		User:    []UserPermissionDTO{},
		Group:   []GroupPermissionDTO{},
	}
	for _, g := range grants {
		switch g.Principal.Kind {
		case KindUser:
			acl.User = append(acl.User, UserPermissionDTO{Username: g.Principal.Name, Permissions: g.Permissions()})
		case KindGroup:
			acl.Group = append(acl.Group, GroupPermissionDTO{Group: g.Principal.Name, Permissions: g.Permissions()})
		}
	}
	return acl, nil
}

// ----------------- permission edits -----------------

func (s *Service) EditUserPermission(ctx context.Context, pkg, username string, level Level, grant bool) error {
	if _, err := s.identity.GetUser(ctx, username); err != nil {
		return err
	}
	return s.editPermission(ctx, UserPrincipal(username), pkg, level, grant)
}

func (s *Service) EditGroupPermission(ctx context.Context, pkg, group string, level Level, grant bool) error {
	if !IsReservedGroup(group) {
		if _, err := s.identity.GroupMembers(ctx, group); err != nil {
			return err
		}
	}
	return s.editPermission(ctx, GroupPrincipal(group), pkg, level, grant)
}

func (s *Service) editPermission(ctx context.Context, principal Principal, pkg string, level Level, grant bool) error {
	if pkg == "" {
		return internal.NewValidationError("package name is required", internal.ErrCodeValidationFailed)
	}
	if grant && level == LevelNone {
		return internal.ErrInvalidPermission
	}

	g := &Grant{Principal: principal, Package: pkg}
	if grant {
		g.Read = level.CanRead()
		g.Write = level.CanWrite()
	}

	if err := s.perms.SetPermission(ctx, g); err != nil {
		return err
	}

	s.publish(ctx, events.NewPermissionChangedEvent(string(principal.Kind), principal.Name, pkg, string(level), grant))
	return nil
}

// ----------------- registration policy -----------------

func (s *Service) AllowRegister() bool {
	return s.allowRegister.Load()
}

// SetAllowRegister writes through to the settings store before updating the
// in-process cache, so a failed write never flips the served value.
func (s *Service) SetAllowRegister(ctx context.Context, allow bool) error {
	if err := s.settings.SetAllowRegister(ctx, allow); err != nil {
		return fmt.Errorf("failed to persist registration flag: %w", err)
	}
	s.allowRegister.Store(allow)

	s.logger.Info("registration flag changed", "allow", allow)
	s.publish(ctx, events.NewRegistrationToggledEvent(allow))
	return nil
}

// ----------------- evaluation -----------------

// EffectivePermission resolves the maximum level for a user on a package:
// admin override first, then the direct grant merged with every group the
// user belongs to, including the implicit pseudo-groups. Pending users only
// see grants made to everyone.
func (s *Service) EffectivePermission(ctx context.Context, username, pkg string) (Level, error) {
	u, err := s.identity.GetUser(ctx, username)
	if err != nil {
		return LevelNone, err
	}

	if u.Admin {
		return LevelWrite, nil
	}

	level := LevelNone
	var groups []string

	if u.Pending {
		groups = ImpliedGroups(u)
	} else {
		direct, err := s.perms.GetPermission(ctx, UserPrincipal(username), pkg)
		if err != nil {
			return LevelNone, fmt.Errorf("failed to load direct grant: %w", err)
		}
		level = direct.Level()
		groups = append(append([]string{}, u.Groups...), ImpliedGroups(u)...)
	}

	for _, group := range groups {
		g, err := s.perms.GetPermission(ctx, GroupPrincipal(group), pkg)
		if err != nil {
			return LevelNone, fmt.Errorf("failed to load grant for group %s: %w", group, err)
		}
		level = level.Max(g.Level())
	}

	return level, nil
}

// IsAdmin reports the admin override for authorization middleware.
func (s *Service) IsAdmin(ctx context.Context, username string) (bool, error) {
	u, err := s.identity.GetUser(ctx, username)
	if err != nil {
		return false, err
	}
	return u.Admin && !u.Pending, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish audit event", "event_type", event.EventType(), "error", err)
	}
}
