package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/access"
	accessDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/access"
	"gorm.io/gorm"
)

const settingAllowRegister = "allow_register"

// AccessRepository implements the identity, permission and settings store
// contracts on one database so cascading deletes run in a single
// transaction.
type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

func unavailable(op string, err error) error {
	return internal.NewUnavailableError(fmt.Sprintf("access store: %s failed", op), err)
}

// ----------------- identity store -----------------

func (r *AccessRepository) CreateUser(ctx context.Context, username, passwordHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&accessDatamodel.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return unavailable("create user", err)
		}
		if count > 0 {
			return internal.ErrUserExists
		}

		user := &accessDatamodel.User{
			Username:     username,
			PasswordHash: passwordHash,
			Pending:      true,
			Admin:        false,
		}
		if err := tx.Create(user).Error; err != nil {
			return unavailable("create user", err)
		}
		return nil
	})
}

func (r *AccessRepository) GetUser(ctx context.Context, username string) (*access.User, error) {
	var user accessDatamodel.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, unavailable("get user", err)
	}

	groups, err := r.membershipsForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return access.FromUserDataModel(&user, groups), nil
}

func (r *AccessRepository) GetCredentials(ctx context.Context, username string) (string, bool, error) {
	var user accessDatamodel.User
	err := r.db.WithContext(ctx).Select("password_hash", "pending").Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, internal.ErrUserNotFound
		}
		return "", false, unavailable("get credentials", err)
	}
	return user.PasswordHash, user.Pending, nil
}

func (r *AccessRepository) ListUsers(ctx context.Context) ([]*access.User, error) {
	return r.listUsers(ctx, r.db.WithContext(ctx).Order("username ASC"))
}

func (r *AccessRepository) ListPendingUsers(ctx context.Context) ([]*access.User, error) {
	return r.listUsers(ctx, r.db.WithContext(ctx).Where("pending = ?", true).Order("username ASC"))
}

func (r *AccessRepository) listUsers(ctx context.Context, query *gorm.DB) ([]*access.User, error) {
	var users []accessDatamodel.User
	if err := query.Find(&users).Error; err != nil {
		return nil, unavailable("list users", err)
	}

	memberships, err := r.allMemberships(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*access.User, 0, len(users))
	for i := range users {
		out = append(out, access.FromUserDataModel(&users[i], memberships[users[i].Username]))
	}
	return out, nil
}

func (r *AccessRepository) ApproveUser(ctx context.Context, username string) error {
	res := r.db.WithContext(ctx).Model(&accessDatamodel.User{}).
		Where("username = ?", username).
		Update("pending", false)
	if res.Error != nil {
		return unavailable("approve user", res.Error)
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *AccessRepository) SetAdmin(ctx context.Context, username string, admin bool) error {
	res := r.db.WithContext(ctx).Model(&accessDatamodel.User{}).
		Where("username = ?", username).
		Update("admin", admin)
	if res.Error != nil {
		return unavailable("set admin", res.Error)
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the user together with its memberships and grants. The
// whole cascade is one transaction so concurrent permission checks never see
// a half-deleted principal.
func (r *AccessRepository) DeleteUser(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("username = ?", username).Delete(&accessDatamodel.User{})
		if res.Error != nil {
			return unavailable("delete user", res.Error)
		}
		if res.RowsAffected == 0 {
			return internal.ErrUserNotFound
		}

		if err := tx.Where("username = ?", username).Delete(&accessDatamodel.GroupMember{}).Error; err != nil {
			return unavailable("delete user memberships", err)
		}
		if err := tx.Where("owner_type = ? AND owner_name = ?", access.KindUser, username).
			Delete(&accessDatamodel.Permission{}).Error; err != nil {
			return unavailable("delete user grants", err)
		}
		return nil
	})
}

func (r *AccessRepository) AddToGroup(ctx context.Context, username, group string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := existsOr(tx, &accessDatamodel.User{}, "username = ?", username, internal.ErrUserNotFound); err != nil {
			return err
		}
		if err := existsOr(tx, &accessDatamodel.Group{}, "name = ?", group, internal.ErrGroupNotFound); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&accessDatamodel.GroupMember{}).
			Where("username = ? AND group_name = ?", username, group).
			Count(&count).Error; err != nil {
			return unavailable("add to group", err)
		}
		if count > 0 {
			// adding twice is a no-op
			return nil
		}

		member := &accessDatamodel.GroupMember{Username: username, GroupName: group}
		if err := tx.Create(member).Error; err != nil {
			return unavailable("add to group", err)
		}
		return nil
	})
}

func (r *AccessRepository) RemoveFromGroup(ctx context.Context, username, group string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := existsOr(tx, &accessDatamodel.User{}, "username = ?", username, internal.ErrUserNotFound); err != nil {
			return err
		}
		if err := existsOr(tx, &accessDatamodel.Group{}, "name = ?", group, internal.ErrGroupNotFound); err != nil {
			return err
		}

		if err := tx.Where("username = ? AND group_name = ?", username, group).
			Delete(&accessDatamodel.GroupMember{}).Error; err != nil {
			return unavailable("remove from group", err)
		}
		return nil
	})
}

func (r *AccessRepository) CreateGroup(ctx context.Context, name string) error {
	if access.IsReservedGroup(name) {
		// the service rejects these already; refuse here too so no other
		// caller can slip a reserved row into the table
		return internal.ErrReservedGroup
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&accessDatamodel.Group{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return unavailable("create group", err)
		}
		if count > 0 {
			return internal.ErrGroupExists
		}

		if err := tx.Create(&accessDatamodel.Group{Name: name}).Error; err != nil {
			return unavailable("create group", err)
		}
		return nil
	})
}

// DeleteGroup removes the group, its membership rows and every grant made to
// it, atomically.
func (r *AccessRepository) DeleteGroup(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("name = ?", name).Delete(&accessDatamodel.Group{})
		if res.Error != nil {
			return unavailable("delete group", res.Error)
		}
		if res.RowsAffected == 0 {
			return internal.ErrGroupNotFound
		}

		if err := tx.Where("group_name = ?", name).Delete(&accessDatamodel.GroupMember{}).Error; err != nil {
			return unavailable("delete group memberships", err)
		}
		if err := tx.Where("owner_type = ? AND owner_name = ?", access.KindGroup, name).
			Delete(&accessDatamodel.Permission{}).Error; err != nil {
			return unavailable("delete group grants", err)
		}
		return nil
	})
}

func (r *AccessRepository) ListGroups(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&accessDatamodel.Group{}).
		Order("name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, unavailable("list groups", err)
	}
	return names, nil
}

func (r *AccessRepository) GroupMembers(ctx context.Context, name string) ([]string, error) {
	if err := existsOr(r.db.WithContext(ctx), &accessDatamodel.Group{}, "name = ?", name, internal.ErrGroupNotFound); err != nil {
		return nil, err
	}

	var members []string
	err := r.db.WithContext(ctx).Model(&accessDatamodel.GroupMember{}).
		Where("group_name = ?", name).
		Order("username ASC").
		Pluck("username", &members).Error
	if err != nil {
		return nil, unavailable("group members", err)
	}
	return members, nil
}

func (r *AccessRepository) membershipsForUser(ctx context.Context, username string) ([]string, error) {
	var groups []string
	err := r.db.WithContext(ctx).Model(&accessDatamodel.GroupMember{}).
		Where("username = ?", username).
		Order("group_name ASC").
		Pluck("group_name", &groups).Error
	if err != nil {
		return nil, unavailable("user memberships", err)
	}
	return groups, nil
}

func (r *AccessRepository) allMemberships(ctx context.Context) (map[string][]string, error) {
	var rows []accessDatamodel.GroupMember
	if err := r.db.WithContext(ctx).Order("group_name ASC").Find(&rows).Error; err != nil {
		return nil, unavailable("list memberships", err)
	}

	memberships := make(map[string][]string)
	for _, row := range rows {
		memberships[row.Username] = append(memberships[row.Username], row.GroupName)
	}
	return memberships, nil
}

// ----------------- permission store -----------------

// SetPermission upserts a grant row. An empty grant deletes the row so the
// table only ever holds live permissions.
func (r *AccessRepository) SetPermission(ctx context.Context, grant *access.Grant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if grant.Empty() {
			if err := tx.Where("owner_type = ? AND owner_name = ? AND package = ?",
				grant.Principal.Kind, grant.Principal.Name, grant.Package).
				Delete(&accessDatamodel.Permission{}).Error; err != nil {
				return unavailable("revoke permission", err)
			}
			return nil
		}

		var row accessDatamodel.Permission
		err := tx.Where("owner_type = ? AND owner_name = ? AND package = ?",
			grant.Principal.Kind, grant.Principal.Name, grant.Package).
			First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = accessDatamodel.Permission{
				OwnerType: string(grant.Principal.Kind),
				OwnerName: grant.Principal.Name,
				Package:   grant.Package,
				Read:      grant.Read,
				Write:     grant.Write,
			}
			if err := tx.Create(&row).Error; err != nil {
				return unavailable("grant permission", err)
			}
			return nil
		case err != nil:
			return unavailable("grant permission", err)
		default:
			updates := map[string]interface{}{"read": grant.Read, "write": grant.Write}
			if err := tx.Model(&row).Updates(updates).Error; err != nil {
				return unavailable("grant permission", err)
			}
			return nil
		}
	})
}

// GetPermission returns the stored grant, or an empty grant when no row
// exists; absence means level none, not an error.
func (r *AccessRepository) GetPermission(ctx context.Context, principal access.Principal, pkg string) (*access.Grant, error) {
	var row accessDatamodel.Permission
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_name = ? AND package = ?", principal.Kind, principal.Name, pkg).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &access.Grant{Principal: principal, Package: pkg}, nil
		}
		return nil, unavailable("get permission", err)
	}
	return access.FromPermissionDataModel(&row), nil
}

func (r *AccessRepository) PermissionsForPrincipal(ctx context.Context, principal access.Principal) ([]*access.Grant, error) {
	var rows []accessDatamodel.Permission
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_name = ?", principal.Kind, principal.Name).
		Order("package ASC").
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("permissions for principal", err)
	}

	grants := make([]*access.Grant, 0, len(rows))
	for i := range rows {
		grants = append(grants, access.FromPermissionDataModel(&rows[i]))
	}
	return grants, nil
}

func (r *AccessRepository) PermissionsForPackage(ctx context.Context, pkg string) ([]*access.Grant, error) {
	var rows []accessDatamodel.Permission
	err := r.db.WithContext(ctx).
		Where("package = ?", pkg).
		Order("owner_type ASC, owner_name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("permissions for package", err)
	}

	grants := make([]*access.Grant, 0, len(rows))
	for i := range rows {
		grants = append(grants, access.FromPermissionDataModel(&rows[i]))
	}
	return grants, nil
}

// ----------------- settings store -----------------

func (r *AccessRepository) GetAllowRegister(ctx context.Context) (bool, error) {
	var row accessDatamodel.Setting
	err := r.db.WithContext(ctx).Where("key = ?", settingAllowRegister).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, unavailable("get registration flag", err)
	}
	return row.Value == "true", nil
}

func (r *AccessRepository) SetAllowRegister(ctx context.Context, allow bool) error {
	value := "false"
	if allow {
		value = "true"
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accessDatamodel.Setting{}).
			Where("key = ?", settingAllowRegister).
			Update("value", value)
		if res.Error != nil {
			return unavailable("set registration flag", res.Error)
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&accessDatamodel.Setting{Key: settingAllowRegister, Value: value}).Error; err != nil {
				return unavailable("set registration flag", err)
			}
		}
		return nil
	})
}

func existsOr(tx *gorm.DB, model interface{}, cond, arg string, notFound error) error {
	var count int64
	if err := tx.Model(model).Where(cond, arg).Count(&count).Error; err != nil {
		return unavailable("existence check", err)
	}
	if count == 0 {
		return notFound
	}
	return nil
}
