package access

import (
	accessDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/access"
)

// Level is the permission lattice for a principal on a package.
// none < read < write, and write implies read.
type Level string

const (
	LevelNone  Level = "none"
	LevelRead  Level = "read"
	LevelWrite Level = "write"
)

func (l Level) rank() int {
	switch l {
	case LevelRead:
		return 1
	case LevelWrite:
		return 2
	default:
		return 0
	}
}

// Max returns the higher of two levels.
func (l Level) Max(other Level) Level {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// CanRead reports whether the level allows reading; write implies read.
func (l Level) CanRead() bool { return l.rank() >= LevelRead.rank() }

func (l Level) CanWrite() bool { return l == LevelWrite }

// ParseLevel validates the permission segment of the admin API paths.
func ParseLevel(s string) (Level, bool) {
	switch Level(s) {
	case LevelRead, LevelWrite:
		return Level(s), true
	default:
		return LevelNone, false
	}
}

type PrincipalKind string

const (
	KindUser  PrincipalKind = "user"
	KindGroup PrincipalKind = "group"
)

// Principal is the tagged subject of a permission grant, avoiding
// string-typed branching in the permission store.
type Principal struct {
	Kind PrincipalKind
	Name string
}

func UserPrincipal(name string) Principal  { return Principal{Kind: KindUser, Name: name} }
func GroupPrincipal(name string) Principal { return Principal{Kind: KindGroup, Name: name} }

// Reserved pseudo-group names. Membership is implicit and computed, so these
// never exist as stored groups and can never be created, edited or deleted.
const (
	GroupEveryone      = "everyone"
	GroupAuthenticated = "authenticated"
)

func IsReservedGroup(name string) bool {
	return name == GroupEveryone || name == GroupAuthenticated
}

type User struct {
	Username string   `json:"username"`
	Pending  bool     `json:"pending"`
	Admin    bool     `json:"admin"`
	Groups   []string `json:"groups"`
}

// ImpliedGroups returns the pseudo-groups the user belongs to without any
// stored membership: everyone always, authenticated once approved.
func ImpliedGroups(u *User) []string {
	if u.Pending {
		return []string{GroupEveryone}
	}
	return []string{GroupEveryone, GroupAuthenticated}
}

// Grant is one stored permission row for a principal on a package.
type Grant struct {
	Principal Principal
	Package   string
	Read      bool
	Write     bool
}

// Level collapses the stored flags into the lattice value.
func (g Grant) Level() Level {
	if g.Write {
		return LevelWrite
	}
	if g.Read {
		return LevelRead
	}
	return LevelNone
}

// Permissions renders the grant the way the admin API lists it.
func (g Grant) Permissions() []string {
	perms := make([]string, 0, 2)
	if g.Read {
		perms = append(perms, "read")
	}
	if g.Write {
		perms = append(perms, "write")
	}
	return perms
}

// Empty reports whether the grant carries no access and should be deleted
// rather than stored.
func (g Grant) Empty() bool { return !g.Read && !g.Write }

func FromUserDataModel(u *accessDatamodel.User, groups []string) *User {
	if groups == nil {
		groups = []string{}
	}
	return &User{
		Username: u.Username,
		Pending:  u.Pending,
		Admin:    u.Admin,
		Groups:   groups,
	}
}

func FromPermissionDataModel(p *accessDatamodel.Permission) *Grant {
	return &Grant{
		Principal: Principal{Kind: PrincipalKind(p.OwnerType), Name: p.OwnerName},
		Package:   p.Package,
		Read:      p.Read,
		Write:     p.Write,
	}
}
