package access

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey"`
	Username     string    `gorm:"column:username;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Pending      bool      `gorm:"column:pending;default:true"`
	Admin        bool      `gorm:"column:admin;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;default:now()"`
}

type Group struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

// GroupMember rows reference users and groups by name rather than id so the
// cascade queries on delete stay single-statement. The reserved pseudo-groups
// never get rows here.
type GroupMember struct {
	ID        int64     `gorm:"primaryKey"`
	Username  string    `gorm:"column:username;index;not null;uniqueIndex:idx_member"`
	GroupName string    `gorm:"column:group_name;index;not null;uniqueIndex:idx_member"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

// Permission is one grant row keyed by (owner_type, owner_name, package).
// A row with both flags false is never stored; revocation deletes the row.
type Permission struct {
	ID        int64     `gorm:"primaryKey"`
	OwnerType string    `gorm:"column:owner_type;not null;uniqueIndex:idx_grant"`
	OwnerName string    `gorm:"column:owner_name;not null;uniqueIndex:idx_grant;index"`
	Package   string    `gorm:"column:package;not null;uniqueIndex:idx_grant;index"`
	Read      bool      `gorm:"column:read;default:false"`
	Write     bool      `gorm:"column:write;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

type Setting struct {
	ID        int64     `gorm:"primaryKey"`
	Key       string    `gorm:"column:key;uniqueIndex;not null"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}
