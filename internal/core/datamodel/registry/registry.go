package registry

import "time"

// Package is one cached row of the package index, rebuilt from storage.
type Package struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"column:name;index;not null;uniqueIndex:idx_package_file"`
	Version      string    `gorm:"column:version;not null"`
	Filename     string    `gorm:"column:filename;not null;uniqueIndex:idx_package_file"`
	Size         int64     `gorm:"column:size"`
	LastModified time.Time `gorm:"column:last_modified"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
}
