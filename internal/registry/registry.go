package registry

import (
	"context"
	"time"
)

// Package is one distributable file known to the index.
type Package struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Storage is the durable home of package files. The index cache is always
// rebuildable from it.
type Storage interface {
	ListPackages(ctx context.Context) ([]*Package, error)
}

// Repository is the cached package index in the database.
type Repository interface {
	ReplaceAll(ctx context.Context, packages []*Package) error
	Count(ctx context.Context) (int64, error)
}
