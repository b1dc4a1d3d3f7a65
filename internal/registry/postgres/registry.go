package postgres

import (
	"context"

	"github.com/frahmantamala/access-management/internal"
	registryDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/registry"
	"github.com/frahmantamala/access-management/internal/registry"
	"gorm.io/gorm"
)

// PackageRepository implements the registry.Repository interface using GORM
type PackageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) registry.Repository {
	return &PackageRepository{db: db}
}

// ReplaceAll swaps the whole cached index in one transaction.
func (r *PackageRepository) ReplaceAll(ctx context.Context, packages []*registry.Package) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&registryDatamodel.Package{}).Error; err != nil {
			return internal.NewUnavailableError("failed to clear package index", err)
		}

		if len(packages) == 0 {
			return nil
		}

		rows := make([]*registryDatamodel.Package, 0, len(packages))
		for _, p := range packages {
			rows = append(rows, &registryDatamodel.Package{
				Name:         p.Name,
				Version:      p.Version,
				Filename:     p.Filename,
				Size:         p.Size,
				LastModified: p.LastModified,
			})
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return internal.NewUnavailableError("failed to insert package rows", err)
		}
		return nil
	})
}

func (r *PackageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&registryDatamodel.Package{}).Count(&count).Error; err != nil {
		return 0, internal.NewUnavailableError("failed to count packages", err)
	}
	return count, nil
}
