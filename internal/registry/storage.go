package registry

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/frahmantamala/access-management/internal"
)

// FilesystemStorage lists package files from a flat directory. Filenames
// follow the name-version.ext convention; anything else is skipped.
type FilesystemStorage struct {
	dir string
}

func NewFilesystemStorage(dir string) *FilesystemStorage {
	return &FilesystemStorage{dir: dir}
}

func (s *FilesystemStorage) ListPackages(ctx context.Context) ([]*Package, error) {
	var packages []*Package

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		name, version, ok := parseFilename(d.Name())
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		packages = append(packages, &Package{
			Name:         name,
			Version:      version,
			Filename:     d.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, internal.NewUnavailableError(fmt.Sprintf("package storage %s is missing", s.dir), err)
		}
		return nil, internal.NewUnavailableError("failed to list package storage", err)
	}

	return packages, nil
}

// parseFilename splits "name-1.2.3.tar.gz" into name and version: the
// version starts at the first dash followed by a digit.
func parseFilename(filename string) (name, version string, ok bool) {
	base := filename
	for _, ext := range []string{".tar.gz", ".tgz", ".whl", ".zip"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			for i := 0; i < len(base)-1; i++ {
				if base[i] == '-' && base[i+1] >= '0' && base[i+1] <= '9' {
					return base[:i], base[i+1:], true
				}
			}
			return "", "", false
		}
	}
	return "", "", false
}
