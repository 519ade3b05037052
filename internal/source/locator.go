package source

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Locator gives discovery access to migration files
type Locator interface {
	// ListFiles returns the names of regular files in dir, sorted
	ListFiles(dir string) ([]string, error)
	ReadFile(path string) ([]byte, error)
}

// FileLocator is a Locator over an afero filesystem
type FileLocator struct {
	fs afero.Fs
}

var _ Locator = (*FileLocator)(nil)

func NewFileLocator(fs afero.Fs) *FileLocator {
	return &FileLocator{fs: fs}
}

func (l *FileLocator) ListFiles(dir string) ([]string, error) {
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read folder %s", dir)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}

		names = append(names, info.Name())
	}

	sort.Strings(names)

	return names, nil
}

func (l *FileLocator) ReadFile(path string) ([]byte, error) {
	b, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read file %s", path)
	}

	return b, nil
}

func (l *FileLocator) WriteFile(path string, contents []byte) error {
	if err := l.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "could not create folder for %s", path)
	}

	if err := afero.WriteFile(l.fs, path, contents, os.FileMode(0644)); err != nil {
		return errors.Wrapf(err, "could not create file [%s]", path)
	}

	return nil
}

func (l *FileLocator) Exists(path string) bool {
	ok, err := afero.Exists(l.fs, path)
	return err == nil && ok
}

func (l *FileLocator) IsDir(path string) bool {
	ok, err := afero.IsDir(l.fs, path)
	return err == nil && ok
}
