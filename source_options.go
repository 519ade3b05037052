package roster

import (
	"github.com/lupa/roster/internal/source"
	"github.com/lupa/roster/migration"
	"github.com/spf13/afero"
)

// UseLocalFolderSource reads migrations from one or more folders, versions
// must be unique across all of them
func UseLocalFolderSource(folders ...string) OptionFunc {
	return func(m *Migrator) error {
		m.folders = append(m.folders, folders...)
		return nil
	}
}

// UseFileSystem replaces the OS filesystem the folders are read from
func UseFileSystem(fs afero.Fs) OptionFunc {
	return func(m *Migrator) error {
		m.fs = fs
		return nil
	}
}

func UseInMemorySource(factories ...migration.Factory) OptionFunc {
	return func(m *Migrator) error {
		s, err := source.NewInMemorySource(factories...)
		if err != nil {
			return err
		}

		m.selector = s
		return nil
	}
}
