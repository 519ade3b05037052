package migration

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidMigrationName = errors.New("invalid migration name")

// DuplicateVersionError is returned when two migrations share a version
type DuplicateVersionError struct {
	Version Version
	Keys    []string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("duplicate migration version [%s] in %s", e.Version, strings.Join(e.Keys, ", "))
}

type (
	Migration struct {
		Key      string
		Name     string
		Version  Version
		Migrate  []string
		Rollback []string
	}

	Factory func() (*Migration, error)
)

// New creates a factory of a migration with the given version, name and scripts
func New(version, name string, migrate, rollback []string) Factory {
	return func() (*Migration, error) {
		v, err := ParseVersion(version)
		if err != nil {
			return nil, err
		}

		if v.IsZero() {
			return nil, errors.Wrapf(ErrInvalidVersion, "version of migration [%s] cannot be zero", name)
		}

		return &Migration{
			Key:      CreateKeyFromVersionAndName(v.Value, name),
			Name:     name,
			Version:  v,
			Migrate:  migrate,
			Rollback: rollback,
		}, nil
	}
}

func NewMigrationFromFile(key, name string, version Version, migrate, rollback string) Factory {
	return func() (*Migration, error) {
		if version.IsZero() {
			return nil, errors.Wrapf(ErrInvalidVersion, "version of migration [%s] cannot be zero", key)
		}

		m := &Migration{
			Key:     key,
			Name:    name,
			Version: version,
		}

		if s := strings.TrimSpace(migrate); s != "" {
			m.Migrate = []string{s}
		}

		if s := strings.TrimSpace(rollback); s != "" {
			m.Rollback = []string{s}
		}

		return m, nil
	}
}

func (m *Migration) MigrateScripts() string {
	return joinScripts(m.Migrate)
}

func (m *Migration) RollbackScripts() string {
	return joinScripts(m.Rollback)
}

func (m *Migration) String() string {
	return fmt.Sprintf("%s (%s)", m.Version, m.Name)
}

type Migrations []*Migration

// NewMigrations builds every migration, rejects duplicate versions and
// returns them sorted ascending by version.
func NewMigrations(factories ...Factory) (Migrations, error) {
	migrations := make(Migrations, 0, len(factories))
	seen := make(map[string]*Migration, len(factories))

	for i := range factories {
		m, err := factories[i]()
		if err != nil {
			return nil, err
		}

		if prev, ok := seen[m.Version.canonical()]; ok {
			return nil, &DuplicateVersionError{Version: prev.Version, Keys: []string{prev.Key, m.Key}}
		}

		seen[m.Version.canonical()] = m
		migrations = append(migrations, m)
	}

	sort.Sort(migrations)

	return migrations, nil
}

func (m Migrations) Keys() (result []string) {
	for i := range m {
		result = append(result, m[i].Key)
	}
	return result
}

func (m Migrations) Versions() (result []Version) {
	for i := range m {
		result = append(result, m[i].Version)
	}
	return result
}

// Find returns the migration with the given version and its index, or -1
func (m Migrations) Find(v Version) (*Migration, int) {
	for i := range m {
		if m[i].Version.Equal(v) {
			return m[i], i
		}
	}

	return nil, -1
}

func (m Migrations) Len() int {
	return len(m)
}

func (m Migrations) Less(i, j int) bool {
	return m[i].Version.Compare(m[j].Version) < 0
}

func (m Migrations) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}

func CreateKeyFromVersionAndName(version, name string) string {
	var result bytes.Buffer
	result.WriteString(version)

	if name != "" {
		result.WriteString("_")
		result.WriteString(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_"))
	}

	return result.String()
}

func joinScripts(scripts []string) string {
	var ms bytes.Buffer

	for i := range scripts {
		ms.WriteString(scripts[i])

		if !strings.HasSuffix(scripts[i], ";") {
			ms.WriteString(";")
		}

		if i < len(scripts)-1 {
			ms.WriteString("\n")
		}
	}

	return ms.String()
}
