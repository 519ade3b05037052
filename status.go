package roster

import (
	"context"
	"time"

	"github.com/lupa/roster/migration"
)

type StatusEntry struct {
	Migration  *migration.Migration
	Applied    bool
	MigratedAt time.Time
}

type Status struct {
	Current migration.Version
	Entries []StatusEntry
	// Orphans are recorded versions with no discovered migration
	Orphans []migration.Version
}

// Status lists every discovered migration with its applied state
func (m *Migrator) Status(ctx context.Context) (*Status, error) {
	migrations, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	if err := m.gateway.CreateMigrationsTable(ctx); err != nil {
		m.lg.Error(err)
		return nil, err
	}

	applied, err := m.gateway.ReadVersions(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	s := &Status{Current: migration.Zero}
	if len(applied) > 0 {
		s.Current = applied[len(applied)-1]
	}

	for _, mg := range migrations {
		entry := StatusEntry{Migration: mg}
		for _, v := range applied {
			if v.Equal(mg.Version) {
				entry.Applied = true
				entry.MigratedAt = v.MigratedAt
				break
			}
		}

		s.Entries = append(s.Entries, entry)
	}

	for _, v := range applied {
		if found, _ := migrations.Find(v); found == nil {
			s.Orphans = append(s.Orphans, v)
		}
	}

	return s, nil
}
