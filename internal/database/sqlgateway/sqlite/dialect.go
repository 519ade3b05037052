package sqlite

import (
	"fmt"
	"time"

	"github.com/lupa/roster/internal/database"
	"github.com/lupa/roster/migration"
)

type Dialect struct {
	migrationsTable string
}

type Options struct {
	database.CommonOptions
}

func NewDialect(migrationsTable string) *Dialect {
	return &Dialect{migrationsTable: migrationsTable}
}

func (d Dialect) InitQuery() string {
	const sqliteCreateMigrationsSchema = `
		CREATE TABLE IF NOT EXISTS %s (
			version VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255),
			migrated_at TIMESTAMP default CURRENT_TIMESTAMP
		);
	`

	return fmt.Sprintf(sqliteCreateMigrationsSchema, d.migrationsTable)
}

func (d Dialect) InsertQuery(m *migration.Migration, at time.Time) (string, []interface{}) {
	const sqliteInsertVersionQuery = "INSERT INTO %s (version, name, migrated_at) VALUES (?, ?, ?);"
	q := fmt.Sprintf(sqliteInsertVersionQuery, d.migrationsTable)
	return q, []interface{}{m.Version.String(), m.Name, at}
}

func (d Dialect) RemoveQuery(m *migration.Migration) (string, []interface{}) {
	const sqliteDeleteVersionQuery = "DELETE FROM %s WHERE version = ?;"
	q := fmt.Sprintf(sqliteDeleteVersionQuery, d.migrationsTable)
	return q, []interface{}{m.Version.String()}
}

func (d Dialect) ReadVersionsQuery() string {
	return fmt.Sprintf("SELECT version, migrated_at FROM %s", d.migrationsTable)
}
