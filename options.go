package roster

import (
	"github.com/lupa/roster/internal/database"
	"github.com/lupa/roster/internal/logger"
	"github.com/lupa/roster/migration"
)

type OptionFunc func(*Migrator) error

func UseColorLogger(p logger.Printer, printSql, printDebug bool) OptionFunc {
	return func(m *Migrator) error {
		m.lg = logger.NewColorLogger(p, printSql, printDebug)
		return nil
	}
}

func UseLogger(p logger.Printer, printSql, printDebug bool) OptionFunc {
	return func(m *Migrator) error {
		m.lg = logger.NewBWLogger(p, printSql, printDebug)
		return nil
	}
}

// UseGateway sets a ready made change log gateway, e.g. the in-memory one
func UseGateway(g database.Gateway) OptionFunc {
	return func(m *Migrator) error {
		m.gateway = g
		return nil
	}
}

// WithClock sets the clock used for applied timestamps
func WithClock(cf migration.ClockFunc) OptionFunc {
	return func(m *Migrator) error {
		m.clock = cf
		return nil
	}
}
