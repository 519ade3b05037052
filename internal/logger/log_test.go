package logger

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type printerMock struct {
	lines []string
}

func (p *printerMock) Output(_ int, s string) error {
	p.lines = append(p.lines, s)
	return nil
}

func TestBWLogger(t *testing.T) {
	t.Run("debug and sql are printed only when enabled", func(t *testing.T) {
		p := &printerMock{}
		lg := NewBWLogger(p, false, false)

		lg.Debugf("hidden %d", 1)
		lg.SQL("SELECT 1")
		lg.Successf("migrated version %s", "100")
		lg.Error(errors.New("boom"))

		assert.Equal(t, []string{"Roster: migrated version 100", "Roster error: boom"}, p.lines)
	})

	t.Run("sql with parameters", func(t *testing.T) {
		p := &printerMock{}
		lg := NewBWLogger(p, true, true)

		lg.SQL("DELETE FROM migrations WHERE version = ?", "100", 2)
		lg.Debugf("rolling back %s", "100")

		assert.Equal(t, []string{
			"Roster running sql: DELETE FROM migrations WHERE version = ?\nquery parameters: {\"100\"}, {2}",
			"Roster debug: rolling back 100",
		}, p.lines)
	})
}
