package roster

import "github.com/lupa/roster/migration"

type ActionConfigurator func(a *Action)

// ProgressFunc is called after every successful step with the migration
// that was applied or reverted
type ProgressFunc func(m *migration.Migration, d Direction)

type Action struct {
	progress ProgressFunc
}

func newAction(cfs ...ActionConfigurator) *Action {
	act := new(Action)
	for _, f := range cfs {
		f(act)
	}

	return act
}

func WithProgress(f ProgressFunc) ActionConfigurator {
	return func(a *Action) {
		a.progress = f
	}
}
