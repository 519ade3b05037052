package database

import (
	"github.com/lupa/roster/migration"
)

// Plan is the ordered list of steps needed to bring the change log from
// From to To
type Plan struct {
	Direction Direction
	From      migration.Version
	To        migration.Version
	Steps     migration.Migrations
}

// Resolve computes the plan for target t against all discovered migrations
// (sorted ascending) and the current change log version. ErrNoChangesRequired
// and ErrAlreadyAtVersion come back together with an empty plan.
func Resolve(migrations migration.Migrations, current migration.Version, t Target) (Plan, error) {
	p := Plan{From: current, To: current}

	switch t.Kind {
	case TargetUp:
		p.Direction = DirectionUp
		p.Steps = ScheduleForMigration(migrations, current, migration.Zero)
		if len(p.Steps) == 0 {
			return p, ErrNoChangesRequired
		}
	case TargetDown:
		p.Direction = DirectionDown
		if current.IsZero() {
			return p, ErrNothingToRevert
		}

		m, idx := migrations.Find(current)
		if m == nil {
			return p, &UnknownVersionError{Version: current}
		}

		p.Steps = migration.Migrations{m}
		if idx > 0 {
			p.To = migrations[idx-1].Version
		} else {
			p.To = migration.Zero
		}

		return p, nil
	case TargetVersion:
		return resolveVersion(migrations, current, t.Version, p)
	default:
		return p, ErrInvalidTarget
	}

	p.To = p.Steps[len(p.Steps)-1].Version

	return p, nil
}

func resolveVersion(migrations migration.Migrations, current, target migration.Version, p Plan) (Plan, error) {
	if !target.IsZero() {
		if m, _ := migrations.Find(target); m == nil {
			return p, &UnknownVersionError{Version: target}
		}
	}

	switch cmp := target.Compare(current); {
	case cmp == 0:
		return p, ErrAlreadyAtVersion
	case cmp > 0:
		p.Direction = DirectionUp
		p.Steps = ScheduleForMigration(migrations, current, target)
	default:
		if m, _ := migrations.Find(current); m == nil {
			return p, &UnknownVersionError{Version: current}
		}

		p.Direction = DirectionDown
		p.Steps = ScheduleForRollback(migrations, target, current)
	}

	p.To = target

	return p, nil
}

// ScheduleForMigration selects migrations in (after, upTo] ascending, a zero
// upTo means no upper bound
func ScheduleForMigration(migrations migration.Migrations, after, upTo migration.Version) migration.Migrations {
	var scheduled migration.Migrations

	for i := range migrations {
		if migrations[i].Version.Compare(after) <= 0 {
			continue
		}

		if !upTo.IsZero() && migrations[i].Version.Compare(upTo) > 0 {
			break
		}

		scheduled = append(scheduled, migrations[i])
	}

	return scheduled
}

// ScheduleForRollback selects migrations in (downTo, from] descending
func ScheduleForRollback(migrations migration.Migrations, downTo, from migration.Version) migration.Migrations {
	var scheduled migration.Migrations

	for i := len(migrations) - 1; i >= 0; i-- {
		if migrations[i].Version.Compare(from) > 0 {
			continue
		}

		if migrations[i].Version.Compare(downTo) <= 0 {
			break
		}

		scheduled = append(scheduled, migrations[i])
	}

	return scheduled
}
