package seed

import (
	"context"
	"encoding/json"

	"github.com/lupa/roster/internal/logger"
	"github.com/lupa/roster/internal/users"
	"github.com/pkg/errors"
)

type Routine interface {
	Name() string
	Run(ctx context.Context) error
}

// Seeder runs a fixed list of routines in order and stops at the first
// failure
type Seeder struct {
	lg       logger.Logger
	routines []Routine
}

func New(lg logger.Logger, routines ...Routine) *Seeder {
	if lg == nil {
		lg = logger.NullLogger{}
	}

	return &Seeder{lg: lg, routines: routines}
}

func (s *Seeder) Run(ctx context.Context) error {
	for _, r := range s.routines {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.lg.Debugf("seeding %s", r.Name())

		if err := r.Run(ctx); err != nil {
			return errors.Wrapf(err, "seed routine %s failed", r.Name())
		}

		s.lg.Successf("seeded %s", r.Name())
	}

	return nil
}

type UserCreator interface {
	Create(ctx context.Context, in users.Input) (users.User, error)
}

type Users struct {
	creator UserCreator
	rows    []users.Input
}

func NewUsers(creator UserCreator) *Users {
	return &Users{creator: creator, rows: defaultUsers()}
}

func (u *Users) Name() string {
	return "users"
}

func (u *Users) Run(ctx context.Context) error {
	for _, row := range u.rows {
		if _, err := u.creator.Create(ctx, row); err != nil {
			var ve users.ValidationErrors
			if errors.As(err, &ve) {
				b, _ := json.Marshal(ve)
				return errors.Errorf("User could not be created. Errors: %s", b)
			}

			return errors.Wrap(err, "User could not be created")
		}
	}

	return nil
}

func defaultUsers() []users.Input {
	row := func(name, email string) users.Input {
		password := "password"
		return users.Input{Name: &name, Email: &email, Password: &password}
	}

	return []users.Input{
		row("John Doe", "john@doe.tld"),
		row("Mary Doe", "mary@doe.tld"),
		row("Nathan Doe", "nathan@doe.tld"),
	}
}
