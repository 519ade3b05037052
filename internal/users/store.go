package users

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lupa/roster/internal/database/sqlgateway"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTable   = "users"
	DefaultPerPage = 2
)

var ErrNotFound = errors.New("user not found")

type (
	Store struct {
		txm      sqlgateway.TxManager
		validate *validator.Validate
		clock    func() time.Time
		hashCost int
	}

	StoreOption func(s *Store)

	// Page is one page of users ordered by id
	Page struct {
		Users    []User
		Page     int
		PerPage  int
		Total    int
		LastPage int
	}
)

func WithHashCost(cost int) StoreOption {
	return func(s *Store) {
		s.hashCost = cost
	}
}

func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.clock = clock
	}
}

func NewStore(db *sqlx.DB, opts ...StoreOption) *Store {
	s := &Store{
		txm:      sqlgateway.NewTxManager(db),
		validate: newValidator(),
		clock:    time.Now,
		hashCost: bcrypt.DefaultCost,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

const selectColumns = "SELECT id, name, email, password, configs, created_at, updated_at FROM users"

// Paginate returns the requested page, pages below 1 are treated as the
// first one
func (s *Store) Paginate(ctx context.Context, page, perPage int) (Page, error) {
	if page < 1 {
		page = 1
	}

	if perPage < 1 {
		perPage = DefaultPerPage
	}

	p := Page{Page: page, PerPage: perPage}

	err := s.txm.ReadOnly(ctx, func(ctx context.Context, tx sqlgateway.Tx) error {
		if err := tx.GetContext(ctx, &p.Total, "SELECT COUNT(*) FROM users"); err != nil {
			return errors.Wrap(err, "could not count users")
		}

		var rows []row
		q := tx.Rebind(selectColumns + " ORDER BY id LIMIT ? OFFSET ?")
		if err := tx.SelectContext(ctx, &rows, q, perPage, (page-1)*perPage); err != nil {
			return errors.Wrapf(err, "could not select users page %d", page)
		}

		for _, r := range rows {
			u, err := r.toUser()
			if err != nil {
				return errors.Wrapf(err, "user %d has malformed configs", r.ID)
			}

			p.Users = append(p.Users, u)
		}

		return nil
	})

	if err != nil {
		return Page{}, err
	}

	p.LastPage = (p.Total + perPage - 1) / perPage
	if p.LastPage < 1 {
		p.LastPage = 1
	}

	return p, nil
}

func (s *Store) Find(ctx context.Context, id int64) (User, error) {
	var r row

	err := s.txm.ReadWithoutIsolation(ctx, func(ctx context.Context, tx sqlgateway.Tx) error {
		return tx.GetContext(ctx, &r, tx.Rebind(selectColumns+" WHERE id = ?"), id)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return User{}, errors.Wrapf(ErrNotFound, "id %d", id)
	}

	if err != nil {
		return User{}, errors.Wrapf(err, "could not find user %d", id)
	}

	return r.toUser()
}

// Create validates the input, hashes the password and inserts the user.
// Validation failures come back as ValidationErrors.
func (s *Store) Create(ctx context.Context, in Input) (User, error) {
	if errs := validateInput(s.validate, in, false); errs != nil {
		return User{}, errs
	}

	hash, err := s.hash(*in.Password)
	if err != nil {
		return User{}, err
	}

	configs := "{}"
	if in.Configs != nil && *in.Configs != "" {
		configs = *in.Configs
	}

	now := s.clock().UTC()
	var id int64

	err = s.txm.ReadWrite(ctx, func(ctx context.Context, tx sqlgateway.Tx) error {
		if err := s.checkUniqueEmail(ctx, tx, *in.Email, 0); err != nil {
			return err
		}

		args := []interface{}{*in.Name, *in.Email, hash, configs, now, now}
		q := "INSERT INTO users (name, email, password, configs, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"

		if sqlx.BindType(tx.DriverName()) == sqlx.DOLLAR {
			return tx.GetContext(ctx, &id, tx.Rebind(q+" RETURNING id"), args...)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
		if err != nil {
			return errors.Wrap(err, "could not insert user")
		}

		id, err = res.LastInsertId()

		return err
	})

	if err != nil {
		return User{}, err
	}

	return s.Find(ctx, id)
}

// Update applies a partial update. An email equal to the current one is
// ignored so it does not trip the uniqueness check.
func (s *Store) Update(ctx context.Context, id int64, in Input) (User, error) {
	current, err := s.Find(ctx, id)
	if err != nil {
		return User{}, err
	}

	if in.Email != nil && *in.Email == current.Email() {
		in.Email = nil
	}

	if errs := validateInput(s.validate, in, true); errs != nil {
		return User{}, errs
	}

	sets := []string{}
	args := []interface{}{}

	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}

	if in.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *in.Email)
	}

	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return User{}, err
		}

		sets = append(sets, "password = ?")
		args = append(args, hash)
	}

	if in.Configs != nil {
		configs := *in.Configs
		if configs == "" {
			configs = "{}"
		}

		sets = append(sets, "configs = ?")
		args = append(args, configs)
	}

	if len(sets) == 0 {
		return current, nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, s.clock().UTC(), id)

	err = s.txm.ReadWrite(ctx, func(ctx context.Context, tx sqlgateway.Tx) error {
		if in.Email != nil {
			if err := s.checkUniqueEmail(ctx, tx, *in.Email, id); err != nil {
				return err
			}
		}

		q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
			return errors.Wrapf(err, "could not update user %d", id)
		}

		return nil
	})

	if err != nil {
		return User{}, err
	}

	return s.Find(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	var affected int64

	err := s.txm.ReadWithoutIsolation(ctx, func(ctx context.Context, tx sqlgateway.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM users WHERE id = ?"), id)
		if err != nil {
			return err
		}

		affected, err = res.RowsAffected()

		return err
	})

	if err != nil {
		return errors.Wrapf(err, "could not delete user %d", id)
	}

	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "id %d", id)
	}

	return nil
}

// Verify checks a user's credentials, unknown emails are not an error
func (s *Store) Verify(ctx context.Context, email, password string) (bool, error) {
	var hash string

	err := s.txm.ReadWithoutIsolation(ctx, func(ctx context.Context, tx sqlgateway.Tx) error {
		return tx.GetContext(ctx, &hash, tx.Rebind("SELECT password FROM users WHERE email = ?"), email)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, errors.Wrap(err, "could not read user credentials")
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// Ping waits for the database to answer
func (s *Store) Ping(ctx context.Context) error {
	return s.txm.Ping(ctx)
}

func (s *Store) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", errors.Wrap(err, "could not hash password")
	}

	return string(b), nil
}

func (s *Store) checkUniqueEmail(ctx context.Context, tx sqlgateway.Tx, email string, exceptID int64) error {
	var count int
	q := tx.Rebind("SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?")
	if err := tx.GetContext(ctx, &count, q, email, exceptID); err != nil {
		return errors.Wrap(err, "could not check email uniqueness")
	}

	if count > 0 {
		return ValidationErrors{"email": message("email", "unique", "")}
	}

	return nil
}

