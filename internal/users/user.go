package users

import (
	"encoding/json"
	"time"
)

// User is an immutable snapshot of a row of the users table
type User struct {
	id           int64
	name         string
	email        string
	passwordHash string
	configs      map[string]interface{}
	createdAt    time.Time
	updatedAt    time.Time
}

func (u User) ID() int64 {
	return u.id
}

func (u User) Name() string {
	return u.name
}

func (u User) Email() string {
	return u.email
}

func (u User) PasswordHash() string {
	return u.passwordHash
}

// Configs returns a copy of the user settings
func (u User) Configs() map[string]interface{} {
	result := make(map[string]interface{}, len(u.configs))
	for k, v := range u.configs {
		result[k] = v
	}

	return result
}

func (u User) CreatedAt() time.Time {
	return u.createdAt
}

func (u User) UpdatedAt() time.Time {
	return u.updatedAt
}

type row struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	Configs   string    `db:"configs"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r row) toUser() (User, error) {
	configs := make(map[string]interface{})
	if r.Configs != "" {
		if err := json.Unmarshal([]byte(r.Configs), &configs); err != nil {
			return User{}, err
		}
	}

	return User{
		id:           r.ID,
		name:         r.Name,
		email:        r.Email,
		passwordHash: r.Password,
		configs:      configs,
		createdAt:    r.CreatedAt,
		updatedAt:    r.UpdatedAt,
	}, nil
}
