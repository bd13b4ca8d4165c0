package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
}

type CreateUserParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUser inserts a user. params.Password must already be hashed.
func (c Client) CreateUser(params CreateUserParams) (*User, error) {
	now := time.Now().UTC()
	user := User{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Email:     params.Email,
		Password:  params.Password,
	}
	_, err := c.exec(`
		INSERT INTO users (id, created_at, updated_at, email, password)
		VALUES (?, ?, ?, ?, ?)`,
		user.ID.String(), user.CreatedAt, user.UpdatedAt, user.Email, user.Password,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c Client) GetUser(id uuid.UUID) (*User, error) {
	row := c.queryRow(`
		SELECT id, created_at, updated_at, email, password
		FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

func (c Client) GetUserByEmail(email string) (*User, error) {
	row := c.queryRow(`
		SELECT id, created_at, updated_at, email, password
		FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Password); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
