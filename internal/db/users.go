package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/arlo/taskmill/internal/model"
)

// CreateUser registers a new account. The password hash is computed by the
// caller; the store never sees plaintext credentials.
func (db *DB) CreateUser(email, name, passwordHash string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	id := uuid.New().String()
	now := db.now()

	_, err := db.Exec(`
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, email, name, passwordHash, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return &model.User{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetUserByEmail returns the user with the given email, or ErrNotFound.
func (db *DB) GetUserByEmail(email string) (*model.User, error) {
	return db.scanUser(db.QueryRow(`
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email))))
}

// GetUser returns the user with the given id, or ErrNotFound.
func (db *DB) GetUser(id string) (*model.User, error) {
	return db.scanUser(db.QueryRow(`
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE id = ?
	`, id))
}

func (db *DB) scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
