// Package users manages teacher and admin accounts in Postgres.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is one account. Teachers carry an assigned grade and class; admins
// leave both empty.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Grade     *int      `json:"grade,omitempty"`
	Class     *string   `json:"class,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	passwordHash string
}

// ErrInvalidCredentials is returned by Authenticate for a bad email or
// password; callers must not distinguish which.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailTaken is returned by Create when the email already exists.
var ErrEmailTaken = errors.New("email already registered")

// Repository persists accounts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account with a bcrypt-hashed password.
func (r *Repository) Create(ctx context.Context, email, name, role, password string, grade *int, class *string) (User, error) {
	if email == "" || password == "" {
		return User{}, errors.New("email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	u := User{ID: uuid.NewString(), Email: email, Name: name, Role: role, Grade: grade, Class: class}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, role, grade, class, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (email) DO NOTHING
		RETURNING created_at
	`, u.ID, u.Email, u.Name, u.Role, u.Grade, u.Class, string(hash))
	if err := row.Scan(&u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

// GetByEmail returns an account by email, nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, grade, class, password_hash, created_at
		FROM users WHERE lower(email) = lower($1)
	`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Grade, &u.Class, &u.passwordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Authenticate checks credentials and returns the account.
func (r *Repository) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if u == nil {
		return User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return *u, nil
}

// List returns all accounts with a given role, ordered by name.
func (r *Repository) List(ctx context.Context, role string) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, name, role, grade, class, created_at
		FROM users WHERE role = $1
		ORDER BY name, email
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Grade, &u.Class, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Patch carries optional account updates.
type Patch struct {
	Name  *string
	Grade *int
	Class *string
}

// Update applies a partial update to one account.
func (r *Repository) Update(ctx context.Context, id string, p Patch) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET name  = COALESCE($2, name),
		    grade = COALESCE($3, grade),
		    class = COALESCE($4, class)
		WHERE id = $1
	`, id, p.Name, p.Grade, p.Class)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user %s not found", id)
	}
	return nil
}

// Delete removes one account.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}
