package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRow is the persisted user record.
type UserRow struct {
	ID           uuid.UUID
	Nombre       string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Store defines the user lookups the auth service needs.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (UserRow, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (UserRow, error)
}

// PGStore is the pgx-backed Store.
type PGStore struct {
	Pool *pgxpool.Pool
}

const userColumns = `id, nombre, username, password_hash, role, created_at`

// GetUserByUsername loads a user by its unique username.
func (s PGStore) GetUserByUsername(ctx context.Context, username string) (UserRow, error) {
	var u UserRow
	err := s.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM usuarios WHERE username = $1`, username,
	).Scan(&u.ID, &u.Nombre, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

// GetUserByID loads a user by primary key.
func (s PGStore) GetUserByID(ctx context.Context, id uuid.UUID) (UserRow, error) {
	var u UserRow
	err := s.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM usuarios WHERE id = $1`, id,
	).Scan(&u.ID, &u.Nombre, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}
