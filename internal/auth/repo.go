package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
)

// Repository defines persistence required by authentication.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, name, email, passwordHash string, role authz.Role) (*Account, error)
}

// PostgresRepository is a pgx implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository backed by pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// FindByEmail loads an account together with its role name.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.name, r.name, u.password_hash, u.is_active, u.created_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE LOWER(u.email) = LOWER($1)`, strings.TrimSpace(email)).
		Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.PasswordHash, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a new active account. A duplicate email maps to
// httpx.ErrDuplicate via the unique-violation SQLSTATE.
func (r *PostgresRepository) Create(ctx context.Context, name, email, passwordHash string, role authz.Role) (*Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role_id, is_active)
		VALUES ($1, LOWER($2), $3, (SELECT id FROM roles WHERE name = $4), TRUE)
		RETURNING id, email, name, password_hash, is_active, created_at`,
		strings.TrimSpace(name), strings.TrimSpace(email), passwordHash, string(role)).
		Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("auth: email already registered: %w", httpx.ErrDuplicate)
		}
		return nil, err
	}
	a.Role = role
	return &a, nil
}
