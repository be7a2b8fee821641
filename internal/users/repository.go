package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugtrap/bugtrap/internal/platform/httpx"
	"github.com/bugtrap/bugtrap/internal/shared"
	"github.com/bugtrap/bugtrap/internal/token"
)

// Filter narrows a listing to specific account IDs. A nil IDs slice means no
// restriction.
type Filter struct {
	IDs []int64
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `u.id, u.email, u.name, r.name, u.is_active, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// List returns accounts matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f Filter, p shared.Pagination) ([]User, int, error) {
	where := ""
	args := []any{}
	if f.IDs != nil {
		where = " WHERE u.id = ANY($1)"
		args = append(args, f.IDs)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users u"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM users u JOIN roles r ON r.id = u.role_id%s ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// GetByID fetches one account.
func (r *Repository) GetByID(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u JOIN roles r ON r.id = u.role_id WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, httpx.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// Update applies the given field changes and returns the updated account.
// The changes map is expected to be pre-filtered by the capability layer.
func (r *Repository) Update(ctx context.Context, id int64, changes map[string]any) (User, error) {
	if len(changes) == 0 {
		return r.GetByID(ctx, id)
	}

	set := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+1)
	for field, value := range changes {
		switch field {
		case FieldName, FieldEmail, FieldIsActive:
			args = append(args, value)
			set = append(set, fmt.Sprintf("%s = $%d", field, len(args)))
		case FieldRole:
			args = append(args, value)
			set = append(set, fmt.Sprintf("role_id = (SELECT id FROM roles WHERE name = $%d)", len(args)))
		default:
			return User{}, fmt.Errorf("users: unknown field %q: %w", field, httpx.ErrValidation)
		}
	}
	set = append(set, "updated_at = NOW()")
	args = append(args, id)

	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(set, ", "), len(args)), args...)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, httpx.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes an account.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Email returns the address for a user. The notification worker resolves
// recipients through this at processing time.
func (r *Repository) Email(ctx context.Context, userID int64) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1 AND is_active`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", httpx.ErrNotFound
		}
		return "", err
	}
	return email, nil
}

// AccountState reports whether the account behind a token subject is still
// live. Token verification calls this on every request.
func (r *Repository) AccountState(ctx context.Context, id string) (token.AccountState, error) {
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return token.AccountUnknown, nil
	}
	var active bool
	err = r.pool.QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1`, userID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return token.AccountUnknown, nil
		}
		return token.AccountUnknown, err
	}
	if !active {
		return token.AccountDisabled, nil
	}
	return token.AccountActive, nil
}
