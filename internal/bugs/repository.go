package bugs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
	"github.com/bugtrap/bugtrap/internal/shared"
)

// Filter narrows a listing. ReportedBy and AssignedTo combine with OR: a row
// matches when it belongs to the principal through either relationship.
// Status and Priority are plain AND filters from query parameters.
type Filter struct {
	ReportedBy *int64
	AssignedTo *int64
	Status     Status
	Priority   Priority
}

// Repository provides PostgreSQL backed persistence for bug reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Listing and detail queries join the reporter and assignee so responses can
// show names without a second round trip.
const bugSelect = `
	SELECT b.id, b.title, b.description, b.expected_behavior, b.actual_behavior,
		b.status, b.priority, b.reported_by, reporter.name, b.assigned_to, assignee.name,
		b.attachments, b.created_at, b.updated_at
	FROM bugs b
	JOIN users reporter ON reporter.id = b.reported_by
	LEFT JOIN users assignee ON assignee.id = b.assigned_to`

func scanBug(row pgx.Row) (Bug, error) {
	var b Bug
	var assigneeName *string
	err := row.Scan(&b.ID, &b.Title, &b.Description, &b.ExpectedBehavior, &b.ActualBehavior,
		&b.Status, &b.Priority, &b.ReportedBy, &b.ReporterName, &b.AssignedTo, &assigneeName,
		&b.Attachments, &b.CreatedAt, &b.UpdatedAt)
	if assigneeName != nil {
		b.AssigneeName = *assigneeName
	}
	return b, err
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any

	var owner []string
	if f.ReportedBy != nil {
		args = append(args, *f.ReportedBy)
		owner = append(owner, fmt.Sprintf("b.reported_by = $%d", len(args)))
	}
	if f.AssignedTo != nil {
		args = append(args, *f.AssignedTo)
		owner = append(owner, fmt.Sprintf("b.assigned_to = $%d", len(args)))
	}
	if len(owner) > 0 {
		clauses = append(clauses, "("+strings.Join(owner, " OR ")+")")
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("b.status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		clauses = append(clauses, fmt.Sprintf("b.priority = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns bugs matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f Filter, p shared.Pagination) ([]Bug, int, error) {
	where, args := f.where()

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM bugs b"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("%s%s ORDER BY b.created_at DESC LIMIT $%d OFFSET $%d",
		bugSelect, where, len(args)+1, len(args)+2)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Bug
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// GetByID fetches one bug.
func (r *Repository) GetByID(ctx context.Context, id int64) (Bug, error) {
	b, err := scanBug(r.pool.QueryRow(ctx, bugSelect+" WHERE b.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bug{}, httpx.ErrNotFound
		}
		return Bug{}, err
	}
	return b, nil
}

// Create inserts a new bug report.
func (r *Repository) Create(ctx context.Context, b Bug) (Bug, error) {
	if b.Attachments == nil {
		b.Attachments = []string{}
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bugs (title, description, expected_behavior, actual_behavior, status, priority, reported_by, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		b.Title, b.Description, b.ExpectedBehavior, b.ActualBehavior, b.Status, b.Priority, b.ReportedBy, b.Attachments).Scan(&id)
	if err != nil {
		return Bug{}, err
	}
	return r.GetByID(ctx, id)
}

// Update applies the given field changes and returns the updated bug. The
// changes map is expected to be pre-filtered by the capability layer.
func (r *Repository) Update(ctx context.Context, id int64, changes map[string]any) (Bug, error) {
	if len(changes) == 0 {
		return r.GetByID(ctx, id)
	}

	set := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+1)
	for field, value := range changes {
		switch field {
		case FieldTitle, FieldDescription, FieldExpectedBehavior, FieldActualBehavior,
			FieldStatus, FieldPriority, FieldAttachments:
			args = append(args, value)
			set = append(set, fmt.Sprintf("%s = $%d", field, len(args)))
		default:
			return Bug{}, fmt.Errorf("bugs: unknown field %q: %w", field, httpx.ErrValidation)
		}
	}
	set = append(set, "updated_at = NOW()")
	args = append(args, id)

	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf("UPDATE bugs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args)), args...)
	if err != nil {
		return Bug{}, err
	}
	if tag.RowsAffected() == 0 {
		return Bug{}, httpx.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Assign sets the assignee and moves the bug into the assigned state.
func (r *Repository) Assign(ctx context.Context, id, assigneeID int64) (Bug, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bugs SET assigned_to = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		assigneeID, StatusAssigned, id)
	if err != nil {
		return Bug{}, err
	}
	if tag.RowsAffected() == 0 {
		return Bug{}, httpx.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// SetStatus moves the bug into the given state.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) (Bug, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bugs SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return Bug{}, err
	}
	if tag.RowsAffected() == 0 {
		return Bug{}, httpx.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a bug report.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bugs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// AssigneeRole returns the role of a prospective assignee. Assignment demands
// a developer, so the service checks this before handing the bug over.
func (r *Repository) AssigneeRole(ctx context.Context, userID int64) (authz.Role, error) {
	var role authz.Role
	err := r.pool.QueryRow(ctx, `
		SELECT r.name FROM users u JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1 AND u.is_active`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", httpx.ErrNotFound
		}
		return "", err
	}
	return role, nil
}
