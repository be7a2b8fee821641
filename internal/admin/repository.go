package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/bugtrap/bugtrap/internal/bugs"
)

// PostgresRepository implements Repository on the shared pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CollectStats gathers the bug and user aggregates concurrently.
func (r *PostgresRepository) CollectStats(ctx context.Context) (Stats, error) {
	stats := Stats{
		BugsByStatus: map[string]int{},
		UsersByRole:  map[string]int{},
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM bugs GROUP BY status`)
		if err != nil {
			return fmt.Errorf("admin: bug counts: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var status string
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			mu.Lock()
			stats.BugsByStatus[status] = count
			stats.TotalBugs += count
			if status != string(bugs.StatusClosed) && status != string(bugs.StatusResolved) {
				stats.OpenBugs += count
			}
			mu.Unlock()
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT r.name, COUNT(*), COUNT(*) FILTER (WHERE u.is_active)
			FROM users u JOIN roles r ON r.id = u.role_id
			GROUP BY r.name`)
		if err != nil {
			return fmt.Errorf("admin: user counts: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var role string
			var count, active int
			if err := rows.Scan(&role, &count, &active); err != nil {
				return err
			}
			mu.Lock()
			stats.UsersByRole[role] = count
			stats.TotalUsers += count
			stats.ActiveAccounts += active
			mu.Unlock()
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Timeline pages through audit_logs with optional actor/entity/action filters.
func (r *PostgresRepository) Timeline(ctx context.Context, f TimelineFilters) ([]TimelineRow, int, error) {
	var clauses []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("actor_id", f.Actor)
	add("entity", f.Entity)
	add("action", f.Action)

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, actor_id, action, entity, entity_id, meta, occurred_at
		FROM audit_logs%s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var meta []byte
		if err := rows.Scan(&row.ID, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta, &row.OccurredAt); err != nil {
			return nil, 0, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &row.Meta)
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}
