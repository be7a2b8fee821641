package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/db"
)

var permissionDescriptions = map[string]string{
	authz.PermBugRead:    "Read bug reports",
	authz.PermBugCreate:  "File new bug reports",
	authz.PermBugUpdate:  "Update bug reports",
	authz.PermBugDelete:  "Delete bug reports",
	authz.PermBugResolve: "Resolve assigned bug reports",
	authz.PermBugAssign:  "Assign bug reports to developers",
	authz.PermUserRead:   "Read user accounts",
	authz.PermUserUpdate: "Update user accounts",
	authz.PermUserDelete: "Delete user accounts",
}

var roleDescriptions = map[authz.Role]string{
	authz.RoleAdministrator: "Full access to every resource",
	authz.RoleManager:       "Oversees triage, prioritisation and assignment",
	authz.RoleDeveloper:     "Works on assigned bug reports",
	authz.RoleQA:            "Files, verifies and curates bug reports",
}

// Seed upserts the permission catalog, the four system roles and the
// role-permission grants. It is idempotent and safe to run on every start.
func (s *Service) Seed(ctx context.Context, log *slog.Logger) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return seedCatalog(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("rbac seed: %w", err)
	}
	if log != nil {
		log.InfoContext(ctx, "rbac catalog seeded",
			slog.Int("permissions", len(authz.Catalog())),
			slog.Int("roles", len(roleDescriptions)))
	}
	return nil
}

func seedCatalog(ctx context.Context, tx pgx.Tx) error {
	for _, name := range authz.Catalog() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO permissions (name, description)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description`,
			name, permissionDescriptions[name]); err != nil {
			return fmt.Errorf("permission %s: %w", name, err)
		}
	}

	for role, description := range roleDescriptions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO roles (name, description, is_system)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, is_system = TRUE`,
			string(role), description); err != nil {
			return fmt.Errorf("role %s: %w", role, err)
		}

		// Grants are replaced wholesale so that removed catalog entries do
		// not linger from earlier deployments.
		if _, err := tx.Exec(ctx, `
			DELETE FROM role_permissions
			WHERE role_id = (SELECT id FROM roles WHERE name = $1)`, string(role)); err != nil {
			return fmt.Errorf("clear grants for %s: %w", role, err)
		}
		for _, perm := range authz.RoleGrants(role) {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				SELECT r.id, p.id FROM roles r, permissions p
				WHERE r.name = $1 AND p.name = $2`, string(role), perm); err != nil {
				return fmt.Errorf("grant %s to %s: %w", perm, role, err)
			}
		}
	}
	return nil
}
