package users

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
	"github.com/bugtrap/bugtrap/internal/shared"
)

// RepositoryPort defines data access methods for user accounts.
type RepositoryPort interface {
	List(ctx context.Context, f Filter, p shared.Pagination) ([]User, int, error)
	GetByID(ctx context.Context, id int64) (User, error)
	Update(ctx context.Context, id int64, changes map[string]any) (User, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort records account mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles account business logic behind the capability engine.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns the accounts visible to the principal. Administrators see
// everyone; everyone else is scoped down to their own account.
func (s *Service) List(ctx context.Context, rs *authz.RuleSet, page shared.Pagination) ([]User, shared.Pagination, error) {
	scope := rs.ReadScope(authz.ResourceUser)

	var filter Filter
	switch {
	case scope.All:
		// no restriction
	case slices.Contains(scope.PrincipalFields, authz.FieldID):
		selfID, err := strconv.ParseInt(rs.Principal().ID, 10, 64)
		if err != nil {
			return nil, page, fmt.Errorf("users: principal id: %w", httpx.ErrForbidden)
		}
		filter.IDs = []int64{selfID}
	default:
		return nil, page, httpx.ErrForbidden
	}

	list, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, page, err
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Get returns one account if the principal may read it.
func (s *Service) Get(ctx context.Context, rs *authz.RuleSet, id int64) (User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	res := u.Resource()
	if !rs.Can(authz.ActionRead, authz.ResourceUser, &res, "") {
		return User{}, httpx.ErrForbidden
	}
	return u, nil
}

// Update applies field changes to an account. Fields the principal may not
// write are stripped; if nothing survives the update is rejected.
func (s *Service) Update(ctx context.Context, rs *authz.RuleSet, id int64, changes map[string]any) (User, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	res := current.Resource()
	if !rs.Can(authz.ActionUpdate, authz.ResourceUser, &res, "") {
		return User{}, httpx.ErrForbidden
	}

	allowed := authz.FilterWritableFields(rs, authz.ActionUpdate, authz.ResourceUser, &res, changes)
	if len(allowed) == 0 {
		return User{}, httpx.ErrNoWritableFields
	}

	if role, ok := allowed[FieldRole]; ok {
		name, _ := role.(string)
		if !authz.KnownRole(authz.Role(name)) {
			return User{}, fmt.Errorf("users: unknown role %q: %w", name, httpx.ErrValidation)
		}
	}

	updated, err := s.repo.Update(ctx, id, allowed)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, rs, "user.update", updated.ID, map[string]any{"fields": fieldNames(allowed)})
	return updated, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, rs *authz.RuleSet, id int64) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	res := current.Resource()
	if !rs.Can(authz.ActionDelete, authz.ResourceUser, &res, "") {
		return httpx.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, rs, "user.delete", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, rs *authz.RuleSet, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  rs.Principal().ID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

func fieldNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
