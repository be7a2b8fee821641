package bugs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
	"github.com/bugtrap/bugtrap/internal/shared"
)

// RepositoryPort defines data access methods for bug reports.
type RepositoryPort interface {
	List(ctx context.Context, f Filter, p shared.Pagination) ([]Bug, int, error)
	GetByID(ctx context.Context, id int64) (Bug, error)
	Create(ctx context.Context, b Bug) (Bug, error)
	Update(ctx context.Context, id int64, changes map[string]any) (Bug, error)
	Assign(ctx context.Context, id, assigneeID int64) (Bug, error)
	SetStatus(ctx context.Context, id int64, status Status) (Bug, error)
	Delete(ctx context.Context, id int64) error
	AssigneeRole(ctx context.Context, userID int64) (authz.Role, error)
}

// Notifier fans bug events out to interested parties. The worker picks the
// enqueued tasks up asynchronously; failures never fail the request.
type Notifier interface {
	BugAssigned(ctx context.Context, bug Bug, assigneeID int64) error
	BugResolved(ctx context.Context, bug Bug) error
}

// AuditPort records bug mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles bug business logic behind the capability engine.
type Service struct {
	repo     RepositoryPort
	notifier Notifier
	audit    AuditPort
	logger   *slog.Logger
}

// NewService builds a Service instance. notifier and audit may be nil.
func NewService(repo RepositoryPort, notifier Notifier, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, audit: audit, logger: logger}
}

// Query carries listing parameters from the HTTP layer.
type Query struct {
	Status   Status
	Priority Priority
	Page     shared.Pagination
}

// List returns the bugs visible to the principal. Developers see bugs they
// reported or were assigned; everyone else with bug:read sees all of them.
func (s *Service) List(ctx context.Context, rs *authz.RuleSet, q Query) ([]Bug, shared.Pagination, error) {
	if q.Status != "" && !KnownStatus(q.Status) {
		return nil, q.Page, fmt.Errorf("bugs: unknown status %q: %w", q.Status, httpx.ErrValidation)
	}
	if q.Priority != "" && !KnownPriority(q.Priority) {
		return nil, q.Page, fmt.Errorf("bugs: unknown priority %q: %w", q.Priority, httpx.ErrValidation)
	}

	filter := Filter{Status: q.Status, Priority: q.Priority}
	scope := rs.ReadScope(authz.ResourceBug)
	switch {
	case scope.All:
		// no ownership restriction
	case scope.None():
		return nil, q.Page, httpx.ErrForbidden
	default:
		selfID, err := strconv.ParseInt(rs.Principal().ID, 10, 64)
		if err != nil {
			return nil, q.Page, fmt.Errorf("bugs: principal id: %w", httpx.ErrForbidden)
		}
		if slices.Contains(scope.PrincipalFields, authz.FieldReportedBy) {
			filter.ReportedBy = &selfID
		}
		if slices.Contains(scope.PrincipalFields, authz.FieldAssignedTo) {
			filter.AssignedTo = &selfID
		}
		if filter.ReportedBy == nil && filter.AssignedTo == nil {
			return nil, q.Page, httpx.ErrForbidden
		}
	}

	list, total, err := s.repo.List(ctx, filter, q.Page)
	if err != nil {
		return nil, q.Page, err
	}
	return list, shared.NewPagination(q.Page.Page, q.Page.PerPage, total), nil
}

// Get returns one bug if the principal may read it, together with the set of
// follow-up operations the principal may perform on it.
func (s *Service) Get(ctx context.Context, rs *authz.RuleSet, id int64) (Bug, Access, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Bug{}, Access{}, err
	}
	res := b.Resource()
	if !rs.Can(authz.ActionRead, authz.ResourceBug, &res, "") {
		return Bug{}, Access{}, httpx.ErrForbidden
	}
	return b, s.access(rs, &res), nil
}

func (s *Service) access(rs *authz.RuleSet, res *authz.Resource) Access {
	return Access{
		Update:  rs.Can(authz.ActionUpdate, authz.ResourceBug, res, ""),
		Delete:  rs.Can(authz.ActionDelete, authz.ResourceBug, res, ""),
		Resolve: rs.Can(authz.ActionResolve, authz.ResourceBug, res, ""),
		Assign:  rs.Can(authz.ActionAssign, authz.ResourceBug, res, ""),
		Close:   rs.Can(authz.ActionClose, authz.ResourceBug, res, ""),
		Reopen:  rs.Can(authz.ActionReopen, authz.ResourceBug, res, ""),
	}
}

// Draft carries the fields a reporter supplies when filing a bug.
type Draft struct {
	Title            string
	Description      string
	ExpectedBehavior string
	ActualBehavior   string
	Priority         Priority
	Attachments      []string
}

// Create files a new bug report on behalf of the principal.
func (s *Service) Create(ctx context.Context, rs *authz.RuleSet, draft Draft) (Bug, error) {
	if !rs.Can(authz.ActionCreate, authz.ResourceBug, nil, "") {
		return Bug{}, httpx.ErrForbidden
	}
	if draft.Priority == "" {
		draft.Priority = PriorityMedium
	}
	if !KnownPriority(draft.Priority) {
		return Bug{}, fmt.Errorf("bugs: unknown priority %q: %w", draft.Priority, httpx.ErrValidation)
	}
	reporterID, err := strconv.ParseInt(rs.Principal().ID, 10, 64)
	if err != nil {
		return Bug{}, fmt.Errorf("bugs: principal id: %w", httpx.ErrForbidden)
	}

	created, err := s.repo.Create(ctx, Bug{
		Title:            draft.Title,
		Description:      draft.Description,
		ExpectedBehavior: draft.ExpectedBehavior,
		ActualBehavior:   draft.ActualBehavior,
		Status:           StatusOpen,
		Priority:         draft.Priority,
		ReportedBy:       reporterID,
		Attachments:      draft.Attachments,
	})
	if err != nil {
		return Bug{}, err
	}
	s.recordAudit(ctx, rs, "bug.create", created.ID, nil)
	return created, nil
}

// Update applies field changes to a bug. Fields the principal may not write
// are stripped; if nothing survives the update is rejected.
func (s *Service) Update(ctx context.Context, rs *authz.RuleSet, id int64, changes map[string]any) (Bug, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Bug{}, err
	}
	res := current.Resource()
	if !rs.Can(authz.ActionUpdate, authz.ResourceBug, &res, "") {
		return Bug{}, httpx.ErrForbidden
	}

	allowed := authz.FilterWritableFields(rs, authz.ActionUpdate, authz.ResourceBug, &res, changes)
	if len(allowed) == 0 {
		return Bug{}, httpx.ErrNoWritableFields
	}
	if v, ok := allowed[FieldStatus]; ok {
		name, _ := v.(string)
		if !KnownStatus(Status(name)) {
			return Bug{}, fmt.Errorf("bugs: unknown status %q: %w", name, httpx.ErrValidation)
		}
	}
	if v, ok := allowed[FieldPriority]; ok {
		name, _ := v.(string)
		if !KnownPriority(Priority(name)) {
			return Bug{}, fmt.Errorf("bugs: unknown priority %q: %w", name, httpx.ErrValidation)
		}
	}

	updated, err := s.repo.Update(ctx, id, allowed)
	if err != nil {
		return Bug{}, err
	}
	s.recordAudit(ctx, rs, "bug.update", id, map[string]any{"fields": fieldNames(allowed)})
	return updated, nil
}

// Assign hands a bug to a developer and moves it into the assigned state.
func (s *Service) Assign(ctx context.Context, rs *authz.RuleSet, id, assigneeID int64) (Bug, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Bug{}, err
	}
	res := current.Resource()
	if !rs.Can(authz.ActionAssign, authz.ResourceBug, &res, "") {
		return Bug{}, httpx.ErrForbidden
	}
	if current.Status == StatusClosed {
		return Bug{}, fmt.Errorf("bugs: cannot assign a closed bug: %w", httpx.ErrValidation)
	}

	role, err := s.repo.AssigneeRole(ctx, assigneeID)
	if err != nil {
		return Bug{}, fmt.Errorf("bugs: assignee %d: %w", assigneeID, httpx.ErrValidation)
	}
	if role != authz.RoleDeveloper {
		return Bug{}, fmt.Errorf("bugs: assignee must be a developer: %w", httpx.ErrValidation)
	}

	updated, err := s.repo.Assign(ctx, id, assigneeID)
	if err != nil {
		return Bug{}, err
	}
	s.notify(ctx, "assigned", func() error { return s.notifier.BugAssigned(ctx, updated, assigneeID) })
	s.recordAudit(ctx, rs, "bug.assign", id, map[string]any{"assignee": assigneeID})
	return updated, nil
}

// Resolve marks a bug as fixed.
func (s *Service) Resolve(ctx context.Context, rs *authz.RuleSet, id int64) (Bug, error) {
	updated, err := s.transition(ctx, rs, id, authz.ActionResolve, StatusResolved, func(b Bug) error {
		if b.Status == StatusResolved || b.Status == StatusClosed {
			return fmt.Errorf("bugs: bug is already %s: %w", b.Status, httpx.ErrValidation)
		}
		return nil
	})
	if err != nil {
		return Bug{}, err
	}
	s.notify(ctx, "resolved", func() error { return s.notifier.BugResolved(ctx, updated) })
	return updated, nil
}

// Open moves a triaged bug back to the open pool.
func (s *Service) Open(ctx context.Context, rs *authz.RuleSet, id int64) (Bug, error) {
	return s.transition(ctx, rs, id, authz.ActionOpen, StatusOpen, func(b Bug) error {
		if b.Status == StatusOpen || b.Status == StatusClosed {
			return fmt.Errorf("bugs: bug is %s: %w", b.Status, httpx.ErrValidation)
		}
		return nil
	})
}

// Close shuts a bug for good.
func (s *Service) Close(ctx context.Context, rs *authz.RuleSet, id int64) (Bug, error) {
	return s.transition(ctx, rs, id, authz.ActionClose, StatusClosed, func(b Bug) error {
		if b.Status == StatusClosed {
			return fmt.Errorf("bugs: bug is already closed: %w", httpx.ErrValidation)
		}
		return nil
	})
}

// Reopen revives a resolved or closed bug.
func (s *Service) Reopen(ctx context.Context, rs *authz.RuleSet, id int64) (Bug, error) {
	return s.transition(ctx, rs, id, authz.ActionReopen, StatusReopened, func(b Bug) error {
		if b.Status != StatusClosed && b.Status != StatusResolved {
			return fmt.Errorf("bugs: only resolved or closed bugs can be reopened: %w", httpx.ErrValidation)
		}
		return nil
	})
}

// Delete removes a bug report.
func (s *Service) Delete(ctx context.Context, rs *authz.RuleSet, id int64) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	res := current.Resource()
	if !rs.Can(authz.ActionDelete, authz.ResourceBug, &res, "") {
		return httpx.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, rs, "bug.delete", id, nil)
	return nil
}

func (s *Service) transition(ctx context.Context, rs *authz.RuleSet, id int64, action authz.Action, to Status, check func(Bug) error) (Bug, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Bug{}, err
	}
	res := current.Resource()
	if !rs.Can(action, authz.ResourceBug, &res, "") {
		return Bug{}, httpx.ErrForbidden
	}
	if err := check(current); err != nil {
		return Bug{}, err
	}
	updated, err := s.repo.SetStatus(ctx, id, to)
	if err != nil {
		return Bug{}, err
	}
	s.recordAudit(ctx, rs, "bug."+string(action), id, map[string]any{"status": to})
	return updated, nil
}

func (s *Service) notify(ctx context.Context, event string, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		s.logger.WarnContext(ctx, "enqueue notification",
			slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (s *Service) recordAudit(ctx context.Context, rs *authz.RuleSet, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  rs.Principal().ID,
		Action:   action,
		Entity:   "bug",
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
