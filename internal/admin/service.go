// Package admin exposes administrator-only views: tracker statistics and the
// audit timeline.
package admin

import (
	"context"
	"time"
)

// Stats aggregates tracker-wide counts.
type Stats struct {
	BugsByStatus   map[string]int `json:"bugs_by_status"`
	UsersByRole    map[string]int `json:"users_by_role"`
	OpenBugs       int            `json:"open_bugs"`
	TotalBugs      int            `json:"total_bugs"`
	TotalUsers     int            `json:"total_users"`
	ActiveAccounts int            `json:"active_accounts"`
}

// TimelineFilters narrows the audit listing.
type TimelineFilters struct {
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit entry as the API returns it.
type TimelineRow struct {
	ID         int64          `json:"id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows     []TimelineRow `json:"rows"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
}

// Repository provides the aggregate queries the admin views need.
type Repository interface {
	CollectStats(ctx context.Context) (Stats, error)
	Timeline(ctx context.Context, f TimelineFilters) ([]TimelineRow, int, error)
}

// Service coordinates admin data retrieval.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Stats returns tracker-wide aggregates.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.CollectStats(ctx)
}

// Timeline fetches audit entries with paging. Page size is clamped to keep
// the endpoint cheap.
func (s *Service) Timeline(ctx context.Context, f TimelineFilters) (Result, error) {
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 50 {
		f.PageSize = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	rows, total, err := s.repo.Timeline(ctx, f)
	if err != nil {
		return Result{}, err
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Page: f.Page, PageSize: f.PageSize, Total: total}, nil
}
