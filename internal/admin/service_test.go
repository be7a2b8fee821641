package admin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugtrap/bugtrap/internal/admin"
	_ "github.com/bugtrap/bugtrap/testing"
)

type stubRepo struct {
	stats   admin.Stats
	rows    []admin.TimelineRow
	total   int
	gotSize int
	gotPage int
}

func (r *stubRepo) CollectStats(ctx context.Context) (admin.Stats, error) {
	return r.stats, nil
}

func (r *stubRepo) Timeline(ctx context.Context, f admin.TimelineFilters) ([]admin.TimelineRow, int, error) {
	r.gotSize = f.PageSize
	r.gotPage = f.Page
	return r.rows, r.total, nil
}

func TestTimelineClampsPaging(t *testing.T) {
	repo := &stubRepo{total: 3}
	svc := admin.NewService(repo)

	result, err := svc.Timeline(context.Background(), admin.TimelineFilters{Page: -2, PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 1, repo.gotPage)
	require.Equal(t, 50, repo.gotSize)
	require.Equal(t, 1, result.Page)
	require.Equal(t, 50, result.PageSize)
	require.Equal(t, 3, result.Total)
	require.NotNil(t, result.Rows)
}

func TestTimelineDefaultsPageSize(t *testing.T) {
	repo := &stubRepo{}
	svc := admin.NewService(repo)

	_, err := svc.Timeline(context.Background(), admin.TimelineFilters{})
	require.NoError(t, err)
	require.Equal(t, 20, repo.gotSize)
}

func TestStatsPassthrough(t *testing.T) {
	repo := &stubRepo{stats: admin.Stats{TotalBugs: 7, OpenBugs: 4}}
	svc := admin.NewService(repo)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, stats.TotalBugs)
	require.Equal(t, 4, stats.OpenBugs)
}
