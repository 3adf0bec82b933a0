package audit

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	rows    []TimelineRow
	err     error
	filters TimelineFilters
	offset  int
	limit   int
}

func (m *memoryRepo) Window(_ context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	m.filters, m.offset, m.limit = f, offset, limit
	if m.err != nil {
		return nil, m.err
	}
	var out []TimelineRow
	for _, row := range m.rows {
		if f.Entity != "" && row.Entity != f.Entity {
			continue
		}
		out = append(out, row)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func seedRows(n int) []TimelineRow {
	base := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	rows := make([]TimelineRow, 0, n)
	for i := 0; i < n; i++ {
		entity := "sale"
		if i%2 == 1 {
			entity = "purchase"
		}
		rows = append(rows, TimelineRow{
			ID:       int64(n - i),
			At:       base.Add(-time.Duration(i) * time.Minute),
			Actor:    "cashier-1",
			Action:   entity + ":record",
			Entity:   entity,
			EntityID: "id-" + strings.Repeat("x", i%3+1),
			Meta:     map[string]any{"total": "10.00"},
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &memoryRepo{rows: seedRows(5)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 2, Entity: "  sale "})
	require.NoError(t, err)
	assert.Equal(t, "sale", repo.filters.Entity)
	assert.Equal(t, 3, repo.limit)
	assert.Len(t, res.Rows, 2)
	assert.True(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.NextPage)
	assert.Zero(t, res.Paging.PrevPage)

	res, err = svc.Timeline(context.Background(), TimelineFilters{PageSize: 2, Page: 2, Entity: "sale"})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.False(t, res.Paging.HasNext)
	assert.Equal(t, 1, res.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &memoryRepo{}
	res, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, res.Paging.PageSize)
	assert.Equal(t, maxPageSize+1, repo.limit)
	assert.NotNil(t, res.Rows)
}

func TestTimelineErrors(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	assert.Error(t, err)

	boom := errors.New("db down")
	_, err = NewService(&memoryRepo{err: boom}).Timeline(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, boom)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, seedRows(1)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,At,Actor,Action,Entity,Entity ID,Meta", lines[0])
	assert.Equal(t, `1,2025-03-15T10:00:00Z,cashier-1,sale:record,sale,id-x,"{""total"":""10.00""}"`, lines[1])
}

func TestHandlerTimelineAndExport(t *testing.T) {
	repo := &memoryRepo{rows: seedRows(3)}
	r := chi.NewRouter()
	r.Route("/audit-logs", NewHandler(nil, NewService(repo)).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit-logs?entity=purchase&from=2025-03-01&to=2025-03-15", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entity":"purchase"`)
	assert.Equal(t, time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), repo.filters.To)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit-logs?from=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit-logs/export.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, maxExportRows, repo.limit)
}
