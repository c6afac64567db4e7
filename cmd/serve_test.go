//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// stubStore is an in-memory Store for router tests.
type stubStore struct {
	runs    []model.Run
	listErr error
}

func (s *stubStore) CreateRun(context.Context, string) (*model.Run, error) {
	return nil, eris.New("not implemented")
}

func (s *stubStore) FinishRun(context.Context, string, model.RunStatus, *model.RunResult) error {
	return eris.New("not implemented")
}

func (s *stubStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	for i := range s.runs {
		if s.runs[i].ID == runID {
			return &s.runs[i], nil
		}
	}
	return nil, eris.New("run not found")
}

func (s *stubStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Run
	for _, r := range s.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Source != "" && r.Source != filter.Source {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubStore) Migrate(context.Context) error { return nil }
func (s *stubStore) Close() error                  { return nil }

func TestStatusRouter_Health(t *testing.T) {
	h := newStatusRouter(&stubStore{}, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusRouter_ListRuns(t *testing.T) {
	st := &stubStore{runs: []model.Run{
		{ID: "run-1", Source: "leads.csv", Status: model.RunStatusComplete},
		{ID: "run-2", Source: "leads.csv", Status: model.RunStatusFailed},
	}}
	h := newStatusRouter(st, "")

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)
}

func TestStatusRouter_ListRuns_StatusFilter(t *testing.T) {
	st := &stubStore{runs: []model.Run{
		{ID: "run-1", Source: "leads.csv", Status: model.RunStatusComplete},
		{ID: "run-2", Source: "leads.csv", Status: model.RunStatusFailed},
	}}
	h := newStatusRouter(st, "")

	req := httptest.NewRequest(http.MethodGet, "/api/runs?status=failed", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
}

func TestStatusRouter_ListRuns_StoreError(t *testing.T) {
	h := newStatusRouter(&stubStore{listErr: eris.New("database gone")}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to list runs")
}

func TestStatusRouter_GetRun(t *testing.T) {
	st := &stubStore{runs: []model.Run{
		{ID: "run-1", Source: "leads.csv", Status: model.RunStatusComplete},
	}}
	h := newStatusRouter(st, "")

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var run model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, "leads.csv", run.Source)
}

func TestStatusRouter_GetRun_NotFound(t *testing.T) {
	h := newStatusRouter(&stubStore{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusRouter_Costs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"total_cost_usd":1.23}`), 0o644))

	h := newStatusRouter(&stubStore{}, path)

	req := httptest.NewRequest(http.MethodGet, "/api/costs", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "total_cost_usd")
}

func TestStatusRouter_Costs_Missing(t *testing.T) {
	h := newStatusRouter(&stubStore{}, filepath.Join(t.TempDir(), "nope.json"))

	req := httptest.NewRequest(http.MethodGet, "/api/costs", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
