package http_server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danthegoodman1/icemor/config"
	"github.com/danthegoodman1/icemor/datastore"
	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/metastore"
	"github.com/danthegoodman1/icemor/plan"
	"github.com/danthegoodman1/icemor/planner"
	"github.com/danthegoodman1/icemor/scheduler"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	root := t.TempDir()
	part := filepath.Join(root, "events", "y=2023", "m=01", "d=01")
	require.NoError(t, os.MkdirAll(part, 0o755))
	for _, name := range []string{
		fsutils.MakeDataFileName("100", "0-0-0", "f1"),
		fsutils.MakeLogFileName("f1", "100", 1, ""),
	} {
		require.NoError(t, os.WriteFile(filepath.Join(part, name), []byte("data"), 0o644))
	}

	view, err := datastore.NewDiskView(root)
	require.NoError(t, err)
	plans, err := plan.NewDiskStore(filepath.Join(t.TempDir(), "plans"))
	require.NoError(t, err)
	cfg := config.Default().Compaction
	sched := scheduler.New(view, plans, metastore.NewMemoryMetaStore(), planner.New(cfg, fsutils.Convention{}))
	return NewHTTPServer(sched)
}

func do(s *HTTPServer, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := do(newTestServer(t), http.MethodGet, "/hc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCompactionEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodPost, "/tables/events/compactions", `{"partitions":["y=2023/m=01/d=01"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stats struct {
		InstantTime string `json:"instantTime"`
		Operations  int    `json:"operations"`
		Plan        struct {
			Operations []struct {
				PartitionPath  string   `json:"partitionPath"`
				FileID         string   `json:"fileId"`
				DeltaFilePaths []string `json:"deltaFilePaths"`
			} `json:"operations"`
		} `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Operations)
	require.Len(t, stats.Plan.Operations, 1)
	assert.Equal(t, "y=2023/m=01/d=01", stats.Plan.Operations[0].PartitionPath)
	assert.Equal(t, "f1", stats.Plan.Operations[0].FileID)

	// nothing left to schedule
	rec = do(s, http.MethodPost, "/tables/events/compactions", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(s, http.MethodGet, "/tables/events/compactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"instants":["`+stats.InstantTime+`"]}`, rec.Body.String())

	rec = do(s, http.MethodGet, "/tables/events/compactions/"+stats.InstantTime, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fileId":"f1"`)

	rec = do(s, http.MethodGet, "/tables/events/compactions/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodPost, "/tables/events/compactions/"+stats.InstantTime+"/complete", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(s, http.MethodPost, "/tables/events/compactions/"+stats.InstantTime+"/complete", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodDelete, "/tables/events/compactions/"+stats.InstantTime, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(s, http.MethodDelete, "/tables/events/compactions/"+stats.InstantTime, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleValidation(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, http.MethodPost, "/tables/events/compactions", `{"partitions":[""]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/tables/events/compactions", `{"maxRuntimeSec":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectsEscapingPaths(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodPost, "/tables/../compactions", `{"partitions":["events/y=2023/m=01/d=01"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(s, http.MethodPost, "/tables/events/compactions", `{"partitions":["../events/y=2023/m=01/d=01"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(s, http.MethodPost, "/tables/events/compactions", `{"partitions":["/y=2023/m=01/d=01"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/tables/../compactions", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(s, http.MethodGet, "/tables/events/compactions/..", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(s, http.MethodDelete, "/tables/../compactions/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(s, http.MethodPost, "/tables/events/compactions/.x/complete", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// nothing was scheduled by the rejected requests
	rec = do(s, http.MethodGet, "/tables/events/compactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"instants":[]}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/hc", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))

	rec = do(s, http.MethodGet, "/hc", "")
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)
}

func TestListPlansEmpty(t *testing.T) {
	rec := do(newTestServer(t), http.MethodGet, "/tables/nope/compactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"instants":[]}`, rec.Body.String())
}
