package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "evalpanel/internal/errors"
	"evalpanel/internal/operations"
	"evalpanel/internal/selection"
	"evalpanel/internal/shared/testutil"
)

type fakeRunService struct {
	state    *operations.RunState
	manifest *operations.RunManifest
}

func (f *fakeRunService) LatestState() *operations.RunState       { return f.state }
func (f *fakeRunService) LatestManifest() *operations.RunManifest { return f.manifest }

func completedRun(id string) (*operations.RunState, *operations.RunManifest) {
	state := operations.NewRunState(id)
	state.Start()
	state.Complete()

	ledger := selection.NewLedger()
	ledger.Record("final_sample", "Final sample", selection.Counts{
		Users: 6, UserMonths: 72, Txns: 1440, Volume: decimal.NewFromInt(250_000),
	})
	return state, &operations.RunManifest{
		RunID:      id,
		Status:     operations.RunStatusCompleted,
		Users:      6,
		UserMonths: 72,
		Ledger:     ledger,
	}
}

func serve(t *testing.T, svc RunService, path string) *httptest.ResponseRecorder {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h := NewRunHandler(svc, apperrors.NewErrorHandler(logger, false), logger)

	r := chi.NewRouter()
	r.Mount("/api/v1/run", h.Routes())
	r.Get("/healthz", NewHealthHandler(func() int { return 2 }).HealthCheck)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRunHandler_BeforeFirstRun(t *testing.T) {
	for _, path := range []string{"/api/v1/run", "/api/v1/run/selection", "/api/v1/run/stages"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(t, &fakeRunService{}, path)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, apperrors.TypeRunNotFound, decode(t, rec)["type"])
		})
	}
}

func TestRunHandler_CompletedRun(t *testing.T) {
	state, manifest := completedRun("run-1")
	svc := &fakeRunService{state: state, manifest: manifest}

	rec := serve(t, svc, "/api/v1/run")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, float64(72), body["user_months"])

	rec = serve(t, svc, "/api/v1/run/selection")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []selection.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "final_sample", entries[0].Step)
	assert.Equal(t, int64(6), entries[0].Users)
	assert.True(t, entries[0].Volume.Equal(decimal.NewFromInt(250_000)))

	rec = serve(t, svc, "/api/v1/run/stages")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRunHandler_RunInProgress(t *testing.T) {
	_, previous := completedRun("run-1")
	state := operations.NewRunState("run-2")
	state.Start()
	svc := &fakeRunService{state: state, manifest: previous}

	rec := serve(t, svc, "/api/v1/run")
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "run-2", body["run_id"])
	assert.Equal(t, "running", body["status"])

	rec = serve(t, svc, "/api/v1/run/selection")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.TypeNotFound, decode(t, rec)["type"])
}

func TestRunHandler_FailedRun(t *testing.T) {
	state := operations.NewRunState("run-3")
	state.Start()
	state.Fail(operations.NewFatalError(operations.StageValidate, "check non_empty failed", errors.New("0 rows")))
	svc := &fakeRunService{state: state}

	rec := serve(t, svc, "/api/v1/run")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, apperrors.TypeRunFailed, body["type"])
	assert.Contains(t, body["details"], "check non_empty failed")

	rec = serve(t, svc, "/api/v1/run/stages")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	rec := serve(t, &fakeRunService{}, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["websocket_clients"])
	assert.NotEmpty(t, body["version"])
}
