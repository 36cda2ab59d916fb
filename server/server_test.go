package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/engine"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store/sqlstore"
	"github.com/existflow/clientpulse/internal/txn"
)

type testServer struct {
	t   *testing.T
	srv *Server
	now time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sqlstore.Open("sqlite", filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	ts := &testServer{t: t, now: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return ts.now }
	eng := engine.New(txn.New(db), engine.WithClock(clock))
	ts.srv = New(eng, WithClock(clock), WithSessionTTL(time.Hour))
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) register(username string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authResponse](ts.t, rec).Token
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("ada")

	rec := ts.do(http.MethodPost, "/api/v1/register", "", map[string]string{
		"username": "ada", "email": "other@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/register", "", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/login", "", map[string]string{"username": "ada", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/login", "", map[string]string{"username": "ada", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[authResponse](t, rec)
	assert.NotEqual(t, token, login.Token)

	rec = ts.do(http.MethodGet, "/api/v1/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]string](t, rec)
	assert.Equal(t, "ada", me["username"])
	assert.Equal(t, login.OwnerID, me["id"])

	rec = ts.do(http.MethodPost, "/api/v1/logout", login.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodGet, "/api/v1/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("ada")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"unknown token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			ts.srv.Router().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	ts.now = ts.now.Add(2 * time.Hour)
	rec := ts.do(http.MethodGet, "/api/v1/clients", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestTimerStopUpdatesAggregates(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("ada")

	rec := ts.do(http.MethodPost, "/api/v1/clients", token, map[string]any{"name": "Acme", "hourly_rate": 100, "monthly_budget": 1000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	client := decode[model.Client](t, rec)

	rec = ts.do(http.MethodPost, "/api/v1/tasks", token, map[string]any{"client_id": client.ID, "title": "Build"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[model.Task](t, rec)

	rec = ts.do(http.MethodPost, "/api/v1/timers", token, map[string]any{"client_id": client.ID, "task_id": task.ID, "billable": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	timer := decode[model.Timer](t, rec)

	rec = ts.do(http.MethodPost, "/api/v1/timers/"+timer.ID+"/stop", token, map[string]any{"duration": 18000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stopped := decode[model.Timer](t, rec)
	require.NotNil(t, stopped.Duration)
	assert.Equal(t, int64(18000), *stopped.Duration)

	rec = ts.do(http.MethodPost, "/api/v1/timers/"+timer.ID+"/stop", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "second stop must fail")

	rec = ts.do(http.MethodGet, "/api/v1/clients/"+client.ID+"/profitability", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prof := decode[model.ProfitabilityRecord](t, rec)
	assert.Equal(t, 5.0, prof.ActualHours)
	assert.Equal(t, 500.0, prof.Cost)
	assert.Equal(t, 50.0, prof.Profitability)
	assert.Equal(t, 5.0, prof.RemainingHours)

	rec = ts.do(http.MethodGet, "/api/v1/tasks/"+task.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(300), decode[model.Task](t, rec).ActualMinutes)

	rec = ts.do(http.MethodPatch, "/api/v1/timers/"+timer.ID+"/duration", token, map[string]any{"duration": 3600})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodGet, "/api/v1/clients/"+client.ID+"/profitability", token, nil)
	assert.Equal(t, 1.0, decode[model.ProfitabilityRecord](t, rec).ActualHours)

	rec = ts.do(http.MethodGet, "/api/v1/timers?running=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.Timer](t, rec))
}

func TestObjectiveRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("ada")

	rec := ts.do(http.MethodPost, "/api/v1/clients", token, map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	a := decode[model.Client](t, rec)
	rec = ts.do(http.MethodPost, "/api/v1/clients", token, map[string]any{"name": "Globex"})
	require.Equal(t, http.StatusCreated, rec.Code)
	b := decode[model.Client](t, rec)

	rec = ts.do(http.MethodPost, "/api/v1/objectives", token, map[string]any{"client_id": a.ID, "title": "Ship", "target_value": 4, "current_value": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[model.Objective](t, rec)
	require.NotNil(t, o.Progress)
	assert.Equal(t, 25, *o.Progress)

	rec = ts.do(http.MethodPatch, "/api/v1/objectives/"+o.ID, token, map[string]any{"client_id": b.ID, "is_completed": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPatch, "/api/v1/objectives/"+o.ID, token, map[string]any{"client_id": b.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/v1/clients/"+b.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[model.Client](t, rec).Counters.ObjectivesPending)

	rec = ts.do(http.MethodGet, "/api/v1/objectives?client_id="+b.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Objective](t, rec), 1)

	rec = ts.do(http.MethodDelete, "/api/v1/objectives/"+o.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodGet, "/api/v1/objectives/"+o.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/objectives", token, map[string]any{"client_id": "ghost", "title": "Ship"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOwnersAreIsolated(t *testing.T) {
	ts := newTestServer(t)
	ada := ts.register("ada")
	bob := ts.register("bob")

	rec := ts.do(http.MethodPost, "/api/v1/clients", ada, map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	client := decode[model.Client](t, rec)

	rec = ts.do(http.MethodGet, "/api/v1/clients/"+client.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(http.MethodDelete, "/api/v1/clients/"+client.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/clients", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.Client](t, rec))

	rec = ts.do(http.MethodDelete, "/api/v1/clients/"+client.ID, ada, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
