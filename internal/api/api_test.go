package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/auth"
	"github.com/Luis200410/Improve/internal/catalog"
	"github.com/Luis200410/Improve/internal/clock"
	"github.com/Luis200410/Improve/internal/service"
	"github.com/Luis200410/Improve/internal/storage"
)

const testToken = "MOCK-TOKEN"

type envelope struct {
	Data  json.RawMessage    `json:"data"`
	Meta  map[string]any     `json:"meta"`
	Error *internal.AppError `json:"error"`
}

type testServer struct {
	router *gin.Engine
	clock  *clock.Fixed
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := &clock.Fixed{T: time.Date(2024, 7, 4, 9, 0, 0, 0, time.UTC)}
	store, err := storage.NewFileStorage(t.TempDir(), internal.NopLogger(), storage.WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateUser(context.Background(), &internal.User{ID: "u1", Token: testToken, Name: "Demo User"}))
	require.NoError(t, store.CreateUser(context.Background(), &internal.User{ID: "u2", Token: "OTHER-TOKEN", Name: "Other"}))

	pomodoro := service.NewPomodoroService(store, service.PomodoroOptions{Clock: clk})
	cat, err := catalog.Default()
	require.NoError(t, err)

	logger := internal.NopLogger()
	application := NewApp(logger, pomodoro, service.NewDashboardService(cat, pomodoro))
	router := NewRouter(application, auth.AuthMiddleware(auth.NewLocalAuthProvider(store, logger), logger))
	return &testServer{router: router, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/pomodoro/summary", "/api/dashboard", "/api/microapps"} {
		w, env := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		require.NotNil(t, env.Error)
		assert.Equal(t, "unauthorized", env.Error.Kind)
	}
	w, _ := s.do(t, http.MethodPost, "/api/pomodoro/start", "WRONG", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPomodoroFlow(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/pomodoro/start", testToken, map[string]int{"focus_minutes": 25})
	require.Equal(t, http.StatusCreated, w.Code)
	snap := decode[service.SessionSnapshot](t, env.Data)
	assert.Equal(t, 25, snap.FocusMinutes)
	assert.Equal(t, internal.StatusRunning, snap.Status)

	s.clock.Advance(10 * time.Minute)
	w, env = s.do(t, http.MethodGet, "/api/pomodoro/summary", testToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[service.Summary](t, env.Data)
	require.NotNil(t, summary.ActiveSession)
	assert.Equal(t, 600, summary.ActiveSession.ElapsedSeconds)

	w, env = s.do(t, http.MethodPost, "/api/pomodoro/complete", testToken, map[string]any{"session_id": snap.ID, "completed_minutes": 25})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[service.CompletionResult](t, env.Data)
	assert.Equal(t, 250, result.XPGained)
	assert.Equal(t, "Sprout", result.RewardTier)
	assert.Equal(t, 5, result.Profile.Coins)
	assert.Nil(t, result.ActiveSession)
	require.Len(t, result.Forest, 1)
	assert.Equal(t, "Jul 04", result.Forest[0].Planted)

	// raw payload keeps the flat summary shape
	var raw map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	for _, key := range []string{"profile", "forest", "active_session", "xp_gained", "reward_tier"} {
		assert.Contains(t, raw, key)
	}

	w, env = s.do(t, http.MethodPost, "/api/pomodoro/complete", testToken, map[string]any{"session_id": snap.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_state", env.Error.Kind)
}

func TestStartWithoutBodyUsesDefaults(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodPost, "/api/pomodoro/start", testToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	snap := decode[service.SessionSnapshot](t, env.Data)
	assert.Equal(t, 25, snap.FocusMinutes)
	assert.Equal(t, 15, snap.LongBreakMinutes)
}

func TestStartClampsMinutes(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodPost, "/api/pomodoro/start", testToken, map[string]int{"focus_minutes": 0, "short_break_minutes": -3})
	require.Equal(t, http.StatusCreated, w.Code)
	snap := decode[service.SessionSnapshot](t, env.Data)
	assert.Equal(t, 1, snap.FocusMinutes)
	assert.Equal(t, 1, snap.ShortBreakMinutes)
	assert.Equal(t, 4, snap.CyclesBeforeLongBreak)
}

func TestStartRejectsNonNumericMinutes(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodPost, "/api/pomodoro/start", testToken, map[string]string{"focus_minutes": "lots"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, http.StatusBadRequest, env.Error.Status)
	assert.Equal(t, "validation_error", env.Error.Kind)
}

func TestCancelFlow(t *testing.T) {
	s := newTestServer(t)
	_, env := s.do(t, http.MethodPost, "/api/pomodoro/start", testToken, nil)
	snap := decode[service.SessionSnapshot](t, env.Data)

	w, env := s.do(t, http.MethodPost, "/api/pomodoro/cancel", testToken, map[string]string{"session_id": snap.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "cancelled", "session_id": snap.ID}, decode[map[string]string](t, env.Data))

	_, env = s.do(t, http.MethodGet, "/api/pomodoro/summary", testToken, nil)
	summary := decode[service.Summary](t, env.Data)
	assert.Nil(t, summary.ActiveSession)
	assert.Equal(t, 0, summary.Profile.TotalSessions)
}

func TestMissingSessionID(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/pomodoro/complete", "/api/pomodoro/cancel"} {
		w, env := s.do(t, http.MethodPost, path, testToken, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Kind)
		assert.Equal(t, "session_id is required", env.Error.Message)
	}
}

func TestOtherUsersSessionIsNotFound(t *testing.T) {
	s := newTestServer(t)
	_, env := s.do(t, http.MethodPost, "/api/pomodoro/start", testToken, nil)
	snap := decode[service.SessionSnapshot](t, env.Data)

	w, env := s.do(t, http.MethodPost, "/api/pomodoro/complete", "OTHER-TOKEN", map[string]string{"session_id": snap.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Kind)
}

func TestDashboardAndMicroapps(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/dashboard?app=body", testToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	dash := decode[service.Dashboard](t, env.Data)
	assert.Equal(t, "body", dash.ActiveMicroapp.Slug)
	assert.Len(t, dash.Sidebar, 9)
	require.NotNil(t, dash.Pomodoro)

	w, env = s.do(t, http.MethodGet, "/api/dashboard", testToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "today", decode[service.Dashboard](t, env.Data).ActiveMicroapp.Slug)

	w, env = s.do(t, http.MethodGet, "/api/microapps", testToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	apps := decode[[]catalog.Microapp](t, env.Data)
	assert.Len(t, apps, 9)
	assert.EqualValues(t, 9, env.Meta["count"])
}

type brokenPomodoro struct{ PomodoroService }

func (brokenPomodoro) Summary(context.Context, *internal.User) (*service.Summary, error) {
	return nil, errors.New("connection reset")
}

type staticAuth struct{}

func (staticAuth) Authenticate(context.Context, string) (*internal.User, error) {
	return &internal.User{ID: "u1"}, nil
}

func TestStorageFailureIsInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := internal.NopLogger()
	router := NewRouter(NewApp(logger, brokenPomodoro{}, nil), auth.AuthMiddleware(staticAuth{}, logger))

	req := httptest.NewRequest(http.MethodGet, "/api/pomodoro/summary", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Contains(t, w.Body.String(), `"kind":"internal"`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(internal.NewValidationError("x")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(internal.NewNotFoundError("x")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(internal.NewInvalidStateError("x")))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(auth.ErrInvalidToken))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("disk full")))
}
