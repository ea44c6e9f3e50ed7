package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DTPriya20/click-gait/internal/classifier"
	"github.com/DTPriya20/click-gait/internal/config"
	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/internal/store/cookie"
	"github.com/DTPriya20/click-gait/internal/store/memory"
	"github.com/DTPriya20/click-gait/internal/tracker"
	"github.com/DTPriya20/click-gait/pkg/models"
)

// stubClassifier reads the category from features[0] and the top
// probability from features[1]. It expects exactly three features.
type stubClassifier struct {
	err error
}

func (c stubClassifier) Classify(_ context.Context, features []float64) (models.ClassificationResult, error) {
	if c.err != nil {
		return models.ClassificationResult{}, c.err
	}
	if len(features) != 3 {
		return models.ClassificationResult{}, classifier.ErrDimension
	}
	top := features[1]
	probs := make([]float64, models.CategoryCount)
	probs[0] = top
	for i := 1; i < len(probs); i++ {
		probs[i] = (1 - top) / float64(len(probs)-1)
	}
	return models.ClassificationResult{Category: int(features[0]), Probabilities: probs}, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	svc   *Service
	clock *testClock
}

func newTestService(t *testing.T, cls classifier.Classifier, st store.Store) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	cfg := config.Default()
	cfg.CORSOrigins = []string{"http://localhost:3000"}

	svc, err := NewService(Options{
		Version:    "test-version",
		Config:     cfg,
		Classifier: cls,
		Store:      st,
		Clock:      clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)

	return &testEnv{svc: svc, clock: clock}
}

// testService creates a Service with an in-memory store and the stub classifier.
func testService(t *testing.T) *testEnv {
	t.Helper()
	st := memory.New(0)
	t.Cleanup(func() { st.Close() })
	return newTestService(t, stubClassifier{}, st)
}

// do sends a request as the given session. An empty session sends no identity.
func (e *testEnv) do(method, path, session, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	e.svc.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandleWelcome(t *testing.T) {
	env := testService(t)

	rec := env.do(http.MethodGet, "/", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, welcomeMessage, decode[map[string]string](t, rec)["message"])
}

func TestHandlePredict_Outcome(t *testing.T) {
	env := testService(t)

	rec := env.do(http.MethodPost, "/predict", "s1", `{"features":[3,0.9,0]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, float64(3), raw["prediction"])
	assert.Equal(t, models.MovementRunning, raw["movement_type"])
	assert.Len(t, raw["probabilities"], models.CategoryCount)
	assert.Equal(t, float64(0), raw["unknown_movement_count"])
	assert.Contains(t, raw, "warning")
	assert.Nil(t, raw["warning"])
}

func TestHandlePredict_IssuesSessionCookie(t *testing.T) {
	env := testService(t)

	rec := env.do(http.MethodPost, "/predict", "", `{"features":[1,0.9,0]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Len(t, cookies[0].Value, 36)
	assert.True(t, cookies[0].HttpOnly)

	// The cookie carries the session into the next request.
	env.clock.Advance(12 * time.Second)
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"features":[1,0.9,0]}`))
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	env.svc.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "known session gets no new cookie")

	req = httptest.NewRequest(http.MethodPost, "/session_summary", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	env.svc.router.ServeHTTP(rec, req)
	assert.InDelta(t, 12.0, decode[models.Summary](t, rec).TotalWalking, 1e-9)
}

func TestHandlePredict_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "empty body", body: "", wantMsg: missingFeatures},
		{name: "missing features", body: `{"foo": 1}`, wantMsg: missingFeatures},
		{name: "non-numeric features", body: `{"features": ["a", "b"]}`, wantMsg: "invalid request body"},
		{name: "empty features", body: `{"features": []}`, wantMsg: "invalid request body"},
		{name: "bad timestamp", body: `{"features": [1, 0.9, 0], "timestamp": "yesterday"}`, wantMsg: "invalid request body"},
		{name: "not an object", body: `[1, 2, 3]`, wantMsg: "invalid request body"},
		{name: "wrong dimensionality", body: `{"features": [1, 0.9]}`, wantMsg: classifier.ErrDimension.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testService(t)

			rec := env.do(http.MethodPost, "/predict", "s1", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["error"], tt.wantMsg)
		})
	}
}

func TestHandlePredict_ClassifierUnavailable(t *testing.T) {
	st := memory.New(0)
	defer st.Close()
	env := newTestService(t, stubClassifier{err: classifier.ErrUnavailable}, st)

	rec := env.do(http.MethodPost, "/predict", "s1", `{"features":[1,0.9,0]}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlePredict_OutOfOrderTimestamp(t *testing.T) {
	env := testService(t)

	rec := env.do(http.MethodPost, "/predict", "s1", `{"features":[1,0.9,0],"timestamp":"2026-05-04T09:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/predict", "s1", `{"features":[1,0.9,0],"timestamp":"2026-05-04T08:59:00Z"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], tracker.ErrOutOfOrder.Error())
}

func TestHandlePredict_DwellRules(t *testing.T) {
	env := testService(t)
	post := func(category int) {
		body := `{"features":[` + string(rune('0'+category)) + `,0.9,0]}`
		rec := env.do(http.MethodPost, "/predict", "s1", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	post(1) // Walking
	env.clock.Advance(10 * time.Second)
	post(1) // +10s Walking
	env.clock.Advance(20 * time.Second)
	post(3) // short switch to Running, not credited
	env.clock.Advance(45 * time.Second)
	post(1) // long switch back, credited to Walking

	summary := decode[models.Summary](t, env.do(http.MethodPost, "/session_summary", "s1", ""))
	assert.InDelta(t, 55.0, summary.TotalWalking, 1e-9)
	assert.Zero(t, summary.TotalRunning)
	assert.InDelta(t, 75.0, summary.SessionDuration, 1e-9)
	assert.Equal(t, map[string]float64{models.MovementWalking: 55}, summary.Durations)
}

func TestHandlePredict_Warning(t *testing.T) {
	env := testService(t)

	var outcome models.EventOutcome
	for i := 0; i < 6; i++ {
		rec := env.do(http.MethodPost, "/predict", "s1", `{"features":[2,0.4,0]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		outcome = decode[models.EventOutcome](t, rec)
		if i < 5 {
			assert.Nil(t, outcome.Warning, "event %d", i+1)
		}
		env.clock.Advance(time.Second)
	}

	assert.Equal(t, models.MovementUnknown, outcome.MovementType)
	assert.Equal(t, 6, outcome.UnknownCount)
	require.NotNil(t, outcome.Warning)
	assert.Equal(t, tracker.WarningMessage, *outcome.Warning)

	// The window expires ten minutes after the last unknown event.
	env.clock.Advance(10 * time.Minute)
	summary := decode[models.Summary](t, env.do(http.MethodGet, "/session_summary", "s1", ""))
	assert.Zero(t, summary.TotalIrregular)
}

func TestHandlePredict_SessionsAreIsolated(t *testing.T) {
	env := testService(t)

	env.do(http.MethodPost, "/predict", "alice", `{"features":[1,0.9,0]}`)
	env.do(http.MethodPost, "/predict", "bob", `{"features":[2,0.3,0]}`)
	env.clock.Advance(5 * time.Second)
	env.do(http.MethodPost, "/predict", "alice", `{"features":[1,0.9,0]}`)

	alice := decode[models.Summary](t, env.do(http.MethodPost, "/session_summary", "alice", ""))
	bob := decode[models.Summary](t, env.do(http.MethodPost, "/session_summary", "bob", ""))
	assert.InDelta(t, 5.0, alice.TotalWalking, 1e-9)
	assert.Zero(t, alice.TotalIrregular)
	assert.Zero(t, bob.TotalWalking)
	assert.Equal(t, 1, bob.TotalIrregular)
}

func TestHandlePredict_InvalidSessionHeader(t *testing.T) {
	env := testService(t)

	rec := env.do(http.MethodPost, "/predict", strings.Repeat("x", maxSessionIDLen+1), `{"features":[1,0.9,0]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResetSession(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			env := testService(t)
			env.do(http.MethodPost, "/predict", "s1", `{"features":[1,0.9,0]}`)
			env.clock.Advance(20 * time.Second)
			env.do(http.MethodPost, "/predict", "s1", `{"features":[1,0.9,0]}`)

			rec := env.do(method, "/reset_session", "s1", "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, resetMessage, decode[map[string]string](t, rec)["message"])

			summary := decode[models.Summary](t, env.do(http.MethodPost, "/session_summary", "s1", ""))
			assert.Zero(t, summary.TotalWalking)
			assert.Zero(t, summary.SessionDuration)
			assert.Empty(t, summary.Durations)
		})
	}
}

func TestHandleSessionSummary_NewSession(t *testing.T) {
	env := testService(t)

	rec := env.do(http.MethodPost, "/session_summary", "fresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"total_walking_time", "total_running_time", "total_irregular_movements", "session_duration", "durations"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, float64(0), raw["total_walking_time"])
	assert.Equal(t, map[string]any{}, raw["durations"])
}

func TestHandlePredictions(t *testing.T) {
	env := testService(t)
	for i := 0; i < 3; i++ {
		env.do(http.MethodPost, "/predict", "s1", `{"features":[1,0.9,0]}`)
		env.clock.Advance(time.Second)
	}
	env.do(http.MethodPost, "/predict", "s2", `{"features":[4,0.9,0]}`)

	mine := decode[[]models.PredictionRecord](t, env.do(http.MethodGet, "/api/predictions", "s1", ""))
	assert.Len(t, mine, 3)
	for _, r := range mine {
		assert.Equal(t, "s1", r.SessionID)
	}
	assert.True(t, mine[0].Timestamp.After(mine[2].Timestamp), "newest first")

	all := decode[[]models.PredictionRecord](t, env.do(http.MethodGet, "/api/predictions?all=true&limit=2", "s1", ""))
	require.Len(t, all, 2)
	assert.Equal(t, "s2", all[0].SessionID)
	assert.Equal(t, models.MovementSitting, all[0].Outcome.MovementType)

	rec := env.do(http.MethodGet, "/api/predictions?limit=0", "s1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvents(t *testing.T) {
	env := testService(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	req.Header.Set(SessionHeader, "s1")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.svc.router.ServeHTTP(rec, req)
		close(done)
	}()
	require.Eventually(t, func() bool { return env.svc.sseBroadcaster.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 6; i++ {
		env.do(http.MethodPost, "/predict", "s1", `{"features":[1,0.3,0]}`)
	}
	env.do(http.MethodPost, "/predict", "other", `{"features":[1,0.9,0]}`)
	cancel()
	<-done

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, 6, strings.Count(body, "event: prediction"))
	assert.Equal(t, 1, strings.Count(body, "event: warning"))
	assert.NotContains(t, body, `"session_id":"other"`)
}

func TestHandleHealth(t *testing.T) {
	env := testService(t)
	env.clock.Advance(90 * time.Second)

	rec := env.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", resp["status"])
	assert.Equal(t, "test-version", resp["version"])
	assert.Equal(t, float64(90), resp["uptime_seconds"])

	env.svc.ready.Store(false)
	rec = env.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireReadyMiddleware(t *testing.T) {
	env := testService(t)

	env.svc.ready.Store(false)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodPost, "/predict", "s1", `{"features":[1,0.9,0]}`).Code)

	env.svc.ready.Store(true)
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/predict", "s1", `{"features":[1,0.9,0]}`).Code)
}

func TestCORS(t *testing.T) {
	env := testService(t)

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.svc.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), SessionHeader)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	env.svc.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSwaggerAndDashboard(t *testing.T) {
	env := testService(t)

	rec := env.do(http.MethodGet, "/swagger/doc.json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/predict"`)
	assert.Contains(t, rec.Body.String(), `"test-version"`)

	rec = env.do(http.MethodGet, "/dashboard", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}

func TestCookieStoreRoundTrip(t *testing.T) {
	st, err := cookie.NewStore(cookie.Config{Secret: "handler-test"})
	require.NoError(t, err)
	env := newTestService(t, stubClassifier{}, st)

	send := func(path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		env.svc.router.ServeHTTP(rec, req)
		return rec
	}

	rec := send("/predict", `{"features":[1,0.9,0]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2, "identity and state cookies")

	env.clock.Advance(8 * time.Second)
	rec = send("/predict", `{"features":[1,0.9,0]}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		for i := range cookies {
			if cookies[i].Name == c.Name {
				cookies[i] = c
			}
		}
	}

	summary := decode[models.Summary](t, send("/session_summary", "", cookies))
	assert.InDelta(t, 8.0, summary.TotalWalking, 1e-9)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Options{Store: memory.New(0)})
	assert.Error(t, err)

	_, err = NewService(Options{Classifier: stubClassifier{}})
	assert.Error(t, err)
}
