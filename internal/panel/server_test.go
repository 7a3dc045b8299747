package panel

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldenbatch/internal/params"
	"goldenbatch/internal/simulation"
	"goldenbatch/internal/types"
)

// stubPredictor answers with verdict, optionally waiting on release first.
type stubPredictor struct {
	verdict types.Verdict
	release chan struct{}
}

func (p *stubPredictor) Predict(ctx context.Context, _ types.ParameterSet) (types.Verdict, error) {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return "", &types.AttemptError{Kind: types.FailureTransport, Message: "request failed", Err: ctx.Err()}
		}
	}
	return p.verdict, nil
}

func (p *stubPredictor) Endpoint() string { return "http://predictor.test/simulate" }

type testEnv struct {
	server *Server
	store  *params.Store
	orch   *simulation.Orchestrator
}

func newTestEnv(t *testing.T, predictor simulation.Predictor) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := params.NewStore()
	orch := simulation.New(predictor, store,
		simulation.WithLogger(logger),
		simulation.WithSleepFunc(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	t.Cleanup(orch.Close)

	srv, err := NewServer(store, orch, logger)
	require.NoError(t, err)
	return &testEnv{server: srv, store: store, orch: orch}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var env APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	logger := slog.Default()
	store := params.NewStore()
	orch := simulation.New(&stubPredictor{}, store)

	_, err := NewServer(nil, orch, logger)
	assert.Error(t, err)
	_, err = NewServer(store, nil, logger)
	assert.Error(t, err)
	_, err = NewServer(store, orch, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &stubPredictor{verdict: types.VerdictPass})
	rec := env.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestGetParameters(t *testing.T) {
	env := newTestEnv(t, &stubPredictor{verdict: types.VerdictPass})
	rec := env.do(t, http.MethodGet, "/v1/parameters", "")

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[parametersView](t, rec)
	assert.Equal(t, types.DefaultParameterSet(), view.Values)
	assert.Len(t, view.Bounds, 3)
}

func TestSetParameter(t *testing.T) {
	tests := []struct {
		name  string
		param string
		body  string
		want  types.ParameterSet
	}{
		{"number", "temperature", `{"value":175}`, types.ParameterSet{Temperature: 175, Pressure: 5.0, Speed: 1200}},
		{"numeric string", "pressure", `{"value":"5.5"}`, types.ParameterSet{Temperature: 150, Pressure: 5.5, Speed: 1200}},
		{"garbage string", "temperature", `{"value":"abc"}`, types.ParameterSet{Temperature: 0, Pressure: 5.0, Speed: 1200}},
		{"empty string", "speed", `{"value":""}`, types.ParameterSet{Temperature: 150, Pressure: 5.0, Speed: 0}},
		{"out of advisory range", "speed", `{"value":99999}`, types.ParameterSet{Temperature: 150, Pressure: 5.0, Speed: 99999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubPredictor{verdict: types.VerdictPass})
			rec := env.do(t, http.MethodPut, "/v1/parameters/"+tt.param, tt.body)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decodeData[parametersView](t, rec).Values)
			assert.Equal(t, tt.want, env.store.Snapshot())
		})
	}
}

func TestSetParameter_UnknownName(t *testing.T) {
	env := newTestEnv(t, &stubPredictor{verdict: types.VerdictPass})
	req := httptest.NewRequest(http.MethodPut, "/v1/parameters/humidity", strings.NewReader(`{"value":1}`))
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeNotFoundParameter), detail.Code)
	assert.Equal(t, "req-42", detail.RequestID)
	assert.Equal(t, types.DefaultParameterSet(), env.store.Snapshot())
}

func TestSetParameter_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		code types.ErrorCode
	}{
		{"malformed", `{"value":`, types.ErrCodeValidationMalformedBody},
		{"empty", ``, types.ErrCodeValidationMalformedBody},
		{"unknown field", `{"value":1,"unit":"C"}`, types.ErrCodeValidationMalformedBody},
		{"missing value", `{}`, types.ErrCodeValidationMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubPredictor{verdict: types.VerdictPass})
			rec := env.do(t, http.MethodPut, "/v1/parameters/temperature", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.code), decodeError(t, rec).Code)
			assert.Equal(t, types.DefaultParameterSet(), env.store.Snapshot())
		})
	}
}

func TestResetParameters(t *testing.T) {
	env := newTestEnv(t, &stubPredictor{verdict: types.VerdictPass})
	_, err := env.store.Set(types.ParamPressure, 7.5)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/v1/parameters/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.DefaultParameterSet(), decodeData[parametersView](t, rec).Values)
}

func TestStartSimulation(t *testing.T) {
	predictor := &stubPredictor{verdict: types.VerdictPass, release: make(chan struct{})}
	env := newTestEnv(t, predictor)

	rec := env.do(t, http.MethodPost, "/v1/simulations", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	first := decodeData[outcomeView](t, rec)
	assert.Equal(t, types.StateAttempting, first.State)
	assert.True(t, first.Loading)
	assert.Equal(t, "Running AI Model...", first.StatusText)

	busy := env.do(t, http.MethodPost, "/v1/simulations", "")
	assert.Equal(t, http.StatusConflict, busy.Code)
	assert.Equal(t, string(types.ErrCodeConflictSimulationRunning), decodeError(t, busy).Code)

	close(predictor.release)
	_, err := env.orch.Wait(context.Background())
	require.NoError(t, err)

	current := env.do(t, http.MethodGet, "/v1/simulations/current", "")
	require.Equal(t, http.StatusOK, current.Code)
	view := decodeData[outcomeView](t, current)
	assert.Equal(t, types.StateSucceeded, view.State)
	assert.Equal(t, types.VerdictPass, view.Verdict)
	assert.Equal(t, "GOLDEN BATCH (Pass)", view.StatusText)
	assert.Equal(t, first.RunID, view.RunID)
}

func TestCancelSimulation(t *testing.T) {
	predictor := &stubPredictor{verdict: types.VerdictPass, release: make(chan struct{})}
	env := newTestEnv(t, predictor)

	rec := env.do(t, http.MethodDelete, "/v1/simulations/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeData[map[string]any](t, rec)["canceled"])

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/v1/simulations", "").Code)

	rec = env.do(t, http.MethodDelete, "/v1/simulations/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeData[map[string]any](t, rec)["canceled"])

	out, err := env.orch.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateFailed, out.State)
}

func TestRecoverer(t *testing.T) {
	env := newTestEnv(t, &stubPredictor{})
	env.server.router.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	rec := env.do(t, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), detail.Code)
	assert.NotContains(t, rec.Body.String(), "kaboom")
}

func TestEvents_StreamsOutcomes(t *testing.T) {
	predictor := &stubPredictor{verdict: types.VerdictFail, release: make(chan struct{})}
	env := newTestEnv(t, predictor)

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/simulations/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan outcomeView, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var v outcomeView
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v) == nil {
				events <- v
			}
		}
	}()

	next := func() outcomeView {
		select {
		case v, ok := <-events:
			require.True(t, ok, "stream closed early")
			return v
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return outcomeView{}
		}
	}

	assert.Equal(t, types.StateIdle, next().State)

	_, err = env.orch.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateAttempting, next().State)

	close(predictor.release)
	final := next()
	assert.Equal(t, types.StateSucceeded, final.State)
	assert.Equal(t, "BATCH FAILURE (Fail)", final.StatusText)
}
