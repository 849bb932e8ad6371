package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"citypulse/internal/engine"
	"citypulse/internal/store"
)

func newTestServer(t *testing.T, runs RunStore, rec engine.Recorder) (*engine.Engine, http.Handler) {
	t.Helper()
	eng := engine.NewEngine(engine.Options{Seed: 42, MaxRunSteps: 48, Recorder: rec})
	t.Cleanup(func() { _ = eng.Close() })
	return eng, New(eng, runs, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodePayload(t *testing.T, rr *httptest.ResponseRecorder) engine.Payload {
	t.Helper()
	var p engine.Payload
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode payload: %v (%s)", err, rr.Body.String())
	}
	return p
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil, nil)
	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}
}

func TestStateAndStep(t *testing.T) {
	_, h := newTestServer(t, nil, nil)

	rr := do(t, h, http.MethodGet, "/state", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("state: %d", rr.Code)
	}
	p := decodePayload(t, rr)
	if p.Time.T != 0 || len(p.Districts) != 4 || len(p.Lines) != 4 {
		t.Fatalf("unexpected initial state %+v", p.Time)
	}

	rr = do(t, h, http.MethodPost, "/step", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("step: %d", rr.Code)
	}
	p = decodePayload(t, rr)
	if p.Time.T != 1 || p.Time.Hour != 1 {
		t.Fatalf("expected t=1 after step, got %+v", p.Time)
	}
	if p.Trace == nil || len(p.History) != 1 {
		t.Fatalf("expected trace and one history entry")
	}
}

func TestRunValidation(t *testing.T) {
	_, h := newTestServer(t, nil, nil)

	cases := []struct {
		body string
		code int
	}{
		{`{"steps": 5}`, http.StatusOK},
		{`{"steps": 0}`, http.StatusBadRequest},
		{`{"steps": 49}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rr := do(t, h, http.MethodPost, "/run", tc.body)
		if rr.Code != tc.code {
			t.Errorf("run %s: expected %d, got %d (%s)", tc.body, tc.code, rr.Code, rr.Body.String())
		}
	}
}

func TestJump(t *testing.T) {
	_, h := newTestServer(t, nil, nil)

	rr := do(t, h, http.MethodPost, "/jump", `{"hour": 8}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("jump: %d %s", rr.Code, rr.Body.String())
	}
	if p := decodePayload(t, rr); p.Time.Hour != 8 {
		t.Fatalf("expected hour 8, got %d", p.Time.Hour)
	}

	for _, body := range []string{`{"hour": 24}`, `{"hour": -1}`, `{}`} {
		rr = do(t, h, http.MethodPost, "/jump", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("jump %s: expected 400, got %d", body, rr.Code)
		}
		var out map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil || out["error"] == "" {
			t.Errorf("jump %s: expected JSON error body, got %s", body, rr.Body.String())
		}
	}
}

func TestResetStartsNewRun(t *testing.T) {
	eng, h := newTestServer(t, nil, nil)
	do(t, h, http.MethodPost, "/run", `{"steps": 3}`)
	before := eng.RunID()

	rr := do(t, h, http.MethodPost, "/reset", "")
	p := decodePayload(t, rr)
	if p.Time.T != 0 || p.RunID == before {
		t.Fatalf("expected fresh run, got t=%d id=%s", p.Time.T, p.RunID)
	}
}

func TestHistoryAndForecast(t *testing.T) {
	_, h := newTestServer(t, nil, nil)
	do(t, h, http.MethodPost, "/run", `{"steps": 10}`)

	rr := do(t, h, http.MethodGet, "/history?limit=4", "")
	var hist []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(hist))
	}

	if rr := do(t, h, http.MethodGet, "/history?limit=abc", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/forecast", "")
	var fc struct {
		Districts map[string]any `json:"districts"`
		Lines     map[string]any `json:"lines"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &fc); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if len(fc.Districts) != 4 || len(fc.Lines) != 4 {
		t.Fatalf("expected forecast for every district and line, got %d/%d", len(fc.Districts), len(fc.Lines))
	}
}

func TestSimControls(t *testing.T) {
	_, h := newTestServer(t, nil, nil)

	p := decodePayload(t, do(t, h, http.MethodPost, "/sim/start", `{"speed": 2}`))
	if !p.Autoplay.Running || p.Autoplay.Speed != 2 {
		t.Fatalf("expected running at speed 2, got %+v", p.Autoplay)
	}
	p = decodePayload(t, do(t, h, http.MethodPost, "/sim/speed", `{"speed": 3}`))
	if p.Autoplay.Speed != 3 {
		t.Fatalf("expected speed 3, got %+v", p.Autoplay)
	}
	if rr := do(t, h, http.MethodPost, "/sim/speed", `{"speed": 0}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for speed 0, got %d", rr.Code)
	}
	p = decodePayload(t, do(t, h, http.MethodPost, "/sim/pause", ""))
	if p.Autoplay.Running {
		t.Fatal("expected autoplay paused")
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t, nil, nil)
	rr := do(t, h, http.MethodOptions, "/step", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight response %d %v", rr.Code, rr.Header())
	}
}

func TestRunsDisabledWithoutStore(t *testing.T) {
	_, h := newTestServer(t, nil, nil)
	if rr := do(t, h, http.MethodGet, "/runs", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a store, got %d", rr.Code)
	}
}

func TestRunsFromStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	eng, h := newTestServer(t, st, st)
	if _, err := eng.Run(context.Background(), 12); err != nil {
		t.Fatalf("Run: %v", err)
	}
	runID := eng.RunID()

	rr := do(t, h, http.MethodGet, "/runs", "")
	var runs []store.RunSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v (%s)", err, rr.Body.String())
	}
	if len(runs) != 1 || runs[0].RunID != runID || runs[0].Hours != 12 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	rr = do(t, h, http.MethodGet, "/runs/"+runID+"/hours?limit=5", "")
	var hours []store.HourRow
	if err := json.Unmarshal(rr.Body.Bytes(), &hours); err != nil {
		t.Fatalf("decode hours: %v", err)
	}
	if len(hours) != 5 || hours[4].T != 12 {
		t.Fatalf("unexpected hours %+v", hours)
	}

	rr = do(t, h, http.MethodGet, "/runs/"+runID+"/actions", "")
	var actions []struct {
		Target  string   `json:"target"`
		Actions []string `json:"actions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &actions); err != nil {
		t.Fatalf("decode actions: %v", err)
	}
	// hours 1..5 each log the out-of-service entry
	if len(actions) < 5 || actions[0].Actions[0] != "OUT_OF_SERVICE" {
		t.Fatalf("unexpected actions %+v", actions)
	}
}
