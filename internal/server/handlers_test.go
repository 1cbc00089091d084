package server

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(DefaultConfig(), log.New(io.Discard, "", 0))
	ts := httptest.NewServer(NewRouter(srv))
	t.Cleanup(func() {
		srv.Wait()
		ts.Close()
	})
	return srv, ts
}

type startResponse struct {
	ID string     `json:"id"`
	Xs []float64  `json:"xs"`
	Ys []*float64 `json:"ys"`
}

type resultResponse struct {
	ID         string `json:"id"`
	Done       bool   `json:"done"`
	Iterations int    `json:"iterations"`
	Err        string `json:"err"`
	Kind       string `json:"kind"`
	Result     *struct {
		Root        float64 `json:"root"`
		Value       float64 `json:"value"`
		Evaluations int     `json:"evaluations"`
		Iterations  int     `json:"iterations"`
	} `json:"result"`
}

func start(t *testing.T, ts *httptest.Server, body string) startResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/start", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("start: %s: %s", resp.Status, msg)
	}
	var sr startResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatal(err)
	}
	return sr
}

func result(t *testing.T, ts *httptest.Server, id string) resultResponse {
	t.Helper()
	resp, err := http.Get(ts.URL + "/result?id=" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result: %s", resp.Status)
	}
	var rr resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		t.Fatal(err)
	}
	return rr
}

func TestRunBrent(t *testing.T) {
	srv, ts := newTestServer(t)

	sr := start(t, ts, `{"func": "sin(x)", "lo": 3, "hi": 4}`)
	if sr.ID == "" {
		t.Fatal("empty run id")
	}
	if len(sr.Xs) != 400 || len(sr.Ys) != 400 {
		t.Fatalf("plot has %d/%d points", len(sr.Xs), len(sr.Ys))
	}
	if sr.Xs[0] != 3 || sr.Xs[399] != 4 || sr.Ys[0] == nil || *sr.Ys[0] != math.Sin(3) {
		t.Errorf("plot endpoints: x %v..%v", sr.Xs[0], sr.Xs[399])
	}

	srv.Wait()
	rr := result(t, ts, sr.ID)
	if !rr.Done || rr.Result == nil {
		t.Fatalf("run not finished: %+v", rr)
	}
	if math.Abs(rr.Result.Root-math.Pi) > 1e-6 {
		t.Errorf("root = %v", rr.Result.Root)
	}
	if rr.Result.Evaluations > 7 {
		t.Errorf("%d evaluations", rr.Result.Evaluations)
	}

	resp, err := http.Get(ts.URL + "/export?id=" + sr.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != rr.Iterations+1 {
		t.Errorf("%d csv rows for %d iterations", len(rows), rr.Iterations)
	}
	if rows[0][0] != "k" || rows[0][1] != "kind" {
		t.Errorf("header %v", rows[0])
	}
}

func TestRunBisection(t *testing.T) {
	srv, ts := newTestServer(t)

	sr := start(t, ts, `{"func": "x ** 2 - 2", "lo": 0, "hi": 2, "initial": 1.5, "method": "bisection"}`)
	srv.Wait()
	rr := result(t, ts, sr.ID)
	if rr.Result == nil || math.Abs(rr.Result.Root-math.Sqrt2) > 3e-6 {
		t.Fatalf("result %+v", rr)
	}
}

func TestRunFailures(t *testing.T) {
	srv, ts := newTestServer(t)

	tests := []struct {
		body string
		kind string
	}{
		{`{"func": "sin(x)", "lo": 1, "hi": 1.5}`, "no bracketing"},
		{`{"func": "(x - 1) * (x - 0,5) * x * (x + 0,5) * (x + 1)", "lo": 0.85, "hi": 5, "maxEvaluations": 10}`, "too many evaluations"},
	}
	for _, tt := range tests {
		sr := start(t, ts, tt.body)
		srv.Wait()
		rr := result(t, ts, sr.ID)
		if !rr.Done || rr.Result != nil || rr.Kind != tt.kind {
			t.Errorf("%s: %+v, want kind %q", tt.body, rr, tt.kind)
		}
	}
}

func TestBadRequests(t *testing.T) {
	_, ts := newTestServer(t)

	post := func(path, body string) int {
		t.Helper()
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	get := func(path string) int {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"json", post("/start", `{`), http.StatusBadRequest},
		{"interval", post("/start", `{"func": "x", "lo": 1, "hi": -1}`), http.StatusBadRequest},
		{"guess", post("/start", `{"func": "x", "lo": 0, "hi": 0.6, "initial": 7}`), http.StatusBadRequest},
		{"expr", post("/start", `{"func": "sin(", "lo": 0, "hi": 1}`), http.StatusBadRequest},
		{"method", post("/start", `{"func": "x", "lo": 0, "hi": 1, "method": "newton"}`), http.StatusBadRequest},
		{"start get", get("/start"), http.StatusMethodNotAllowed},
		{"stop get", get("/stop?id=x"), http.StatusMethodNotAllowed},
		{"no id", get("/result"), http.StatusBadRequest},
		{"unknown id", get("/export?id=nope"), http.StatusNotFound},
		{"stop unknown", post("/stop?id=nope", ""), http.StatusNotFound},
		{"stream unknown", get("/stream?id=nope"), http.StatusNotFound},
		{"stream no id", get("/stream"), http.StatusBadRequest},
		{"help", get("/help"), http.StatusOK},
		{"missing page", get("/nope"), http.StatusNotFound},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: status %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestStopFinishedRun(t *testing.T) {
	srv, ts := newTestServer(t)

	sr := start(t, ts, `{"func": "sin(x)", "lo": 3, "hi": 4}`)
	srv.Wait()
	resp, err := http.Post(ts.URL+"/stop?id="+sr.ID, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status %d", resp.StatusCode)
	}
	if rr := result(t, ts, sr.ID); rr.Result == nil {
		t.Errorf("stopping a finished run lost its result: %+v", rr)
	}
}

// streamEvents читает поток событий запуска до его закрытия сервером.
func streamEvents(t *testing.T, ts *httptest.Server, id string) []map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream?id="+id, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	var events []map[string]any
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("stream did not end: %v", err)
	}
	return events
}

func TestStream(t *testing.T) {
	srv, ts := newTestServer(t)

	sr := start(t, ts, `{"func": "sin(x)", "lo": 3, "hi": 4}`)
	events := streamEvents(t, ts, sr.ID)

	srv.Wait()
	rr := result(t, ts, sr.ID)
	if len(events) != rr.Iterations+2 {
		t.Fatalf("%d events for %d iterations", len(events), rr.Iterations)
	}
	if events[0]["type"] != "start" || events[0]["id"] != sr.ID {
		t.Errorf("first event %v", events[0])
	}
	for _, ev := range events[1 : len(events)-1] {
		if ev["type"] != "iter" {
			t.Errorf("event %v, want iter", ev)
		}
	}
	last := events[len(events)-1]
	if last["type"] != "done" || math.Abs(last["x"].(float64)-math.Pi) > 1e-6 {
		t.Errorf("last event %v", last)
	}

	// поздний подписчик получает тот же журнал
	again := streamEvents(t, ts, sr.ID)
	if len(again) != len(events) {
		t.Errorf("replay has %d events, want %d", len(again), len(events))
	}
	if srv.hub.Subscribers(sr.ID) != 0 {
		t.Error("stream left its subscription behind")
	}
}

func TestStreamFailure(t *testing.T) {
	srv, ts := newTestServer(t)

	sr := start(t, ts, `{"func": "sin(x)", "lo": 1, "hi": 1.5}`)
	srv.Wait()
	events := streamEvents(t, ts, sr.ID)
	if len(events) != 2 || events[0]["type"] != "start" {
		t.Fatalf("events %v", events)
	}
	if last := events[1]; last["type"] != "error" || last["kind"] != "no bracketing" {
		t.Errorf("last event %v", last)
	}
}
