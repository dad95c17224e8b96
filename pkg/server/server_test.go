package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/rostermap/pkg/buildinfo"
	"github.com/matzehuels/rostermap/pkg/cache"
	"github.com/matzehuels/rostermap/pkg/dataset"
	"github.com/matzehuels/rostermap/pkg/observability"
	"github.com/matzehuels/rostermap/pkg/pipeline"
	"github.com/matzehuels/rostermap/pkg/render/sink"
	"github.com/matzehuels/rostermap/pkg/session"
)

func testOptions() pipeline.Options {
	return pipeline.Options{
		Data: dataset.Paths{
			Members:     "testdata/members.csv",
			Territories: "testdata/territories.csv",
			Steps:       "testdata/steps.json",
			Background:  "testdata/background.geojson",
		},
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerWithStore(t, nil)
}

func newTestServerWithStore(t *testing.T, store *session.Store) (*Server, *httptest.Server) {
	t.Helper()
	logger := log.New(io.Discard)
	opts := testOptions()
	opts.SetDefaults()
	loaded, err := pipeline.Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	srv := New(Config{
		Options: opts,
		Runner:  pipeline.NewRunner(fc, nil, logger),
		Store:   store,
		Logger:  logger,
	}, loaded)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = strings.NewReader(string(data))
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v", v, err)
	}
	return v
}

func expectError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Errorf("status = %d, want %d", resp.StatusCode, status)
	}
	if got := decode[ErrorResponse](t, resp); got.Code != code {
		t.Errorf("code = %q, want %q (%s)", got.Code, code, got.Message)
	}
}

func createSession(t *testing.T, base string, req any) SessionResponse {
	t.Helper()
	resp := do(t, http.MethodPost, base+"/api/sessions", req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status = %d", resp.StatusCode)
	}
	return decode[SessionResponse](t, resp)
}

func TestHealth(t *testing.T) {
	srv, ts := newTestServer(t)
	health := decode[HealthResponse](t, do(t, http.MethodGet, ts.URL+"/healthz", nil))
	if health.Status != "ok" || health.Build.Version != buildinfo.Version {
		t.Errorf("healthz = %+v, want ok with build version", health)
	}

	srv.SetDataset(nil)
	expectError(t, do(t, http.MethodGet, ts.URL+"/healthz", nil), http.StatusInternalServerError, "INTERNAL_ERROR")
}

func TestNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	expectError(t, do(t, http.MethodGet, ts.URL+"/nope", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestDataset(t *testing.T) {
	_, ts := newTestServer(t)
	got := decode[DatasetResponse](t, do(t, http.MethodGet, ts.URL+"/api/dataset", nil))

	if got.Members != 10 {
		t.Errorf("Members = %d, want 10", got.Members)
	}
	if got.Steps != 2 {
		t.Errorf("Steps = %d, want 2", got.Steps)
	}
	if got.Hash == "" {
		t.Error("Hash is empty")
	}
	var names []string
	for _, m := range got.Metrics {
		names = append(names, m.Name)
	}
	if want := []string{"per", "salary", "vorp"}; !slices.Equal(names, want) {
		t.Errorf("metrics = %v, want %v", names, want)
	}
	reserved := 0
	for _, tr := range got.Territories {
		if tr.Reserved {
			reserved++
		}
	}
	if len(got.Territories) != 6 || reserved != 2 {
		t.Errorf("territories = %d (%d reserved), want 6 (2 reserved)", len(got.Territories), reserved)
	}
}

func TestSteps(t *testing.T) {
	_, ts := newTestServer(t)
	steps := decode[[]StepInfo](t, do(t, http.MethodGet, ts.URL+"/api/steps", nil))
	if len(steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2", len(steps))
	}
	if steps[0].Index != 0 || steps[0].Date != "2023-06-22" {
		t.Errorf("steps[0] = %+v", steps[0])
	}
	if !slices.Contains(steps[0].Affected, "BOS") {
		t.Errorf("steps[0].Affected = %v, want BOS", steps[0].Affected)
	}
}

func TestSessionLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	sess := createSession(t, ts.URL, nil)
	if sess.Step != -1 || sess.Metric != "salary" || sess.Steps != 2 {
		t.Errorf("new session = %+v", sess)
	}
	base := ts.URL + "/api/sessions/" + sess.ID

	resp := do(t, http.MethodPost, base+"/step", StepRequest{Index: 0, Direction: "down"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("step: status = %d", resp.StatusCode)
	}
	plan := decode[PlanResponse](t, resp)
	if plan.Step != 0 || plan.Direction != "down" {
		t.Errorf("plan = %+v", plan)
	}
	if got := plan.Roles["smartma01"].String(); got != "moving" {
		t.Errorf("role of smartma01 = %s, want moving", got)
	}
	if got := plan.Roles["porzikr01"].String(); got != "entering" {
		t.Errorf("role of porzikr01 = %s, want entering", got)
	}

	got := decode[SessionResponse](t, do(t, http.MethodGet, base, nil))
	if got.Step != 0 || got.Progress != 0 {
		t.Errorf("session after step = %+v", got)
	}

	var doc sink.FrameDocument
	if err := json.NewDecoder(do(t, http.MethodGet, base+"/frame?progress=0.5", nil).Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Step == nil || *doc.Step != 0 || len(doc.Drawables) == 0 {
		t.Errorf("frame = step %v with %d drawables", doc.Step, len(doc.Drawables))
	}

	diff := decode[DiffResponse](t, do(t, http.MethodGet, base+"/frame?progress=1&diff=true", nil))
	if !hasOp(diff.Ops, sink.OpEnter, "porzikr01") && !hasOp(diff.Ops, sink.OpUpdate, "porzikr01") {
		t.Errorf("diff at 1 lacks porzikr01: %+v", diff.Ops)
	}

	svg := do(t, http.MethodGet, base+"/frame.svg?progress=1&interactive=true", nil)
	if ct := svg.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(svg.Body)
	for _, want := range []string{`id="member-porzikr01"`, `2023-06-22`, `<script`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("frame.svg missing %q", want)
		}
	}

	if resp := do(t, http.MethodDelete, base, nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", resp.StatusCode)
	}
	expectError(t, do(t, http.MethodGet, base, nil), http.StatusNotFound, "SESSION_NOT_FOUND")
}

func hasOp(ops []sink.Op, kind sink.OpKind, id string) bool {
	return slices.ContainsFunc(ops, func(op sink.Op) bool { return op.Kind == kind && op.MemberID == id })
}

func TestSessionErrors(t *testing.T) {
	_, ts := newTestServer(t)
	sess := createSession(t, ts.URL, CreateSessionRequest{Metric: "vorp"})
	if sess.Metric != "vorp" {
		t.Errorf("Metric = %q, want vorp", sess.Metric)
	}
	base := ts.URL + "/api/sessions/" + sess.ID

	tests := []struct {
		name   string
		method string
		url    string
		body   any
		status int
		code   string
	}{
		{"unknown session", http.MethodGet, ts.URL + "/api/sessions/00000000-0000-0000-0000-000000000000", nil, 404, "SESSION_NOT_FOUND"},
		{"malformed session id", http.MethodGet, ts.URL + "/api/sessions/abc", nil, 404, "SESSION_NOT_FOUND"},
		{"step out of order", http.MethodPost, base + "/step", StepRequest{Index: 1}, 400, "INVALID_INPUT"},
		{"missing step", http.MethodPost, base + "/step", StepRequest{Index: 7}, 404, "STEP_NOT_FOUND"},
		{"bad direction", http.MethodPost, base + "/step", StepRequest{Index: 0, Direction: "left"}, 400, "INVALID_INPUT"},
		{"unknown field", http.MethodPost, base + "/step", map[string]any{"idx": 0}, 400, "INVALID_INPUT"},
		{"bad metric", http.MethodPost, base + "/metric", MetricRequest{Metric: "ppg"}, 400, "INVALID_METRIC"},
		{"seek too far", http.MethodPost, base + "/seek", SeekRequest{Index: 2}, 404, "STEP_NOT_FOUND"},
		{"bad progress", http.MethodGet, base + "/frame?progress=half", nil, 400, "INVALID_INPUT"},
		{"create at missing step", http.MethodPost, ts.URL + "/api/sessions", map[string]any{"step": 5}, 404, "STEP_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, do(t, tt.method, tt.url, tt.body), tt.status, tt.code)
		})
	}
}

func TestSessionSeekAndMetric(t *testing.T) {
	_, ts := newTestServer(t)
	step := 1
	sess := createSession(t, ts.URL, CreateSessionRequest{Step: &step})
	if sess.Step != 1 {
		t.Fatalf("Step = %d, want 1", sess.Step)
	}
	base := ts.URL + "/api/sessions/" + sess.ID

	got := decode[SessionResponse](t, do(t, http.MethodPost, base+"/seek", SeekRequest{Index: -1}))
	if got.Step != -1 {
		t.Errorf("Step after seek = %d, want -1", got.Step)
	}

	plan := decode[PlanResponse](t, do(t, http.MethodPost, base+"/metric", MetricRequest{Metric: "per"}))
	if plan.Metric != "per" || plan.Step != -1 {
		t.Errorf("plan = %+v", plan)
	}
	// Free agents stay off the map whatever the metric.
	if role, ok := plan.Roles["porzikr01"]; ok {
		t.Errorf("off-map member has role %s", role)
	}
}

func TestRender(t *testing.T) {
	_, ts := newTestServer(t)
	url := ts.URL + "/api/render?step=0&progress=0.5&format=json&metric=vorp"

	first := do(t, http.MethodGet, url, nil)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("render: status = %d", first.StatusCode)
	}
	if ct := first.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := first.Header.Get("X-Cache"); got != "miss" {
		t.Errorf("X-Cache = %q, want miss", got)
	}
	doc := decode[sink.FrameDocument](t, first)
	if doc.Metric != "vorp" || doc.Progress == nil || *doc.Progress != 0.5 {
		t.Errorf("frame = metric %q progress %v", doc.Metric, doc.Progress)
	}

	if got := do(t, http.MethodGet, url, nil).Header.Get("X-Cache"); got != "hit" {
		t.Errorf("X-Cache = %q, want hit", got)
	}

	expectError(t, do(t, http.MethodGet, ts.URL+"/api/render?format=gif", nil), 400, "INVALID_FORMAT")
	expectError(t, do(t, http.MethodGet, ts.URL+"/api/render?step=9", nil), 404, "STEP_NOT_FOUND")
	expectError(t, do(t, http.MethodGet, ts.URL+"/api/render?progress=NaN", nil), 400, "INVALID_INPUT")
}

func TestNetwork(t *testing.T) {
	_, ts := newTestServer(t)
	expectError(t, do(t, http.MethodGet, ts.URL+"/api/network/x", nil), 400, "INVALID_INPUT")
	expectError(t, do(t, http.MethodGet, ts.URL+"/api/network/9", nil), 404, "STEP_NOT_FOUND")
	expectError(t, do(t, http.MethodGet, ts.URL+"/api/network/0?format=json", nil), 501, "UNSUPPORTED")
}

func TestStream(t *testing.T) {
	_, ts := newTestServer(t)
	sess := createSession(t, ts.URL, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + sess.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() ServerMessage {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		var msg ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}
	send := func(msg ClientMessage) ServerMessage {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("write: %v", err)
		}
		return read()
	}

	seed := read()
	if seed.Type != MsgOps || !hasOp(seed.Ops, sink.OpEnter, "tatumja01") {
		t.Errorf("seed = %+v, want enter ops", seed)
	}
	if hasOp(seed.Ops, sink.OpEnter, "porzikr01") {
		t.Error("free agent drawn before the first step")
	}

	plan := send(ClientMessage{Type: MsgStep, Index: 0, Direction: "down"})
	if plan.Type != MsgPlan || plan.Plan == nil || plan.Plan.Step != 0 {
		t.Fatalf("step reply = %+v", plan)
	}

	ops := send(ClientMessage{Type: MsgProgress, Progress: 1})
	if ops.Type != MsgOps || !hasOp(ops.Ops, sink.OpEnter, "porzikr01") {
		t.Errorf("progress reply = %+v, want porzikr01 entering", ops)
	}

	again := send(ClientMessage{Type: MsgStep, Index: 0})
	if again.Type != MsgError || again.Error == nil || again.Error.Code != "INVALID_INPUT" {
		t.Errorf("replayed step reply = %+v, want INVALID_INPUT", again)
	}

	seek := send(ClientMessage{Type: MsgSeek, Index: -1})
	if seek.Type != MsgOps || !hasOp(seek.Ops, sink.OpExit, "porzikr01") {
		t.Errorf("seek reply = %+v, want porzikr01 exit", seek)
	}

	if got := send(ClientMessage{Type: "jump"}); got.Type != MsgError {
		t.Errorf("unknown type reply = %+v, want error", got)
	}
}

func TestStreamKeepsSessionAlive(t *testing.T) {
	const ttl = 300 * time.Millisecond
	srv, ts := newTestServerWithStore(t, session.NewStore(ttl))
	sess := createSession(t, ts.URL, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + sess.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var seed ServerMessage
	if err := conn.ReadJSON(&seed); err != nil {
		t.Fatalf("read seed: %v", err)
	}

	// Drive the session over the stream alone for twice its ttl.
	deadline := time.Now().Add(2 * ttl)
	for time.Now().Before(deadline) {
		if err := conn.WriteJSON(ClientMessage{Type: MsgProgress, Progress: 0.5}); err != nil {
			t.Fatalf("write: %v", err)
		}
		var reply ServerMessage
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		if reply.Type != MsgOps {
			t.Fatalf("reply = %+v, want ops", reply)
		}
		time.Sleep(ttl / 6)
	}

	if removed := srv.Store().Cleanup(); removed != 0 {
		t.Errorf("Cleanup() removed %d sessions, want 0", removed)
	}
	resp := do(t, http.MethodGet, ts.URL+"/api/sessions/"+sess.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET session status = %d, want 200", resp.StatusCode)
	}
}

func TestStreamSessionDeleted(t *testing.T) {
	srv, ts := newTestServer(t)
	sess := createSession(t, ts.URL, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + sess.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var seed ServerMessage
	if err := conn.ReadJSON(&seed); err != nil {
		t.Fatalf("read seed: %v", err)
	}
	srv.Store().Delete(sess.ID)

	if err := conn.WriteJSON(ClientMessage{Type: MsgProgress, Progress: 0.5}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply ServerMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != MsgError || reply.Error == nil || reply.Error.Code != "SESSION_NOT_FOUND" {
		t.Errorf("reply = %+v, want SESSION_NOT_FOUND", reply)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	_, ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/00000000-0000-0000-0000-000000000000/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial should fail for an unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("handshake response = %v, want 404", resp)
	}
}

type recordingHooks struct {
	observability.NoopServerHooks
	mu       sync.Mutex
	routes   []string
	sessions []int
	messages []string
}

func (h *recordingHooks) OnResponse(_ context.Context, method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, method+" "+strings.TrimSuffix(route, "/"))
}

func (h *recordingHooks) OnSessions(_ context.Context, active int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = append(h.sessions, active)
}

func TestServerHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetServerHooks(hooks)
	t.Cleanup(observability.Reset)

	_, ts := newTestServer(t)
	sess := createSession(t, ts.URL, nil)
	do(t, http.MethodGet, ts.URL+"/api/sessions/"+sess.ID, nil)
	do(t, http.MethodDelete, ts.URL+"/api/sessions/"+sess.ID, nil)

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	for _, want := range []string{"POST /api/sessions", "GET /api/sessions/{id}", "DELETE /api/sessions/{id}"} {
		if !slices.Contains(hooks.routes, want) {
			t.Errorf("routes = %v, missing %q", hooks.routes, want)
		}
	}
	if want := []int{1, 0}; !slices.Equal(hooks.sessions, want) {
		t.Errorf("sessions = %v, want %v", hooks.sessions, want)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	prom := observability.NewPrometheus()
	logger := log.New(io.Discard)
	srv := New(Config{Options: testOptions(), Logger: logger, Metrics: prom.Handler()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := do(t, http.MethodGet, ts.URL+"/metrics", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("metrics: status %d, body %.80s", resp.StatusCode, body)
	}
}
