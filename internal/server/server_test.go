package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/page"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/poll"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/recorder"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/refresh"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/settings"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/storage"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	baseURL string
	srv     *Server
	clock   *clock.VirtualClock
	ctl     *page.Controller
	runs    *atomic.Int32
	rec     *recorder.Recorder
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()
	quiet := quietLogger()
	vc := clock.NewVirtualClock(epoch)
	rec := recorder.New(nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln.Addr().String(), vc, WithLogger(quiet), WithRecorder(rec))

	runs := new(atomic.Int32)
	task := refresh.New("plugin", vc, refresh.WithLogger(quiet), refresh.WithRepeat(refresh.RepeatForever))
	ctl := page.New("plugin", task, settings.New(storage.NewMemoryStorage(vc)),
		page.WithLogger(quiet), page.WithWork(func() { runs.Add(1) }))
	srv.AddPage(&Page{Controller: ctl})

	go srv.StartOnListener(ln)
	t.Cleanup(func() {
		task.Stop()
		srv.Shutdown(context.Background())
	})
	return &testEnv{
		baseURL: "http://" + ln.Addr().String(),
		srv:     srv,
		clock:   vc,
		ctl:     ctl,
		runs:    runs,
		rec:     rec,
	}
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, PageResponse) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var pr PageResponse
	json.NewDecoder(resp.Body).Decode(&pr)
	return resp, pr
}

func TestServer_Root(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["service"] != "autorefresh" {
		t.Errorf("service = %q, want %q", body["service"], "autorefresh")
	}
	if body["time"] != epoch.Format(time.RFC3339) {
		t.Errorf("time = %q, want %q", body["time"], epoch.Format(time.RFC3339))
	}
}

func TestServer_Health(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_NotFound(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_UnknownPage(t *testing.T) {
	env := startTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, env.baseURL+"/api/pages/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_GetPage(t *testing.T) {
	env := startTestServer(t)

	resp, pr := doJSON(t, http.MethodGet, env.baseURL+"/api/pages/plugin", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if pr.Page != "plugin" {
		t.Errorf("page = %q, want %q", pr.Page, "plugin")
	}
	if pr.UpdateActive || pr.Task.Running {
		t.Errorf("new page should be inactive, got %+v", pr)
	}
}

func TestServer_ListPages(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/api/pages")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var list []PageResponse
	json.NewDecoder(resp.Body).Decode(&list)
	if len(list) != 1 || list[0].Page != "plugin" {
		t.Errorf("pages = %+v, want [plugin]", list)
	}
}

func TestServer_UpdatePage(t *testing.T) {
	env := startTestServer(t)

	resp, pr := doJSON(t, http.MethodPut, env.baseURL+"/api/pages/plugin",
		map[string]any{"update_active": true, "update_interval": 5000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !pr.UpdateActive || pr.UpdateInterval != 5000 {
		t.Errorf("settings = %t/%d, want true/5000", pr.UpdateActive, pr.UpdateInterval)
	}
	if !pr.Task.Armed || pr.Task.Interval != 5000 {
		t.Errorf("task = %+v, want armed at 5000ms", pr.Task)
	}
	if got := env.runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1 (immediate)", got)
	}
	if pr.Refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", pr.Refreshes)
	}

	env.clock.Advance(5 * time.Second)
	if got := env.runs.Load(); got != 2 {
		t.Errorf("runs after interval = %d, want 2", got)
	}
}

func TestServer_UpdatePage_NullFieldsKeep(t *testing.T) {
	env := startTestServer(t)
	doJSON(t, http.MethodPut, env.baseURL+"/api/pages/plugin",
		map[string]any{"update_active": true, "update_interval": 1000})

	_, pr := doJSON(t, http.MethodPut, env.baseURL+"/api/pages/plugin",
		map[string]any{"update_active": nil, "update_interval": 2000})
	if !pr.UpdateActive || pr.UpdateInterval != 2000 {
		t.Errorf("settings = %t/%d, want true/2000", pr.UpdateActive, pr.UpdateInterval)
	}
}

func TestServer_UpdatePage_BadRequests(t *testing.T) {
	env := startTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, env.baseURL+"/api/pages/plugin", strings.NewReader("{"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPut, env.baseURL+"/api/pages/plugin",
		map[string]any{"update_interval": -1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative interval: status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_Form(t *testing.T) {
	env := startTestServer(t)

	resp, pr := doJSON(t, http.MethodPost, env.baseURL+"/api/pages/plugin/form",
		FormRequest{Active: true, IntervalSeconds: 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !pr.UpdateActive || pr.UpdateInterval != 2000 || !pr.Task.Armed {
		t.Errorf("page = %+v, want active and armed at 2000ms", pr)
	}
	if got := env.runs.Load(); got != 0 {
		t.Errorf("runs = %d, want 0 (form does not run immediately)", got)
	}
}

func TestServer_FormZeroIntervalDisablesActive(t *testing.T) {
	env := startTestServer(t)

	_, pr := doJSON(t, http.MethodPost, env.baseURL+"/api/pages/plugin/form",
		FormRequest{Active: true, IntervalSeconds: 0})
	if pr.UpdateActive || pr.ActiveEnabled {
		t.Errorf("page = %+v, want active control disabled", pr)
	}
	if pr.Reason != page.ReasonNoInterval {
		t.Errorf("reason = %q, want %q", pr.Reason, page.ReasonNoInterval)
	}
}

func TestServer_Stop(t *testing.T) {
	env := startTestServer(t)
	doJSON(t, http.MethodPut, env.baseURL+"/api/pages/plugin",
		map[string]any{"update_active": true, "update_interval": 1000})

	_, pr := doJSON(t, http.MethodPost, env.baseURL+"/api/pages/plugin/stop", nil)
	if pr.UpdateActive || pr.Task.Running {
		t.Errorf("page = %+v, want stopped", pr)
	}

	env.clock.Advance(time.Minute)
	if got := env.runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestServer_RefreshAndBlock(t *testing.T) {
	env := startTestServer(t)

	_, pr := doJSON(t, http.MethodPost, env.baseURL+"/api/pages/plugin/refresh", nil)
	if pr.Refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", pr.Refreshes)
	}

	_, pr = doJSON(t, http.MethodPost, env.baseURL+"/api/pages/plugin/block", BlockRequest{Blocked: true})
	if !pr.Blocked || pr.ActiveEnabled {
		t.Errorf("page = %+v, want blocked", pr)
	}
}

func TestServer_DataWithoutFetcher(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/api/pages/plugin/data")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_DataFromFetcher(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":3}`))
	}))
	defer upstream.Close()

	vc := clock.NewVirtualClock(epoch)
	quiet := quietLogger()
	srv := New("", vc, WithLogger(quiet))
	cfg := poll.DefaultConfig()
	cfg.BaseURL = upstream.URL
	cfg.Rate = 0
	fetcher, err := poll.New("items", cfg, poll.WithLogger(quiet))
	if err != nil {
		t.Fatal(err)
	}
	task := refresh.New("items", vc, refresh.WithLogger(quiet), refresh.WithRepeat(refresh.RepeatForever))
	ctl := page.New("items", task, settings.New(storage.NewMemoryStorage(vc)), page.WithLogger(quiet))
	publish := srv.AddPage(&Page{Controller: ctl, Fetcher: fetcher})
	task.SetCallback(fetcher.Callback(context.Background(), publish))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/pages/items/data")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("before fetch: status = %d, want 204", resp.StatusCode)
	}

	if err := task.Start(nil, time.Second, true, refresh.RepeatKeep); err != nil {
		t.Fatal(err)
	}
	task.Stop()

	resp, err = http.Get(ts.URL + "/api/pages/items/data")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var snap poll.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	if string(snap.Data) != `{"items":3}` {
		t.Errorf("data = %s, want %s", snap.Data, `{"items":3}`)
	}
}

func TestServer_Events(t *testing.T) {
	env := startTestServer(t)
	env.rec.Record(recorder.Event{Time: epoch, Page: "plugin", Status: 200})
	env.rec.Record(recorder.Event{Time: epoch, Page: "plugin", Error: "boom"})
	env.rec.Record(recorder.Event{Time: epoch, Page: "logics", Status: 200})

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?page=plugin", 2},
		{"?failed=true", 1},
		{"?limit=1", 1},
	}
	for _, tt := range tests {
		resp, err := http.Get(env.baseURL + "/api/events" + tt.query)
		if err != nil {
			t.Fatal(err)
		}
		var events []recorder.Event
		json.NewDecoder(resp.Body).Decode(&events)
		resp.Body.Close()
		if len(events) != tt.want {
			t.Errorf("events%s = %d, want %d", tt.query, len(events), tt.want)
		}
	}

	resp, err := http.Get(env.baseURL + "/api/events?limit=x")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_Dashboard(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/dashboard/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Autorefresh Dashboard") {
		t.Error("dashboard body missing title")
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.baseURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, typ string) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading %s message: %v", typ, err)
		}
		if msg.Type == typ {
			return msg
		}
	}
}

func TestServer_WebSocketBroadcastsSync(t *testing.T) {
	env := startTestServer(t)
	conn := dialWS(t, env)

	doJSON(t, http.MethodPut, env.baseURL+"/api/pages/plugin",
		map[string]any{"update_active": true, "update_interval": 3000})

	msg := readMessage(t, conn, MsgActive)
	if msg.Page != "plugin" || msg.Active == nil || !*msg.Active {
		t.Errorf("active message = %+v, want plugin active", msg)
	}
	msg = readMessage(t, conn, MsgInterval)
	if msg.Interval == nil || *msg.Interval != 3000 {
		t.Errorf("interval message = %+v, want 3000", msg)
	}
}

func TestServer_WebSocketUpdate(t *testing.T) {
	env := startTestServer(t)
	conn := dialWS(t, env)

	active, interval := true, 4000.0
	err := conn.WriteJSON(Message{Type: MsgUpdate, Page: "plugin", Active: &active, Interval: &interval})
	if err != nil {
		t.Fatal(err)
	}

	readMessage(t, conn, MsgInterval)
	s := env.ctl.Settings()
	if !s.Active || s.Interval != 4*time.Second {
		t.Errorf("settings = %+v, want active at 4s", s)
	}
}
