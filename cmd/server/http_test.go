package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cargohold.ai/internal/persistence/indexdb"
	"cargohold.ai/internal/sim/world"
)

type fakeRuntime struct {
	inbox  chan world.ActionEnvelope
	join   chan world.JoinRequest
	attach chan world.AttachRequest
	leave  chan string

	metrics   world.WorldMetrics
	state     world.AdminState
	stateErr  error
	snapshots int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		inbox:  make(chan world.ActionEnvelope, 1),
		join:   make(chan world.JoinRequest, 1),
		attach: make(chan world.AttachRequest, 1),
		leave:  make(chan string, 1),
	}
}

func (f *fakeRuntime) Inbox() chan<- world.ActionEnvelope { return f.inbox }
func (f *fakeRuntime) Join() chan<- world.JoinRequest     { return f.join }
func (f *fakeRuntime) Attach() chan<- world.AttachRequest { return f.attach }
func (f *fakeRuntime) Leave() chan<- string               { return f.leave }
func (f *fakeRuntime) CurrentTick() uint64                { return 3 }
func (f *fakeRuntime) Metrics() world.WorldMetrics        { return f.metrics }
func (f *fakeRuntime) RequestState(ctx context.Context, snapshot bool) (world.AdminState, error) {
	if snapshot {
		f.snapshots++
	}
	return f.state, f.stateErr
}

type fakeStats struct{ s indexdb.Stats }

func (f fakeStats) Stats() indexdb.Stats { return f.s }

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestWriteMetrics(t *testing.T) {
	f := newFakeRuntime()
	f.metrics = world.WorldMetrics{Tick: 42, Players: 2, RunningSwitches: 1, QueueDepths: world.QueueDepths{Inbox: 5}}

	var b strings.Builder
	writeMetrics(&b, "hold_1", f, fakeStats{indexdb.Stats{DropAuditTotal: 4}})
	out := b.String()
	for _, want := range []string{
		`cargohold_world_tick{world="hold_1"} 42`,
		`cargohold_world_players{world="hold_1"} 2`,
		`cargohold_world_running_switches{world="hold_1"} 1`,
		`cargohold_world_queue_depth{world="hold_1",queue="inbox"} 5`,
		`cargohold_index_dropped_total{world="hold_1",kind="audit"} 4`,
		"# TYPE cargohold_world_step_ms gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWriteMetrics_NoIndex(t *testing.T) {
	var b strings.Builder
	writeMetrics(&b, "hold_1", newFakeRuntime(), nil)
	if !strings.Contains(b.String(), `cargohold_world_tick{world="hold_1"} 3`) {
		t.Fatalf("tick should fall back to CurrentTick:\n%s", b.String())
	}
	if strings.Contains(b.String(), "cargohold_index_") {
		t.Fatalf("unexpected index metrics")
	}
}

func TestAdminState_LoopbackOnly(t *testing.T) {
	f := newFakeRuntime()
	f.state = world.AdminState{Tick: 9, Digest: "d"}
	mux := newMux(serverConfig{WorldID: "hold_1", EnableAdminHTTP: true}, f, nil, quietLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("loopback status=%d", rec.Code)
	}
	var body struct {
		WorldID string           `json:"world_id"`
		State   world.AdminState `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.WorldID != "hold_1" || body.State.Tick != 9 || body.State.Digest != "d" {
		t.Fatalf("body: %+v", body)
	}
}

func TestAdminSnapshot(t *testing.T) {
	f := newFakeRuntime()
	mux := newMux(serverConfig{WorldID: "hold_1", EnableAdminHTTP: true}, f, nil, quietLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status=%d", rec.Code)
	}

	f.stateErr = errors.New("snapshot sink backpressure")
	req = httptest.NewRequest(http.MethodPost, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "[::1]:1"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable || f.snapshots != 1 {
		t.Fatalf("status=%d snapshots=%d", rec.Code, f.snapshots)
	}
	if !strings.Contains(rec.Body.String(), "backpressure") {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func TestAdminDisabled(t *testing.T) {
	mux := newMux(serverConfig{WorldID: "hold_1"}, newFakeRuntime(), nil, quietLogger())
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:80":     true,
		"10.1.2.3:80":  false,
		"garbage":      false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
