package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"cargohold.ai/internal/persistence/indexdb"
	"cargohold.ai/internal/sim/world"
	"cargohold.ai/internal/transport/ws"
)

// runtimeWorld is what the http surface needs from a running world.
type runtimeWorld interface {
	ws.World
	CurrentTick() uint64
	Metrics() world.WorldMetrics
	RequestState(ctx context.Context, snapshot bool) (world.AdminState, error)
}

type indexStats interface {
	Stats() indexdb.Stats
}

func newMux(cfg serverConfig, w runtimeWorld, idx *indexdb.SQLiteIndex, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	var stats indexStats
	if idx != nil {
		stats = idx
	}
	mux.HandleFunc("/metrics", metricsHandler(cfg.WorldID, w, stats))

	if cfg.EnableAdminHTTP {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", loopbackOnly(adminStateHandler(cfg.WorldID, w, false)))
		mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			adminStateHandler(cfg.WorldID, w, true)(rw, r)
		}))
	} else {
		logger.Printf("admin endpoints disabled")
	}
	if cfg.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())
	return mux
}

func adminStateHandler(worldID string, w runtimeWorld, snapshot bool) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st, err := w.RequestState(ctx, snapshot)

		resp := struct {
			WorldID string             `json:"world_id"`
			State   world.AdminState   `json:"state"`
			Metrics world.WorldMetrics `json:"metrics"`
			Error   string             `json:"error,omitempty"`
		}{WorldID: worldID, State: st, Metrics: w.Metrics()}

		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			resp.Error = err.Error()
			rw.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func metricsHandler(worldID string, w runtimeWorld, idx indexStats) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, worldID, w, idx)
	}
}

// writeMetrics emits a minimal Prometheus exposition.
func writeMetrics(out io.Writer, worldID string, w runtimeWorld, idx indexStats) {
	m := w.Metrics()
	tick := w.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	gauge := func(name, help string, value any, labels ...string) {
		fmt.Fprintf(out, "# HELP %s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE %s gauge\n", name)
		writeSample(out, name, worldID, value, labels...)
	}
	gauge("cargohold_world_tick", "Current world tick.", tick)
	gauge("cargohold_world_players", "Players in the world.", m.Players)
	gauge("cargohold_world_clients", "Connected clients.", m.Clients)
	gauge("cargohold_world_objects", "Objects in the world.", m.Objects)
	gauge("cargohold_world_running_switches", "Conveyor switches driving their belts.", m.RunningSwitches)
	gauge("cargohold_world_armed_explosives", "Armed explosives.", m.ArmedExplosives)
	gauge("cargohold_world_scheduled_tasks", "Registered periodic updates.", m.ScheduledTasks)
	gauge("cargohold_world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

	fmt.Fprintf(out, "# HELP cargohold_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(out, "# TYPE cargohold_world_queue_depth gauge\n")
	writeSample(out, "cargohold_world_queue_depth", worldID, m.QueueDepths.Inbox, "queue", "inbox")
	writeSample(out, "cargohold_world_queue_depth", worldID, m.QueueDepths.Join, "queue", "join")
	writeSample(out, "cargohold_world_queue_depth", worldID, m.QueueDepths.Leave, "queue", "leave")
	writeSample(out, "cargohold_world_queue_depth", worldID, m.QueueDepths.Attach, "queue", "attach")

	if idx == nil {
		return
	}
	s := idx.Stats()
	gauge("cargohold_index_queue_depth", "Index write queue depth.", s.QueueDepth)
	fmt.Fprintf(out, "# HELP cargohold_index_dropped_total Index writes dropped on backpressure.\n")
	fmt.Fprintf(out, "# TYPE cargohold_index_dropped_total counter\n")
	writeSample(out, "cargohold_index_dropped_total", worldID, s.DropTickTotal, "kind", "tick")
	writeSample(out, "cargohold_index_dropped_total", worldID, s.DropAuditTotal, "kind", "audit")
	writeSample(out, "cargohold_index_dropped_total", worldID, s.DropSnapshotTotal, "kind", "snapshot")
	writeSample(out, "cargohold_index_dropped_total", worldID, s.DropSnapshotStateTotal, "kind", "snapshot_state")
	fmt.Fprintf(out, "# HELP cargohold_index_write_errors_total Failed index transactions.\n")
	fmt.Fprintf(out, "# TYPE cargohold_index_write_errors_total counter\n")
	writeSample(out, "cargohold_index_write_errors_total", worldID, s.WriteErrorTotal)
}

func writeSample(out io.Writer, name, worldID string, value any, labels ...string) {
	var b strings.Builder
	fmt.Fprintf(&b, "world=%q", worldID)
	for i := 0; i+1 < len(labels); i += 2 {
		fmt.Fprintf(&b, ",%s=%q", labels[i], labels[i+1])
	}
	fmt.Fprintf(out, "%s{%s} %v\n", name, b.String(), value)
}

func loopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
