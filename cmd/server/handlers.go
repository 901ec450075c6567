package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kitchencraft.ai/internal/catalogs"
	"kitchencraft.ai/internal/config"
	"kitchencraft.ai/internal/kitchen"
	"kitchencraft.ai/internal/persistence/indexdb"
	"kitchencraft.ai/internal/persistence/snapshot"
	"kitchencraft.ai/internal/transport/observer"
	"kitchencraft.ai/internal/transport/ws"
)

type runtime struct {
	cfg     config.Config
	kitchen *kitchen.Kitchen
	gen     ws.Generator
	cats    *catalogs.Catalogs
	index   *indexdb.SQLiteIndex // nil when disabled
	snaps   *snapshotWriter
	logger  *log.Logger

	enableAdmin bool
	enablePprof bool
}

type snapshotRecorder interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

type snapshotWriter struct {
	dir    string
	index  snapshotRecorder
	logger *log.Logger
}

func (w *snapshotWriter) Write(snap snapshot.SnapshotV1) (string, error) {
	path := filepath.Join(w.dir, snapshot.FileName(snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		w.logger.Printf("snapshot write: %v", err)
		return "", err
	}
	if w.index != nil {
		w.index.RecordSnapshot(path, snap)
	}
	return path, nil
}

func (rt *runtime) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", rt.handleMetrics)

	wsOpts := ws.Options{RequestTimeout: time.Duration(rt.cfg.Server.RecipeTimeoutSeconds) * time.Second}
	if rt.index != nil {
		wsOpts.Index = rt.index
	}
	if rt.cats != nil {
		wsOpts.Catalog = rt.cats
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(rt.gen, rt.kitchen, rt.logger, wsOpts).Handler())

	if rt.enableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", rt.loopbackOnly(rt.handleState))
		mux.HandleFunc("/admin/v1/snapshot", rt.loopbackOnly(rt.handleSnapshot))
		mux.HandleFunc("/admin/v1/cooks", rt.loopbackOnly(rt.handleCooks))
		mux.HandleFunc("/admin/v1/recipe", rt.loopbackOnly(rt.handleRecipe))

		obsSrv := observer.NewServer(rt.kitchen, rt.cats.Digest(), rt.logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		rt.logger.Printf("admin endpoints disabled (KC_ENABLE_ADMIN_HTTP=false)")
	}
	if rt.enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func (rt *runtime) loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (rt *runtime) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	id := rt.kitchen.ID()
	s := rt.kitchen.Stats()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP kitchencraft_kitchen_tick Current kitchen tick.\n")
	fmt.Fprintf(rw, "# TYPE kitchencraft_kitchen_tick gauge\n")
	fmt.Fprintf(rw, "kitchencraft_kitchen_tick{kitchen=%q} %d\n", id, s.Tick)

	fmt.Fprintf(rw, "# HELP kitchencraft_kitchen_stations Placed stations.\n")
	fmt.Fprintf(rw, "# TYPE kitchencraft_kitchen_stations gauge\n")
	fmt.Fprintf(rw, "kitchencraft_kitchen_stations{kitchen=%q} %d\n", id, s.Stations)

	fmt.Fprintf(rw, "# HELP kitchencraft_kitchen_cooking Stations with a process running.\n")
	fmt.Fprintf(rw, "# TYPE kitchencraft_kitchen_cooking gauge\n")
	fmt.Fprintf(rw, "kitchencraft_kitchen_cooking{kitchen=%q} %d\n", id, s.Cooking)

	fmt.Fprintf(rw, "# HELP kitchencraft_kitchen_events_total Cook events by type.\n")
	fmt.Fprintf(rw, "# TYPE kitchencraft_kitchen_events_total counter\n")
	fmt.Fprintf(rw, "kitchencraft_kitchen_events_total{kitchen=%q,type=%q} %d\n", id, kitchen.EventCookDone, s.Completed)
	fmt.Fprintf(rw, "kitchencraft_kitchen_events_total{kitchen=%q,type=%q} %d\n", id, kitchen.EventCookAborted, s.Aborted)
	fmt.Fprintf(rw, "kitchencraft_kitchen_events_total{kitchen=%q,type=%q} %d\n", id, kitchen.EventRecipeStored, s.Stored)

	if rt.index == nil {
		return
	}
	is := rt.index.Stats()
	fmt.Fprintf(rw, "# HELP kitchencraft_index_queue_depth Index write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE kitchencraft_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "kitchencraft_index_queue_depth %d\n", is.QueueDepth)

	fmt.Fprintf(rw, "# HELP kitchencraft_index_queue_capacity Index write queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE kitchencraft_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "kitchencraft_index_queue_capacity %d\n", is.QueueCapacity)

	fmt.Fprintf(rw, "# HELP kitchencraft_index_dropped_total Index writes dropped on a full queue.\n")
	fmt.Fprintf(rw, "# TYPE kitchencraft_index_dropped_total counter\n")
	fmt.Fprintf(rw, "kitchencraft_index_dropped_total{kind=%q} %d\n", "cook", is.DropCookTotal)
	fmt.Fprintf(rw, "kitchencraft_index_dropped_total{kind=%q} %d\n", "recipe", is.DropRecipeTotal)
	fmt.Fprintf(rw, "kitchencraft_index_dropped_total{kind=%q} %d\n", "snapshot", is.DropSnapshotTotal)
}

func (rt *runtime) handleState(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	stations, err := rt.kitchen.Stations(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, struct {
		KitchenID     string                `json:"kitchen_id"`
		Tick          uint64                `json:"tick"`
		CatalogDigest string                `json:"catalog_digest"`
		Stats         kitchen.Stats         `json:"stats"`
		Stations      []kitchen.StationInfo `json:"stations"`
	}{
		KitchenID:     rt.kitchen.ID(),
		Tick:          rt.kitchen.CurrentTick(),
		CatalogDigest: rt.cats.Digest(),
		Stats:         rt.kitchen.Stats(),
		Stations:      stations,
	})
}

func (rt *runtime) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	snap, err := rt.kitchen.Snapshot(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	path, err := rt.snaps.Write(snap)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "tick": snap.Header.Tick, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": snap.Header.Tick, "path": path})
}

func (rt *runtime) handleCooks(rw http.ResponseWriter, r *http.Request) {
	if rt.index == nil {
		http.Error(rw, "index disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(rw, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	rows, err := rt.index.RecentCooks(r.Context(), limit)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "cooks": rows})
}

func (rt *runtime) handleRecipe(rw http.ResponseWriter, r *http.Request) {
	if rt.index == nil {
		http.Error(rw, "index disabled", http.StatusNotFound)
		return
	}
	dish := strings.TrimSpace(r.URL.Query().Get("dish"))
	if dish == "" {
		http.Error(rw, "missing dish", http.StatusBadRequest)
		return
	}
	rd, ok, err := rt.index.LatestRecipe(r.Context(), dish, r.URL.Query().Get("category"))
	switch {
	case err != nil:
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
	case !ok:
		writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false})
	default:
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "recipe": rd})
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
