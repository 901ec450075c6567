package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"kitchencraft.ai/internal/catalogs"
	"kitchencraft.ai/internal/config"
	"kitchencraft.ai/internal/cooking"
	"kitchencraft.ai/internal/kitchen"
	"kitchencraft.ai/internal/persistence/indexdb"
	"kitchencraft.ai/internal/persistence/snapshot"
	"kitchencraft.ai/internal/protocol"
	"kitchencraft.ai/internal/recipe"
)

type stubGen struct{}

func (stubGen) GenerateRecipeForDish(ctx context.Context, dish, category string) (*recipe.RecipeData, error) {
	return &recipe.RecipeData{DishName: dish, TotalWeightGrams: 100}, nil
}

func newTestRuntime(t *testing.T, withIndex bool) *runtime {
	t.Helper()
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	k, err := kitchen.New(kitchen.Config{ID: "k_test", TickRateHz: 5}, nil)
	if err != nil {
		t.Fatalf("kitchen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = k.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	dir := t.TempDir()
	logger := log.New(io.Discard, "", 0)
	rt := &runtime{
		cfg:         config.Defaults(),
		kitchen:     k,
		gen:         stubGen{},
		cats:        cats,
		snaps:       &snapshotWriter{dir: filepath.Join(dir, "snapshots"), logger: logger},
		logger:      logger,
		enableAdmin: true,
	}
	if withIndex {
		idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index", "kitchen.sqlite"))
		if err != nil {
			t.Fatalf("open index: %v", err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		rt.index = idx
		rt.snaps.index = idx
	}
	return rt
}

func serve(t *testing.T, rt *runtime, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	rt.routes().ServeHTTP(rec, req)
	return rec
}

func TestMetrics(t *testing.T) {
	rt := newTestRuntime(t, true)
	rec := serve(t, rt, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`kitchencraft_kitchen_tick{kitchen="k_test"}`,
		`kitchencraft_kitchen_events_total{kitchen="k_test",type="COOK_DONE"} 0`,
		`kitchencraft_index_queue_capacity 4096`,
		`kitchencraft_index_dropped_total{kind="recipe"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestAdminState_And_Snapshot(t *testing.T) {
	rt := newTestRuntime(t, false)
	if err := rt.kitchen.Place(context.Background(), kitchen.Pos{X: 0, Y: 64, Z: 0}, cooking.KindOven); err != nil {
		t.Fatalf("place: %v", err)
	}

	rec := serve(t, rt, http.MethodGet, "/admin/v1/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("state status got=%d want=%d", rec.Code, http.StatusOK)
	}
	var state struct {
		KitchenID string                `json:"kitchen_id"`
		Stations  []kitchen.StationInfo `json:"stations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.KitchenID != "k_test" || len(state.Stations) != 1 {
		t.Fatalf("state=%+v", state)
	}

	if rec := serve(t, rt, http.MethodGet, "/admin/v1/snapshot"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET snapshot status got=%d want=%d", rec.Code, http.StatusMethodNotAllowed)
	}
	rec = serve(t, rt, http.MethodPost, "/admin/v1/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status got=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK   bool   `json:"ok"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK {
		t.Fatalf("resp=%+v", resp)
	}
	if _, err := os.Stat(resp.Path); err != nil {
		t.Fatalf("snapshot file: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(resp.Path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(snap.Stations) != 1 || snap.Stations[0].Kind != string(cooking.KindOven) {
		t.Fatalf("stations=%+v", snap.Stations)
	}
}

func TestAdmin_IndexQueries(t *testing.T) {
	rt := newTestRuntime(t, false)
	if rec := serve(t, rt, http.MethodGet, "/admin/v1/cooks"); rec.Code != http.StatusNotFound {
		t.Fatalf("cooks without index got=%d want=%d", rec.Code, http.StatusNotFound)
	}

	rt = newTestRuntime(t, true)
	if rec := serve(t, rt, http.MethodGet, "/admin/v1/recipe"); rec.Code != http.StatusBadRequest {
		t.Fatalf("recipe without dish got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
	if rec := serve(t, rt, http.MethodGet, "/admin/v1/cooks?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit got=%d want=%d", rec.Code, http.StatusBadRequest)
	}

	rt.index.RecordRecipe("Pancakes", "breakfast", &recipe.RecipeData{DishName: "Pancakes", TotalWeightGrams: 300})
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := serve(t, rt, http.MethodGet, "/admin/v1/recipe?dish=pancakes&category=breakfast")
		if rec.Code == http.StatusOK {
			var resp struct {
				Recipe recipe.RecipeData `json:"recipe"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Recipe.DishName != "Pancakes" || resp.Recipe.TotalWeightGrams != 300 {
				t.Fatalf("recipe=%+v", resp.Recipe)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("recipe never indexed, last status=%d", rec.Code)
		}
		time.Sleep(50 * time.Millisecond)
	}

	rec := serve(t, rt, http.MethodGet, "/admin/v1/cooks?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("cooks status got=%d want=%d", rec.Code, http.StatusOK)
	}
}

func TestAdmin_LoopbackOnly(t *testing.T) {
	rt := newTestRuntime(t, false)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "203.0.113.7:5000"
	rec := httptest.NewRecorder()
	rt.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusForbidden)
	}

	rt.enableAdmin = false
	if rec := serve(t, rt, http.MethodGet, "/admin/v1/state"); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled admin got=%d want=%d", rec.Code, http.StatusNotFound)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("KC_TEST_BOOL", "yes")
	if !envBool("KC_TEST_BOOL", false) {
		t.Fatalf("envBool(yes) got=false want=true")
	}
	t.Setenv("KC_TEST_BOOL", "junk")
	if envBool("KC_TEST_BOOL", false) {
		t.Fatalf("envBool(junk) got=true want=default false")
	}
}

func TestWS_BuildsKitchenFromEmpty(t *testing.T) {
	rt := newTestRuntime(t, false)
	srv := httptest.NewServer(rt.routes())
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	exchange := func(out interface{ Encode() ([]byte, error) }) []byte {
		t.Helper()
		b, err := out.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}
	station := func(cmd protocol.StationCommand) protocol.StationResult {
		t.Helper()
		res, err := protocol.DecodeStationResult(exchange(&cmd))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return res
	}

	pot := [3]int{2, 64, 2}
	if res := station(protocol.StationCommand{Op: protocol.OpPlace, Pos: pot, Arg: string(cooking.KindPot)}); !res.Success {
		t.Fatalf("place pot=%+v", res)
	}
	res := station(protocol.StationCommand{Op: protocol.OpAddItem, Pos: pot, Arg: "customcookingmod:rice", Count: 3})
	if !res.Success || res.Status == nil || res.Status.Ingredients != 1 {
		t.Fatalf("add rice=%+v", res)
	}

	ai := [3]int{0, 64, 0}
	if res := station(protocol.StationCommand{Op: protocol.OpPlace, Pos: ai, Arg: string(cooking.KindAIKitchen)}); !res.Success {
		t.Fatalf("place ai kitchen=%+v", res)
	}
	req := protocol.RecipeRequest{RequestID: "r-1", DishName: "Onigiri", Pos: ai}
	resp, err := protocol.DecodeRecipeResponse(exchange(&req))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Code != "" || resp.Recipe == nil || resp.Recipe.DishName != "Onigiri" {
		t.Fatalf("resp=%+v", resp)
	}
	if got := rt.kitchen.Stats().Stations; got != 2 {
		t.Fatalf("stations got=%d want=2", got)
	}
}
