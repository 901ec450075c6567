package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"kitchencraft.ai/internal/cooking"
	"kitchencraft.ai/internal/kitchen"
	"kitchencraft.ai/internal/protocol"
	"kitchencraft.ai/internal/recipe"
)

type fakeGen struct {
	err error
}

func (g fakeGen) GenerateRecipeForDish(ctx context.Context, dish, category string) (*recipe.RecipeData, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &recipe.RecipeData{
		DishName:         dish,
		TotalWeightGrams: 250,
		Ingredients: []recipe.Ingredient{
			{ItemID: "minecraft:egg", AmountType: recipe.AmountCount, Amount: 2},
		},
		Steps:             []recipe.Step{{Action: "fry_in_pan", Description: "fry"}},
		NutritionPer100g:  5,
		SaturationPer100g: 0.5,
		ExpirationHours:   24,
	}, nil
}

type memIndex struct {
	mu     sync.Mutex
	dishes []string
}

func (m *memIndex) RecordRecipe(dish, category string, rd *recipe.RecipeData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dishes = append(m.dishes, dish)
}

func startKitchen(t *testing.T, hz int) *kitchen.Kitchen {
	t.Helper()
	k, err := kitchen.New(kitchen.Config{TickRateHz: hz}, nil)
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
	return k
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, frame []byte) protocol.RecipeResponse {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type got=%d want=%d", mt, websocket.BinaryMessage)
	}
	resp, err := protocol.DecodeRecipeResponse(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestServer_StoresRecipeInAIKitchen(t *testing.T) {
	k := startKitchen(t, 1)
	ctx := context.Background()
	pos := kitchen.Pos{X: 10, Y: 64, Z: -2}
	if err := k.Place(ctx, pos, cooking.KindAIKitchen); err != nil {
		t.Fatalf("place: %v", err)
	}
	idx := &memIndex{}
	conn := dial(t, NewServer(fakeGen{}, k, nil, Options{Index: idx}))

	req := protocol.RecipeRequest{RequestID: "r-1", DishName: "Tamagoyaki", Category: "japanese", Pos: pos.ToArray()}
	frame, _ := req.Encode()
	resp := roundTrip(t, conn, frame)
	if !resp.Success || resp.RequestID != "r-1" || resp.Recipe == nil || resp.Recipe.DishName != "Tamagoyaki" {
		t.Fatalf("resp=%+v", resp)
	}
	st, err := k.Status(ctx, pos)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Food.FoodType != "Tamagoyaki" || st.Food.WeightGrams != 250 {
		t.Fatalf("food=%+v", st.Food)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(idx.dishes) != 1 || idx.dishes[0] != "Tamagoyaki" {
		t.Fatalf("indexed=%v", idx.dishes)
	}

	// The kitchen still holds the first dish. The second recipe is returned
	// anyway and the refused store is reported in the code.
	frame, _ = (&protocol.RecipeRequest{RequestID: "r-1b", DishName: "Oyakodon", Pos: pos.ToArray()}).Encode()
	resp = roundTrip(t, conn, frame)
	if !resp.Success || resp.Recipe == nil || resp.Recipe.DishName != "Oyakodon" || resp.Code != string(cooking.ReasonFoodReady) {
		t.Fatalf("resp=%+v", resp)
	}
	if st, _ := k.Status(ctx, pos); st.Food.FoodType != "Tamagoyaki" {
		t.Fatalf("resident food overwritten: %+v", st.Food)
	}
}

func TestServer_MissingStationAndBadRequests(t *testing.T) {
	k := startKitchen(t, 1)
	conn := dial(t, NewServer(fakeGen{}, k, nil, Options{}))

	// Nowhere to store it, but the recipe itself was synthesised.
	frame, _ := (&protocol.RecipeRequest{RequestID: "r-2", DishName: "Curry", Pos: [3]int{1, 2, 3}}).Encode()
	resp := roundTrip(t, conn, frame)
	if !resp.Success || resp.Recipe == nil || resp.Code != protocol.ErrStationNotFound {
		t.Fatalf("resp=%+v", resp)
	}

	resp = roundTrip(t, conn, []byte{0x7f, 0x01})
	if resp.Success || resp.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("resp=%+v", resp)
	}

	frame, _ = (&protocol.RecipeRequest{RequestID: "r-3", DishName: "  "}).Encode()
	resp = roundTrip(t, conn, frame)
	if resp.Success || resp.Code != protocol.ErrProtoBadRequest || resp.RequestID != "r-3" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestServer_GeneratorFailure(t *testing.T) {
	k := startKitchen(t, 1)
	conn := dial(t, NewServer(fakeGen{err: errors.New("boom")}, k, nil, Options{}))

	frame, _ := (&protocol.RecipeRequest{DishName: "Ramen"}).Encode()
	resp := roundTrip(t, conn, frame)
	if resp.Success || resp.Code != protocol.ErrRecipeUnavailable {
		t.Fatalf("resp=%+v", resp)
	}
	if _, err := uuid.Parse(resp.RequestID); err != nil {
		t.Fatalf("expected generated request id, got %q", resp.RequestID)
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{kitchen.ErrNoStation, protocol.ErrStationNotFound},
		{kitchen.ErrPosTaken, protocol.ErrPosTaken},
		{kitchen.ErrNotRunning, protocol.ErrKitchenBusy},
		{context.DeadlineExceeded, protocol.ErrKitchenBusy},
		{cooking.ReasonUnsupported, string(cooking.ReasonUnsupported)},
		{errors.New("x"), protocol.ErrInternal},
	}
	for _, c := range cases {
		if got := codeFor(c.err); got != c.want {
			t.Fatalf("codeFor(%v) got=%q want=%q", c.err, got, c.want)
		}
		if !protocol.IsKnownCode(c.want) {
			t.Fatalf("unknown code %q", c.want)
		}
	}
}
