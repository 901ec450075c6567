package ws

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"kitchencraft.ai/internal/cooking"
	"kitchencraft.ai/internal/protocol"
)

func command(t *testing.T, conn *websocket.Conn, cmd protocol.StationCommand) protocol.StationResult {
	t.Helper()
	frame, err := cmd.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	res, err := protocol.DecodeStationResult(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.RequestID != cmd.RequestID && cmd.RequestID != "" {
		t.Fatalf("request id got=%q want=%q", res.RequestID, cmd.RequestID)
	}
	return res
}

func TestStation_CookAndServeOverSocket(t *testing.T) {
	k := startKitchen(t, 1000)
	conn := dial(t, NewServer(fakeGen{}, k, nil, Options{}))
	pos := [3]int{3, 64, 3}

	res := command(t, conn, protocol.StationCommand{RequestID: "c-1", Op: protocol.OpPlace, Pos: pos, Arg: string(cooking.KindHotPlate)})
	if !res.Success || res.Status == nil || res.Status.Kind != string(cooking.KindHotPlate) {
		t.Fatalf("place=%+v", res)
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpPlace, Pos: pos, Arg: string(cooking.KindOven)}); res.Code != protocol.ErrPosTaken {
		t.Fatalf("second place code got=%q want=%q", res.Code, protocol.ErrPosTaken)
	}

	res = command(t, conn, protocol.StationCommand{RequestID: "c-2", Op: protocol.OpAddItem, Pos: pos, Arg: "minecraft:egg", Count: 2})
	if !res.Success || res.Status == nil || res.Status.Ingredients == 0 {
		t.Fatalf("add=%+v", res)
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpAddItem, Pos: pos, Arg: "othermod:dragonfruit"}); res.Code != protocol.ErrUnknownItem {
		t.Fatalf("unknown item code got=%q want=%q", res.Code, protocol.ErrUnknownItem)
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpAddItem, Pos: pos, Arg: "customcookingmod:spatula"}); res.Code != string(cooking.ReasonNotIngredient) {
		t.Fatalf("tool as ingredient code got=%q want=%q", res.Code, cooking.ReasonNotIngredient)
	}

	res = command(t, conn, protocol.StationCommand{RequestID: "c-3", Op: protocol.OpUse, Pos: pos, Arg: "customcookingmod:spatula"})
	if !res.Success || res.Detail != cooking.ActionStirFry.ID {
		t.Fatalf("use=%+v", res)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		res = command(t, conn, protocol.StationCommand{Op: protocol.OpStatus, Pos: pos})
		if !res.Success || res.Status == nil {
			t.Fatalf("status=%+v", res)
		}
		if res.Status.FoodType != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cook never finished: %+v", *res.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if res.Status.FoodType != "Stir-fried Egg" || res.Status.FoodGrams != 200 {
		t.Fatalf("food=%+v", *res.Status)
	}

	res = command(t, conn, protocol.StationCommand{RequestID: "c-4", Op: protocol.OpFill, Pos: pos, Arg: "customcookingmod:plate"})
	if !res.Success || res.Amount != 200 || res.Detail != "Stir-fried Egg" || res.Status.FoodGrams != 0 {
		t.Fatalf("fill=%+v", res)
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpFill, Pos: pos, Arg: "customcookingmod:plate"}); res.Code != string(cooking.ReasonNoFood) {
		t.Fatalf("empty fill code got=%q want=%q", res.Code, cooking.ReasonNoFood)
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpFill, Pos: pos, Arg: "minecraft:egg"}); res.Code != protocol.ErrUnknownItem {
		t.Fatalf("non-container fill code got=%q want=%q", res.Code, protocol.ErrUnknownItem)
	}

	res = command(t, conn, protocol.StationCommand{Op: protocol.OpBreak, Pos: pos})
	if !res.Success || res.Status != nil {
		t.Fatalf("break=%+v", res)
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpStatus, Pos: pos}); res.Code != protocol.ErrStationNotFound {
		t.Fatalf("status after break code got=%q want=%q", res.Code, protocol.ErrStationNotFound)
	}
}

func TestStation_HeaterAndPan(t *testing.T) {
	k := startKitchen(t, 1)
	conn := dial(t, NewServer(fakeGen{}, k, nil, Options{}))
	heater := [3]int{0, 64, 0}
	pan := [3]int{0, 65, 0}

	for _, c := range []protocol.StationCommand{
		{Op: protocol.OpPlace, Pos: heater, Arg: string(cooking.KindIHHeater)},
		{Op: protocol.OpPlace, Pos: pan, Arg: string(cooking.KindFryingPan)},
		{Op: protocol.OpAddItem, Pos: pan, Arg: "minecraft:egg"},
	} {
		if res := command(t, conn, c); !res.Success {
			t.Fatalf("%s: %+v", c.Op, res)
		}
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpUse, Pos: pan, Arg: "customcookingmod:spatula"}); res.Code != string(cooking.ReasonNoHeat) {
		t.Fatalf("use cold code got=%q want=%q", res.Code, cooking.ReasonNoHeat)
	}
	res := command(t, conn, protocol.StationCommand{Op: protocol.OpCycleHeat, Pos: heater})
	if !res.Success || res.Detail != cooking.HeatLow.String() || res.Status.Heat != cooking.HeatLow.String() {
		t.Fatalf("cycle=%+v", res)
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpUse, Pos: pan}); res.Code != string(cooking.ReasonBadTool) {
		t.Fatalf("bare hand code got=%q want=%q", res.Code, cooking.ReasonBadTool)
	}
	res = command(t, conn, protocol.StationCommand{Op: protocol.OpUse, Pos: pan, Arg: "customcookingmod:spatula"})
	if !res.Success || res.Detail != cooking.ActionFry.ID || res.Status.State != "COOKING" {
		t.Fatalf("use=%+v", res)
	}
	res = command(t, conn, protocol.StationCommand{Op: protocol.OpStop, Pos: pan})
	if !res.Success || res.Detail != "true" {
		t.Fatalf("stop=%+v", res)
	}
	res = command(t, conn, protocol.StationCommand{Op: protocol.OpBreak, Pos: pan})
	if !res.Success || res.Amount != 1 {
		t.Fatalf("break=%+v", res)
	}
}

func TestStation_CuttingBoard(t *testing.T) {
	k := startKitchen(t, 1)
	conn := dial(t, NewServer(fakeGen{}, k, nil, Options{}))
	board := [3]int{5, 64, 5}

	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpPlace, Pos: board, Arg: string(cooking.KindCuttingBoard)}); !res.Success {
		t.Fatalf("place=%+v", res)
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpAddItem, Pos: board, Arg: "minecraft:carrot"}); !res.Success {
		t.Fatalf("add=%+v", res)
	}
	res := command(t, conn, protocol.StationCommand{Op: protocol.OpUse, Pos: board, Arg: "customcookingmod:kitchen_knife"})
	if !res.Success || res.Detail != cooking.ActionChop.ID || !res.Status.Chopped {
		t.Fatalf("chop=%+v", res)
	}
	res = command(t, conn, protocol.StationCommand{Op: protocol.OpRemoveItem, Pos: board})
	if !res.Success || res.Detail != "minecraft:carrot" || res.Amount != 1 {
		t.Fatalf("remove=%+v", res)
	}
	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpRemoveItem, Pos: board}); res.Code != string(cooking.ReasonEmpty) {
		t.Fatalf("remove empty code got=%q want=%q", res.Code, cooking.ReasonEmpty)
	}
}

func TestStation_PlacedAIKitchenTakesRecipes(t *testing.T) {
	k := startKitchen(t, 1)
	conn := dial(t, NewServer(fakeGen{}, k, nil, Options{}))
	pos := [3]int{-4, 70, 12}

	if res := command(t, conn, protocol.StationCommand{Op: protocol.OpPlace, Pos: pos, Arg: string(cooking.KindAIKitchen)}); !res.Success {
		t.Fatalf("place=%+v", res)
	}
	frame, _ := (&protocol.RecipeRequest{RequestID: "r-ai", DishName: "Tamagoyaki", Pos: pos}).Encode()
	resp := roundTrip(t, conn, frame)
	if !resp.Success || resp.Code != "" || resp.Recipe == nil {
		t.Fatalf("resp=%+v", resp)
	}
	res := command(t, conn, protocol.StationCommand{Op: protocol.OpTakeFood, Pos: pos, Count: 100})
	if !res.Success || res.Amount != 100 || res.Status.FoodType != "Tamagoyaki" || res.Status.FoodGrams != 150 {
		t.Fatalf("take=%+v", res)
	}
}

func TestStation_BadCommands(t *testing.T) {
	k := startKitchen(t, 1)
	s := NewServer(fakeGen{}, k, nil, Options{})
	ctx := context.Background()

	cases := []protocol.StationCommand{
		{Op: "juggle"},
		{Op: protocol.OpPlace, Arg: "fridge"},
		{Op: protocol.OpAddItem, Arg: "minecraft:egg", Count: maxStack + 1},
		{Op: protocol.OpTakeFood, Count: 0},
	}
	for _, c := range cases {
		if res := s.HandleStation(ctx, c); res.Success || res.Code != protocol.ErrProtoBadRequest {
			t.Fatalf("%+v: res=%+v", c, res)
		}
	}
	if res := s.HandleStation(ctx, protocol.StationCommand{Op: protocol.OpUse, Arg: "minecraft:stick"}); res.Code != protocol.ErrUnknownItem {
		t.Fatalf("unknown tool code got=%q want=%q", res.Code, protocol.ErrUnknownItem)
	}
	if res := s.HandleStation(ctx, protocol.StationCommand{Op: protocol.OpCycleHeat}); res.Code != protocol.ErrStationNotFound {
		t.Fatalf("missing station code got=%q want=%q", res.Code, protocol.ErrStationNotFound)
	}
}
