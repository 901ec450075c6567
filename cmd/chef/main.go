package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"kitchencraft.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		dish     = flag.String("dish", "", "dish name to request")
		category = flag.String("category", "", "dish category (optional)")
		posFlag  = flag.String("pos", "0,64,0", "station position as x,y,z")
		op       = flag.String("op", "", "station command instead of a recipe request: place, break, add_item, use, cycle_heat, stop, take_food, fill, remove_item, status")
		arg      = flag.String("arg", "", "station command argument (kind, item id, tool id or container id)")
		count    = flag.Int("count", 0, "station command count (stack size or grams)")
		timeout  = flag.Duration("timeout", 120*time.Second, "how long to wait for the reply")
		asJSON   = flag.Bool("json", false, "print the reply as JSON")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[chef] ", log.LstdFlags|log.Lmicroseconds)
	if strings.TrimSpace(*dish) == "" && strings.TrimSpace(*op) == "" {
		logger.Fatalf("-dish or -op is required")
	}
	pos, err := parsePos(*posFlag)
	if err != nil {
		logger.Fatalf("-pos: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(*timeout))

	var code int
	if *op != "" {
		code = runStation(logger, conn, protocol.StationCommand{
			RequestID: uuid.NewString(),
			Op:        strings.TrimSpace(*op),
			Pos:       pos,
			Arg:       strings.TrimSpace(*arg),
			Count:     *count,
		}, *asJSON)
	} else {
		code = runRecipe(logger, conn, protocol.RecipeRequest{
			RequestID: uuid.NewString(),
			DishName:  *dish,
			Category:  *category,
			Pos:       pos,
		}, *asJSON)
	}
	_ = conn.Close()
	os.Exit(code)
}

type encoder interface {
	Encode() ([]byte, error)
}

func send(conn *websocket.Conn, p encoder) error {
	frame, err := p.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// await reads frames until match accepts one.
func await(logger *log.Logger, conn *websocket.Conn, match func([]byte) bool) {
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		if mt == websocket.BinaryMessage && match(msg) {
			return
		}
	}
}

func runStation(logger *log.Logger, conn *websocket.Conn, cmd protocol.StationCommand, asJSON bool) int {
	if err := send(conn, &cmd); err != nil {
		logger.Fatalf("send: %v", err)
	}
	var res protocol.StationResult
	await(logger, conn, func(msg []byte) bool {
		r, err := protocol.DecodeStationResult(msg)
		if err != nil || (r.RequestID != "" && r.RequestID != cmd.RequestID) {
			return false
		}
		res = r
		return true
	})
	if asJSON {
		b, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(b))
	} else {
		fmt.Println(formatResult(cmd, res))
	}
	if !res.Success {
		return 1
	}
	return 0
}

func formatResult(cmd protocol.StationCommand, res protocol.StationResult) string {
	if !res.Success {
		return fmt.Sprintf("%s %v: failed code=%s", cmd.Op, cmd.Pos, res.Code)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %v: ok", cmd.Op, cmd.Pos)
	if res.Detail != "" {
		fmt.Fprintf(&b, " detail=%s", res.Detail)
	}
	if res.Amount != 0 {
		fmt.Fprintf(&b, " amount=%d", res.Amount)
	}
	if st := res.Status; st != nil {
		fmt.Fprintf(&b, "\n  %s state=%s action=%s progress=%.0f%% ingredients=%d/%d", st.Kind, st.State, st.Action, st.Progress*100, st.Ingredients, st.Capacity)
		if st.Heat != "" {
			fmt.Fprintf(&b, " heat=%s", st.Heat)
		}
		if st.FoodType != "" {
			fmt.Fprintf(&b, " food=%q %dg", st.FoodType, st.FoodGrams)
		}
		if st.BoardItem != "" {
			fmt.Fprintf(&b, " board=%s chopped=%v", st.BoardItem, st.Chopped)
		}
	}
	return b.String()
}

func runRecipe(logger *log.Logger, conn *websocket.Conn, req protocol.RecipeRequest, asJSON bool) int {
	if err := send(conn, &req); err != nil {
		logger.Fatalf("send: %v", err)
	}
	logger.Printf("requested dish=%q category=%q pos=%v request=%s", req.DishName, req.Category, req.Pos, req.RequestID)

	var resp protocol.RecipeResponse
	await(logger, conn, func(msg []byte) bool {
		r, err := protocol.DecodeRecipeResponse(msg)
		if err != nil || (r.RequestID != "" && r.RequestID != req.RequestID) {
			return false
		}
		resp = r
		return true
	})
	if !resp.Success {
		logger.Printf("request failed: code=%s", resp.Code)
		return 1
	}
	if asJSON {
		b, _ := json.MarshalIndent(resp.Recipe, "", "  ")
		fmt.Println(string(b))
		return 0
	}
	rd := resp.Recipe
	if resp.Code != "" {
		logger.Printf("generated %q but it was not stored: code=%s", rd.DishName, resp.Code)
	} else {
		logger.Printf("stored %q (%dg, nutrition %.1f/100g, expires in %dh)", rd.DishName, rd.TotalWeightGrams, rd.NutritionPer100g, rd.ExpirationHours)
	}
	for i, ing := range rd.Ingredients {
		fmt.Printf("  ingredient %d: %s %g %s\n", i+1, ing.ItemID, ing.Amount, ing.AmountType)
	}
	for i, st := range rd.Steps {
		fmt.Printf("  step %d: [%s] %s\n", i+1, st.Action, st.Description)
	}
	return 0
}

func parsePos(s string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, fmt.Errorf("coordinate %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}
