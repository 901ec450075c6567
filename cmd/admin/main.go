package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"kitchencraft.ai/internal/kitchen"
	"kitchencraft.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "events":
			eventsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "kitchens"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

func kitchenDir(dataDir, kitchenID string) string {
	return filepath.Join(dataDir, "kitchens", kitchenID)
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kitchenID := fs.String("kitchen", "kitchen_1", "kitchen id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = snapshot.Latest(filepath.Join(kitchenDir(*dataDir, *kitchenID), "snapshots"))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d kitchen=%s tick=%d tick_rate=%d catalog=%s stations=%d\n",
		snap.Header.Version, snap.Header.KitchenID, snap.Header.Tick, snap.TickRate, snap.CatalogDigest, len(snap.Stations))
	for _, st := range snap.Stations {
		fmt.Println(describeStation(st))
	}
}

func describeStation(st snapshot.StationV1) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s %s ingredients=%d/%d", kitchen.PosFromArray(st.Pos), st.Kind, len(st.Ingredients), st.Capacity)
	if st.Cooking {
		fmt.Fprintf(&b, " cooking=%s %d/%d", st.ActionID, st.ProgressTicks, st.RequiredTicks)
	}
	if st.Food.FoodType != "" {
		fmt.Fprintf(&b, " food=%q %dg", st.Food.FoodType, st.Food.WeightGrams)
	}
	if st.Heat != 0 {
		fmt.Fprintf(&b, " heat=%d", st.Heat)
	}
	if st.BoardItem != nil {
		fmt.Fprintf(&b, " board=%s chopped=%v", st.BoardItem.ID, st.BoardChopped)
	}
	return b.String()
}

func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kitchenID := fs.String("kitchen", "kitchen_1", "kitchen id")
	typ := fs.String("type", "", "event type filter (COOK_DONE, COOK_ABORTED, RECIPE_STORED)")
	posFlag := fs.String("pos", "", "station position filter x,y,z (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	_ = fs.Parse(args)

	f := cookFilter{Type: strings.ToUpper(strings.TrimSpace(*typ)), SinceTick: *sinceTick}
	if strings.TrimSpace(*posFlag) != "" {
		v, err := parseVec3(*posFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -pos:", err)
			os.Exit(2)
		}
		p := kitchen.PosFromArray(v)
		f.Pos = &p
	}

	evs, err := readCooks(filepath.Join(kitchenDir(*dataDir, *kitchenID), "events"), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, ev := range evs {
		_ = enc.Encode(ev)
	}
}

type cookFilter struct {
	Type      string
	Pos       *kitchen.Pos
	SinceTick uint64
}

func (f cookFilter) match(ev kitchen.CookEvent) bool {
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if f.Pos != nil && ev.Pos != *f.Pos {
		return false
	}
	return ev.Tick >= f.SinceTick
}

// readCooks scans cooks-*.jsonl.zst files in name order.
func readCooks(dir string, f cookFilter) ([]kitchen.CookEvent, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "cooks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []kitchen.CookEvent
	for _, name := range names {
		evs, err := readCookFile(filepath.Join(dir, name), f)
		if err != nil {
			return nil, err
		}
		out = append(out, evs...)
	}
	return out, nil
}

func readCookFile(path string, f cookFilter) ([]kitchen.CookEvent, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	dec, err := zstd.NewReader(fh)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []kitchen.CookEvent
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var ev kitchen.CookEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if f.match(ev) {
			out = append(out, ev)
		}
	}
	return out, sc.Err()
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}
