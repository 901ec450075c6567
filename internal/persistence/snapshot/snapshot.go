package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	KitchenID string `json:"kitchen_id"`
	Tick      uint64 `json:"tick"`
}

// SnapshotV1 holds everything needed to resume cooking after a restart.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate      int    `json:"tick_rate_hz"`
	CatalogDigest string `json:"catalog_digest"`

	Stations []StationV1 `json:"stations"`
}

type StationV1 struct {
	Pos      [3]int `json:"pos"`
	Kind     string `json:"kind"`
	Capacity int    `json:"capacity"`

	Ingredients   []IngredientV1 `json:"ingredients,omitempty"`
	ActionID      string         `json:"action_id,omitempty"`
	ProgressTicks int            `json:"progress_ticks"`
	RequiredTicks int            `json:"required_ticks"`
	Cooking       bool           `json:"cooking"`

	Food FoodV1 `json:"food"`
	Heat int    `json:"heat,omitempty"`

	BoardItem    *ItemV1 `json:"board_item,omitempty"`
	BoardChopped bool    `json:"board_chopped,omitempty"`
}

type IngredientV1 struct {
	ItemID            string  `json:"item_id"`
	Name              string  `json:"name"`
	Quantity          int     `json:"quantity"`
	NutritionPerUnit  float64 `json:"nutrition_per_unit"`
	SaturationPerUnit float64 `json:"saturation_per_unit"`
	Edible            bool    `json:"edible"`
}

type FoodV1 struct {
	FoodType          string  `json:"food_type,omitempty"`
	WeightGrams       int     `json:"weight_grams"`
	NutritionPer100g  float64 `json:"nutrition_per_100g"`
	SaturationPer100g float64 `json:"saturation_per_100g"`
}

type ItemV1 struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Edible     bool    `json:"edible"`
	Nutrition  float64 `json:"nutrition"`
	Saturation float64 `json:"saturation"`
	Chopped    bool    `json:"chopped"`
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded
// snapshot, all zstd-compressed.
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The header line is for tooling; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// FileName is the on-disk name for a snapshot taken at tick.
func FileName(tick uint64) string {
	return fmt.Sprintf("%d.snap.zst", tick)
}

// Latest returns the highest-tick snapshot in dir, or "" when there is none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
