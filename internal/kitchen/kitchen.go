// Package kitchen runs every cooking station on a single goroutine. Callers
// talk to it through request methods that hop onto the loop and wait for a
// reply; a ticker advances cooking.
package kitchen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"kitchencraft.ai/internal/cooking"
	"kitchencraft.ai/internal/persistence/snapshot"
)

var (
	ErrNoStation  = errors.New("station not found")
	ErrPosTaken   = errors.New("position already has a station")
	ErrNotRunning = errors.New("kitchen not running")
)

type Config struct {
	ID         string
	TickRateHz int
	// SnapshotEveryTicks emits a snapshot to the sink; 0 disables periodic snapshots.
	SnapshotEveryTicks int
	// Capacities overrides ledger capacity per station kind.
	Capacities map[cooking.Kind]int
}

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func PosFromArray(a [3]int) Pos { return Pos{X: a[0], Y: a[1], Z: a[2]} }

func (p Pos) ToArray() [3]int { return [3]int{p.X, p.Y, p.Z} }

// Below is the block a heat-dependent station draws heat from.
func (p Pos) Below() Pos { return Pos{X: p.X, Y: p.Y - 1, Z: p.Z} }

func (p Pos) String() string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }

func posLess(a, b Pos) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// Event types.
const (
	EventCookDone     = "COOK_DONE"
	EventCookAborted  = "COOK_ABORTED"
	EventRecipeStored = "RECIPE_STORED"
)

type CookEvent struct {
	Tick        uint64                    `json:"tick"`
	KitchenID   string                    `json:"kitchen_id"`
	Type        string                    `json:"type"`
	Pos         Pos                       `json:"pos"`
	Kind        cooking.Kind              `json:"kind"`
	Action      string                    `json:"action,omitempty"`
	Ingredients []cooking.IngredientEntry `json:"ingredients,omitempty"`
	Food        cooking.FoodResult        `json:"food"`
}

type EventLogger interface {
	WriteCook(ev CookEvent) error
}

// Index receives completed cooks. Implementations must not block.
type Index interface {
	RecordCook(ev CookEvent)
}

type Stats struct {
	Tick      uint64
	Stations  int
	Cooking   int
	Completed uint64
	Aborted   uint64
	Stored    uint64
}

type opReq struct {
	run func(k *Kitchen)
}

type Kitchen struct {
	cfg    Config
	logger *log.Logger

	stations map[Pos]*cooking.Station

	tick      atomic.Uint64
	completed atomic.Uint64
	aborted   atomic.Uint64
	stored    atomic.Uint64
	nStations atomic.Int64
	nCooking  atomic.Int64

	ops      chan opReq
	stop     chan struct{}
	stopOnce sync.Once

	events       EventLogger
	index        Index
	snapshotSink chan<- snapshot.SnapshotV1
	catalogDig   string
}

func New(cfg Config, logger *log.Logger) (*Kitchen, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be > 0")
	}
	if cfg.SnapshotEveryTicks < 0 {
		return nil, fmt.Errorf("snapshot interval must be >= 0")
	}
	if cfg.ID == "" {
		cfg.ID = "kitchen_1"
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Kitchen{
		cfg:      cfg,
		logger:   logger,
		stations: map[Pos]*cooking.Station{},
		ops:      make(chan opReq, 64),
		stop:     make(chan struct{}),
	}, nil
}

func (k *Kitchen) SetEventLogger(l EventLogger)                  { k.events = l }
func (k *Kitchen) SetIndex(ix Index)                             { k.index = ix }
func (k *Kitchen) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { k.snapshotSink = ch }

// SetCatalogDigest stamps snapshots with the catalog they were taken under.
func (k *Kitchen) SetCatalogDigest(d string) { k.catalogDig = d }

func (k *Kitchen) ID() string { return k.cfg.ID }

func (k *Kitchen) TickRateHz() int { return k.cfg.TickRateHz }

func (k *Kitchen) CurrentTick() uint64 { return k.tick.Load() }

// Stats is safe to call from any goroutine.
func (k *Kitchen) Stats() Stats {
	return Stats{
		Tick:      k.tick.Load(),
		Stations:  int(k.nStations.Load()),
		Cooking:   int(k.nCooking.Load()),
		Completed: k.completed.Load(),
		Aborted:   k.aborted.Load(),
		Stored:    k.stored.Load(),
	}
}

func (k *Kitchen) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(k.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-k.stop:
			return nil
		case req := <-k.ops:
			req.run(k)
		case <-ticker.C:
			k.step()
		}
	}
}

// Stop ends Run. Later calls are no-ops.
func (k *Kitchen) Stop() { k.stopOnce.Do(func() { close(k.stop) }) }

// step advances every station by one tick in position order.
func (k *Kitchen) step() {
	tick := k.tick.Add(1)

	positions := k.sortedPositions()
	active := 0
	for _, pos := range positions {
		st := k.stations[pos]
		if !st.Cooking() {
			continue
		}
		action := st.CurrentAction()
		ingredients := st.Ingredients()
		switch st.Tick() {
		case cooking.TickCompleted:
			k.completed.Add(1)
			k.emit(CookEvent{
				Tick:        tick,
				Type:        EventCookDone,
				Pos:         pos,
				Kind:        st.Kind(),
				Action:      action.ID,
				Ingredients: ingredients,
				Food:        st.Food(),
			})
		case cooking.TickAborted:
			k.aborted.Add(1)
			k.emit(CookEvent{
				Tick:        tick,
				Type:        EventCookAborted,
				Pos:         pos,
				Kind:        st.Kind(),
				Action:      action.ID,
				Ingredients: ingredients,
			})
		default:
			active++
		}
	}
	k.nCooking.Store(int64(active))

	every := uint64(k.cfg.SnapshotEveryTicks)
	if every > 0 && k.snapshotSink != nil && tick%every == 0 {
		snap := k.exportSnapshot(tick)
		select {
		case k.snapshotSink <- snap:
		default:
			k.logger.Printf("snapshot sink full; dropping tick=%d", tick)
		}
	}
}

func (k *Kitchen) emit(ev CookEvent) {
	ev.KitchenID = k.cfg.ID
	if k.events != nil {
		if err := k.events.WriteCook(ev); err != nil {
			k.logger.Printf("cook log: %v", err)
		}
	}
	if k.index != nil {
		k.index.RecordCook(ev)
	}
}

func (k *Kitchen) sortedPositions() []Pos {
	out := make([]Pos, 0, len(k.stations))
	for p := range k.stations {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return posLess(out[i], out[j]) })
	return out
}

// heatAt resolves the heater feeding a station at pos. The interface stays
// nil when there is no heater so Dependent reads it as no heat.
func (k *Kitchen) heatAt(pos Pos) func() cooking.HeatProvider {
	return func() cooking.HeatProvider {
		st := k.stations[pos.Below()]
		if st == nil || !st.Profile().ProvidesHeat {
			return nil
		}
		return st
	}
}

func (k *Kitchen) newStation(pos Pos, kind cooking.Kind) (*cooking.Station, error) {
	return cooking.NewStation(kind, cooking.StationOptions{
		Capacity: k.cfg.Capacities[kind],
		Heat:     k.heatAt(pos),
	})
}
