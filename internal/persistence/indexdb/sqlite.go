package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"kitchencraft.ai/internal/catalogs"
	"kitchencraft.ai/internal/kitchen"
	"kitchencraft.ai/internal/persistence/snapshot"
	"kitchencraft.ai/internal/recipe"
)

// SQLiteIndex is a secondary, queryable index of cook events, generated
// recipes and snapshots. Writes are queued and applied by one goroutine;
// the JSONL logs and snapshots stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropCook     atomic.Uint64
	dropRecipe   atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqCook reqKind = iota + 1
	reqRecipe
	reqSnapshot
)

type req struct {
	kind reqKind

	cook     kitchen.CookEvent
	recipe   recipeRow
	snapshot snapshotRow
}

type recipeRow struct {
	DishKey    string
	Category   string
	Recipe     recipe.RecipeData
	RecordedAt string
}

type snapshotRow struct {
	Tick      uint64
	Path      string
	KitchenID string
	Stations  int
	Cooking   int
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropCookTotal     uint64
	DropRecipeTotal   uint64
	DropSnapshotTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cooks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			kitchen_id TEXT NOT NULL,
			type TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			kind TEXT NOT NULL,
			action TEXT NOT NULL,
			food_type TEXT NOT NULL,
			weight_grams INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cooks_tick ON cooks(tick);`,
		`CREATE INDEX IF NOT EXISTS idx_cooks_pos_tick ON cooks(x, z, y, tick);`,
		`CREATE TABLE IF NOT EXISTS recipes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dish_key TEXT NOT NULL,
			category TEXT NOT NULL,
			dish_name TEXT NOT NULL,
			total_weight_grams INTEGER NOT NULL,
			nutrition_per_100g REAL NOT NULL,
			saturation_per_100g REAL NOT NULL,
			expiration_hours INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recipes_dish ON recipes(dish_key, category);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			kitchen_id TEXT NOT NULL,
			stations INTEGER NOT NULL,
			cooking INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropCookTotal:     s.dropCook.Load(),
		DropRecipeTotal:   s.dropRecipe.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// RecordCook queues a cook event. It never blocks the kitchen loop.
func (s *SQLiteIndex) RecordCook(ev kitchen.CookEvent) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqCook, cook: ev}:
	default:
		s.dropCook.Add(1)
	}
}

func (s *SQLiteIndex) RecordRecipe(dish, category string, rd *recipe.RecipeData) {
	if s == nil || s.closed.Load() || rd == nil {
		return
	}
	r := recipeRow{
		DishKey:    DishKey(dish),
		Category:   strings.TrimSpace(category),
		Recipe:     *rd.Clone(),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqRecipe, recipe: r}:
	default:
		s.dropRecipe.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:      snap.Header.Tick,
		Path:      path,
		KitchenID: snap.Header.KitchenID,
		Stations:  len(snap.Stations),
	}
	for _, st := range snap.Stations {
		if st.Cooking {
			r.Cooking++
		}
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// DishKey normalises a dish name for lookups.
func DishKey(dish string) string {
	return strings.ToLower(strings.TrimSpace(dish))
}

// UpsertCatalogs stores the loaded catalogs as canonical JSON.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	items := make([]catalogs.ItemDef, 0, len(cats.Items.Defs))
	for _, d := range cats.Items.Defs {
		items = append(items, d)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return err
	}
	methodsJSON, err := json.Marshal(cats.Methods.Defs)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('catalog_digest',?)`, cats.Digest()); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	if _, err := stmt.Exec("items", cats.Items.Digest, string(itemsJSON), now); err != nil {
		return err
	}
	if _, err := stmt.Exec("methods", cats.Methods.Digest, string(methodsJSON), now); err != nil {
		return err
	}
	return tx.Commit()
}

// LatestRecipe returns the most recently recorded recipe for a dish and
// category, if any.
func (s *SQLiteIndex) LatestRecipe(ctx context.Context, dish, category string) (*recipe.RecipeData, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT raw_json FROM recipes WHERE dish_key=? AND category=? ORDER BY id DESC LIMIT 1`,
		DishKey(dish), strings.TrimSpace(category),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rd recipe.RecipeData
	if err := json.Unmarshal([]byte(raw), &rd); err != nil {
		return nil, false, err
	}
	return &rd, true, nil
}

type CookRow struct {
	Tick        uint64 `json:"tick"`
	Type        string `json:"type"`
	Pos         [3]int `json:"pos"`
	Kind        string `json:"kind"`
	Action      string `json:"action"`
	FoodType    string `json:"food_type"`
	WeightGrams int    `json:"weight_grams"`
}

// RecentCooks lists the newest cook events first.
func (s *SQLiteIndex) RecentCooks(ctx context.Context, limit int) ([]CookRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick,type,x,y,z,kind,action,food_type,weight_grams FROM cooks ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CookRow
	for rows.Next() {
		var r CookRow
		var tick int64
		if err := rows.Scan(&tick, &r.Type, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.Kind, &r.Action, &r.FoodType, &r.WeightGrams); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertCook, _ := s.db.Prepare(`INSERT INTO cooks(tick,kitchen_id,type,x,y,z,kind,action,food_type,weight_grams,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertRecipe, _ := s.db.Prepare(`INSERT INTO recipes(dish_key,category,dish_name,total_weight_grams,nutrition_per_100g,saturation_per_100g,expiration_hours,raw_json,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,kitchen_id,stations,cooking) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertCook, insertRecipe, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(stmt *sql.Stmt, args ...any) {
		if stmt == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(stmt).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqCook:
			ev := r.cook
			raw, _ := json.Marshal(ev)
			exec(insertCook,
				int64(ev.Tick),
				ev.KitchenID,
				ev.Type,
				ev.Pos.X, ev.Pos.Y, ev.Pos.Z,
				string(ev.Kind),
				ev.Action,
				ev.Food.FoodType,
				ev.Food.WeightGrams,
				string(raw),
			)

		case reqRecipe:
			rr := r.recipe
			raw, _ := json.Marshal(rr.Recipe)
			exec(insertRecipe,
				rr.DishKey,
				rr.Category,
				rr.Recipe.DishName,
				rr.Recipe.TotalWeightGrams,
				rr.Recipe.NutritionPer100g,
				rr.Recipe.SaturationPer100g,
				rr.Recipe.ExpirationHours,
				string(raw),
				rr.RecordedAt,
			)

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.KitchenID, sn.Stations, sn.Cooking)
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
