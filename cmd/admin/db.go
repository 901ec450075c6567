package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"kitchencraft.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kitchenID := fs.String("kitchen", "kitchen_1", "kitchen id (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	dish := fs.String("dish", "", "dish filter (recipes)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(kitchenDir(*dataDir, *kitchenID), "index", "kitchen.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, *limit, *dish); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, q string, limit int, dish string) error {
	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,kitchen_id,stations,cooking FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick      int64  `json:"tick"`
				Path      string `json:"path"`
				KitchenID string `json:"kitchen_id"`
				Stations  int    `json:"stations"`
				Cooking   int    `json:"cooking"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.KitchenID, &r.Stations, &r.Cooking); err != nil {
				return err
			}
			printJSON(r)
		}
		return rows.Err()

	case "cooks":
		rows, err := db.Query(`SELECT tick,type,x,y,z,kind,action,food_type,weight_grams FROM cooks ORDER BY id DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r indexdb.CookRow
			var tick int64
			if err := rows.Scan(&tick, &r.Type, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.Kind, &r.Action, &r.FoodType, &r.WeightGrams); err != nil {
				return err
			}
			r.Tick = uint64(tick)
			printJSON(r)
		}
		return rows.Err()

	case "recipes":
		query := `SELECT dish_name,category,total_weight_grams,nutrition_per_100g,expiration_hours,recorded_at FROM recipes`
		var qargs []any
		if strings.TrimSpace(dish) != "" {
			query += ` WHERE dish_key=?`
			qargs = append(qargs, indexdb.DishKey(dish))
		}
		query += ` ORDER BY id DESC LIMIT ?`
		qargs = append(qargs, limit)
		rows, err := db.Query(query, qargs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				DishName         string  `json:"dish_name"`
				Category         string  `json:"category"`
				TotalWeightGrams int     `json:"total_weight_grams"`
				NutritionPer100g float64 `json:"nutrition_per_100g"`
				ExpirationHours  int     `json:"expiration_hours"`
				RecordedAt       string  `json:"recorded_at"`
			}
			if err := rows.Scan(&r.DishName, &r.Category, &r.TotalWeightGrams, &r.NutritionPer100g, &r.ExpirationHours, &r.RecordedAt); err != nil {
				return err
			}
			printJSON(r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return err
			}
			printJSON(r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query %q (snapshots|cooks|recipes|catalogs)", q)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
