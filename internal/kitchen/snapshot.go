package kitchen

import (
	"context"
	"fmt"

	"kitchencraft.ai/internal/cooking"
	"kitchencraft.ai/internal/persistence/snapshot"
)

// Snapshot captures the kitchen on its own goroutine.
func (k *Kitchen) Snapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	return do(ctx, k, func(k *Kitchen) (snapshot.SnapshotV1, error) {
		return k.exportSnapshot(k.tick.Load()), nil
	})
}

// FinalSnapshot exports state after Run has returned.
func (k *Kitchen) FinalSnapshot() snapshot.SnapshotV1 {
	return k.exportSnapshot(k.tick.Load())
}

func (k *Kitchen) exportSnapshot(tick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			KitchenID: k.cfg.ID,
			Tick:      tick,
		},
		TickRate:      k.cfg.TickRateHz,
		CatalogDigest: k.catalogDig,
	}
	for _, pos := range k.sortedPositions() {
		snap.Stations = append(snap.Stations, stationToV1(pos, k.stations[pos].State()))
	}
	return snap
}

// ImportSnapshot replaces all stations. It must be called before Run.
func (k *Kitchen) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if k.catalogDig != "" && snap.CatalogDigest != "" && snap.CatalogDigest != k.catalogDig {
		k.logger.Printf("snapshot catalog digest %s differs from loaded %s", snap.CatalogDigest, k.catalogDig)
	}
	stations := make(map[Pos]*cooking.Station, len(snap.Stations))
	for i, sv := range snap.Stations {
		pos := PosFromArray(sv.Pos)
		if stations[pos] != nil {
			return fmt.Errorf("station %d: duplicate position %s", i, pos)
		}
		st, err := cooking.RestoreStation(stationFromV1(sv), k.heatAt(pos))
		if err != nil {
			return fmt.Errorf("station %d: %w", i, err)
		}
		stations[pos] = st
	}
	k.stations = stations
	k.tick.Store(snap.Header.Tick)
	k.nStations.Store(int64(len(stations)))
	return nil
}

func stationToV1(pos Pos, st cooking.StationState) snapshot.StationV1 {
	out := snapshot.StationV1{
		Pos:           pos.ToArray(),
		Kind:          string(st.Kind),
		Capacity:      st.Capacity,
		ActionID:      st.ActionID,
		ProgressTicks: st.ProgressTicks,
		RequiredTicks: st.RequiredTicks,
		Cooking:       st.Cooking,
		Heat:          int(st.Heat),
		Food: snapshot.FoodV1{
			FoodType:          st.Food.FoodType,
			WeightGrams:       st.Food.WeightGrams,
			NutritionPer100g:  st.Food.NutritionPer100g,
			SaturationPer100g: st.Food.SaturationPer100g,
		},
		BoardChopped: st.BoardChopped,
	}
	for _, e := range st.Ingredients {
		out.Ingredients = append(out.Ingredients, snapshot.IngredientV1{
			ItemID:            e.ItemID,
			Name:              e.Name,
			Quantity:          e.Quantity,
			NutritionPerUnit:  e.NutritionPerUnit,
			SaturationPerUnit: e.SaturationPerUnit,
			Edible:            e.Edible,
		})
	}
	if !st.BoardItem.IsEmpty() {
		it := st.BoardItem
		out.BoardItem = &snapshot.ItemV1{
			ID:         it.ID,
			Name:       it.Name,
			Count:      it.Count,
			Edible:     it.Edible,
			Nutrition:  it.Nutrition,
			Saturation: it.Saturation,
			Chopped:    it.Chopped,
		}
	}
	return out
}

func stationFromV1(sv snapshot.StationV1) cooking.StationState {
	st := cooking.StationState{
		Kind:          cooking.Kind(sv.Kind),
		Capacity:      sv.Capacity,
		ActionID:      sv.ActionID,
		ProgressTicks: sv.ProgressTicks,
		RequiredTicks: sv.RequiredTicks,
		Cooking:       sv.Cooking,
		Heat:          cooking.HeatLevel(sv.Heat),
		Food: cooking.FoodResult{
			FoodType:          sv.Food.FoodType,
			WeightGrams:       sv.Food.WeightGrams,
			NutritionPer100g:  sv.Food.NutritionPer100g,
			SaturationPer100g: sv.Food.SaturationPer100g,
		},
		BoardChopped: sv.BoardChopped,
	}
	for _, e := range sv.Ingredients {
		st.Ingredients = append(st.Ingredients, cooking.IngredientEntry{
			ItemID:            e.ItemID,
			Name:              e.Name,
			Quantity:          e.Quantity,
			NutritionPerUnit:  e.NutritionPerUnit,
			SaturationPerUnit: e.SaturationPerUnit,
			Edible:            e.Edible,
		})
	}
	if b := sv.BoardItem; b != nil {
		st.BoardItem = cooking.Item{
			ID:         b.ID,
			Name:       b.Name,
			Count:      b.Count,
			Edible:     b.Edible,
			Nutrition:  b.Nutrition,
			Saturation: b.Saturation,
			Chopped:    b.Chopped,
		}
	}
	return st
}
