package kitchen

import (
	"context"

	"kitchencraft.ai/internal/cooking"
	"kitchencraft.ai/internal/recipe"
)

type opResp[T any] struct {
	val T
	err error
}

// do runs fn on the kitchen goroutine and waits for its result.
func do[T any](ctx context.Context, k *Kitchen, fn func(k *Kitchen) (T, error)) (T, error) {
	var zero T
	if k == nil || k.ops == nil {
		return zero, ErrNotRunning
	}
	resp := make(chan opResp[T], 1)
	req := opReq{run: func(k *Kitchen) {
		// The caller has already given up; leave the kitchen untouched.
		if err := ctx.Err(); err != nil {
			resp <- opResp[T]{err: err}
			return
		}
		v, err := fn(k)
		select {
		case resp <- opResp[T]{val: v, err: err}:
		default:
		}
	}}
	select {
	case k.ops <- req:
	case <-k.stop:
		return zero, ErrNotRunning
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.val, r.err
	case <-k.stop:
		return zero, ErrNotRunning
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (k *Kitchen) station(pos Pos) (*cooking.Station, error) {
	st := k.stations[pos]
	if st == nil {
		return nil, ErrNoStation
	}
	return st, nil
}

func reasonErr(r cooking.Reason) error {
	if r.OK() {
		return nil
	}
	return r
}

// Place puts a new station block at pos.
func (k *Kitchen) Place(ctx context.Context, pos Pos, kind cooking.Kind) error {
	_, err := do(ctx, k, func(k *Kitchen) (struct{}, error) {
		return struct{}{}, k.place(pos, kind)
	})
	return err
}

func (k *Kitchen) place(pos Pos, kind cooking.Kind) error {
	if k.stations[pos] != nil {
		return ErrPosTaken
	}
	st, err := k.newStation(pos, kind)
	if err != nil {
		return err
	}
	k.stations[pos] = st
	k.nStations.Store(int64(len(k.stations)))
	return nil
}

// Break removes the station at pos and returns its ingredients.
func (k *Kitchen) Break(ctx context.Context, pos Pos) ([]cooking.IngredientEntry, error) {
	return do(ctx, k, func(k *Kitchen) ([]cooking.IngredientEntry, error) {
		st, err := k.station(pos)
		if err != nil {
			return nil, err
		}
		out := st.Break()
		delete(k.stations, pos)
		k.nStations.Store(int64(len(k.stations)))
		return out, nil
	})
}

func (k *Kitchen) AddItem(ctx context.Context, pos Pos, it cooking.Item) error {
	_, err := do(ctx, k, func(k *Kitchen) (struct{}, error) {
		st, err := k.station(pos)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, reasonErr(st.AddItem(it))
	})
	return err
}

// Use applies a tool to the station at pos and reports the action started.
func (k *Kitchen) Use(ctx context.Context, pos Pos, tool cooking.ToolRole) (cooking.Action, error) {
	return do(ctx, k, func(k *Kitchen) (cooking.Action, error) {
		st, err := k.station(pos)
		if err != nil {
			return cooking.ActionNone, err
		}
		a, r := st.Use(tool)
		return a, reasonErr(r)
	})
}

// StopCooking aborts a running cook. It reports whether anything was cooking.
func (k *Kitchen) StopCooking(ctx context.Context, pos Pos) (bool, error) {
	return do(ctx, k, func(k *Kitchen) (bool, error) {
		st, err := k.station(pos)
		if err != nil {
			return false, err
		}
		return st.Stop(), nil
	})
}

func (k *Kitchen) CycleHeat(ctx context.Context, pos Pos) (cooking.HeatLevel, error) {
	return do(ctx, k, func(k *Kitchen) (cooking.HeatLevel, error) {
		st, err := k.station(pos)
		if err != nil {
			return cooking.HeatOff, err
		}
		h, r := st.CycleHeat()
		return h, reasonErr(r)
	})
}

func (k *Kitchen) RemoveItem(ctx context.Context, pos Pos) (cooking.Item, error) {
	return do(ctx, k, func(k *Kitchen) (cooking.Item, error) {
		st, err := k.station(pos)
		if err != nil {
			return cooking.Item{}, err
		}
		it, ok := st.RemoveItem()
		if !ok {
			return cooking.Item{}, cooking.ReasonEmpty
		}
		return it, nil
	})
}

// TakeFood removes up to grams of the resident dish and returns what was taken.
func (k *Kitchen) TakeFood(ctx context.Context, pos Pos, grams int) (int, error) {
	return do(ctx, k, func(k *Kitchen) (int, error) {
		st, err := k.station(pos)
		if err != nil {
			return 0, err
		}
		if !st.HasFood() {
			return 0, cooking.ReasonNoFood
		}
		return st.TakeFood(grams), nil
	})
}

// FillContainer serves food from the station into c and returns the
// updated container.
func (k *Kitchen) FillContainer(ctx context.Context, pos Pos, c cooking.Container) (cooking.Container, error) {
	return do(ctx, k, func(k *Kitchen) (cooking.Container, error) {
		st, err := k.station(pos)
		if err != nil {
			return c, err
		}
		_, r := st.FillContainer(&c)
		return c, reasonErr(r)
	})
}

func (k *Kitchen) Status(ctx context.Context, pos Pos) (cooking.StationStatus, error) {
	return do(ctx, k, func(k *Kitchen) (cooking.StationStatus, error) {
		st, err := k.station(pos)
		if err != nil {
			return cooking.StationStatus{}, err
		}
		return st.Status(), nil
	})
}

type StationInfo struct {
	Pos    Pos                   `json:"pos"`
	Status cooking.StationStatus `json:"status"`
}

// Stations lists every station in position order.
func (k *Kitchen) Stations(ctx context.Context) ([]StationInfo, error) {
	return do(ctx, k, func(k *Kitchen) ([]StationInfo, error) {
		out := make([]StationInfo, 0, len(k.stations))
		for _, p := range k.sortedPositions() {
			out = append(out, StationInfo{Pos: p, Status: k.stations[p].Status()})
		}
		return out, nil
	})
}

// StoreRecipe puts a synthesised dish into the AI kitchen at pos.
func (k *Kitchen) StoreRecipe(ctx context.Context, pos Pos, rd *recipe.RecipeData) (cooking.FoodResult, error) {
	return do(ctx, k, func(k *Kitchen) (cooking.FoodResult, error) {
		return k.storeRecipe(pos, rd)
	})
}

func (k *Kitchen) storeRecipe(pos Pos, rd *recipe.RecipeData) (cooking.FoodResult, error) {
	if rd == nil {
		return cooking.FoodResult{}, cooking.ReasonNoFood
	}
	st, err := k.station(pos)
	if err != nil {
		return cooking.FoodResult{}, err
	}
	if st.Kind() != cooking.KindAIKitchen {
		return cooking.FoodResult{}, cooking.ReasonUnsupported
	}
	food := FoodFromRecipe(rd)
	if err := reasonErr(st.StoreFood(food)); err != nil {
		return cooking.FoodResult{}, err
	}
	k.stored.Add(1)
	k.emit(CookEvent{
		Tick: k.tick.Load(),
		Type: EventRecipeStored,
		Pos:  pos,
		Kind: st.Kind(),
		Food: food,
	})
	return food, nil
}

// FoodFromRecipe is the dish a recipe yields: its name, total weight and
// per-100g values.
func FoodFromRecipe(rd *recipe.RecipeData) cooking.FoodResult {
	return cooking.FoodResult{
		FoodType:          rd.DishName,
		WeightGrams:       rd.TotalWeightGrams,
		NutritionPer100g:  rd.NutritionPer100g,
		SaturationPer100g: rd.SaturationPer100g,
	}
}
