package cooking

// GramsPerIngredient is the fixed weight each ledger entry contributes to a dish.
const GramsPerIngredient = 100

const mixedName = "Mixed Ingredients"

// FoodResult is the cooked food waiting on a station.
type FoodResult struct {
	FoodType          string  `json:"food_type"`
	WeightGrams       int     `json:"weight_grams"`
	NutritionPer100g  float64 `json:"nutrition_per_100g"`
	SaturationPer100g float64 `json:"saturation_per_100g"`
}

func (f FoodResult) HasFood() bool { return f.WeightGrams > 0 && f.FoodType != "" }

// FoodStore holds at most one FoodResult.
type FoodStore struct {
	food FoodResult
}

// StoreFood overwrites whatever is resident. Callers check HasFood first.
func (s *FoodStore) StoreFood(f FoodResult) {
	if f.WeightGrams < 0 {
		f.WeightGrams = 0
	}
	s.food = f
}

// TakeFood removes up to requested grams and returns how much was taken.
// The store is reset once the remaining weight reaches zero.
func (s *FoodStore) TakeFood(requested int) int {
	if !s.food.HasFood() || requested <= 0 {
		return 0
	}
	taken := min(requested, s.food.WeightGrams)
	s.food.WeightGrams -= taken
	if s.food.WeightGrams <= 0 {
		s.food = FoodResult{}
	}
	return taken
}

func (s *FoodStore) Food() FoodResult { return s.food }

func (s *FoodStore) HasFood() bool { return s.food.HasFood() }

func (s *FoodStore) Clear() { s.food = FoodResult{} }

// Cook turns a ledger into a dish. It is pure: the same action and entries
// always give the same result.
func Cook(action Action, entries []IngredientEntry) FoodResult {
	weight := len(entries) * GramsPerIngredient

	var nutrition, saturation float64
	for _, e := range entries {
		if !e.Edible {
			continue
		}
		nutrition += e.NutritionPerUnit * float64(e.Quantity)
		saturation += e.SaturationPerUnit * float64(e.Quantity)
	}

	res := FoodResult{
		FoodType:    DishName(action, entries),
		WeightGrams: weight,
	}
	if weight > 0 {
		units := float64(weight) / 100.0
		res.NutritionPer100g = nutrition / units
		res.SaturationPer100g = saturation / units
	}
	return res
}

// DishName is "<prefix> <ingredient>" for a single entry and
// "<prefix> Mixed Ingredients" otherwise.
func DishName(action Action, entries []IngredientEntry) string {
	prefix := action.ResultPrefix
	if prefix == "" {
		prefix = "Cooked"
	}
	main := mixedName
	if len(entries) == 1 {
		main = entries[0].Name
		if main == "" {
			main = entries[0].ItemID
		}
	}
	return prefix + " " + main
}
