// Package recipe defines the structured recipe produced by the synthesis
// pipeline.
package recipe

import (
	"errors"
	"fmt"
	"strings"
)

type AmountType string

const (
	AmountGrams AmountType = "grams"
	AmountCount AmountType = "count"
)

func (a AmountType) Valid() bool { return a == AmountGrams || a == AmountCount }

type Ingredient struct {
	ItemID     string     `json:"item"`
	AmountType AmountType `json:"amountType"`
	Amount     float64    `json:"amount"`
}

type Step struct {
	Action      string `json:"action"`
	Description string `json:"description"`
}

// RecipeData is treated as immutable once built; use Clone before handing a
// shared value to code that may modify it.
type RecipeData struct {
	DishName          string       `json:"dishName"`
	TotalWeightGrams  int          `json:"totalWeightGrams"`
	Ingredients       []Ingredient `json:"ingredients"`
	Steps             []Step       `json:"steps"`
	NutritionPer100g  float64      `json:"nutritionPer100g"`
	SaturationPer100g float64      `json:"saturationPer100g"`
	ExpirationHours   int          `json:"expirationHours"`
}

var ErrInvalid = errors.New("invalid recipe")

// Validate checks the invariants every successfully parsed recipe holds.
func (r *RecipeData) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil", ErrInvalid)
	}
	if strings.TrimSpace(r.DishName) == "" {
		return fmt.Errorf("%w: empty dishName", ErrInvalid)
	}
	if r.TotalWeightGrams <= 0 {
		return fmt.Errorf("%w: totalWeightGrams=%d", ErrInvalid, r.TotalWeightGrams)
	}
	if len(r.Ingredients) == 0 {
		return fmt.Errorf("%w: no ingredients", ErrInvalid)
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalid)
	}
	for i, ing := range r.Ingredients {
		if ing.ItemID == "" {
			return fmt.Errorf("%w: ingredient %d: empty item", ErrInvalid, i)
		}
		if !ing.AmountType.Valid() {
			return fmt.Errorf("%w: ingredient %d: amountType %q", ErrInvalid, i, ing.AmountType)
		}
		if ing.Amount < 0 {
			return fmt.Errorf("%w: ingredient %d: negative amount", ErrInvalid, i)
		}
	}
	for i, st := range r.Steps {
		if st.Action == "" {
			return fmt.Errorf("%w: step %d: empty action", ErrInvalid, i)
		}
	}
	if r.NutritionPer100g < 0 || r.SaturationPer100g < 0 || r.ExpirationHours < 0 {
		return fmt.Errorf("%w: negative nutrition, saturation or expiration", ErrInvalid)
	}
	return nil
}

func (r *RecipeData) Clone() *RecipeData {
	if r == nil {
		return nil
	}
	out := *r
	out.Ingredients = append([]Ingredient(nil), r.Ingredients...)
	out.Steps = append([]Step(nil), r.Steps...)
	return &out
}
