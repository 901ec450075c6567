package recipegen

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"kitchencraft.ai/internal/recipe"
)

//go:embed recipe.schema.json
var recipeSchemaJSON string

var recipeSchema = jsonschema.MustCompileString("recipe.schema.json", recipeSchemaJSON)

// ExtractJSON strips a surrounding markdown code fence, if any.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// wireRecipe accepts whole-number floats for integer fields.
type wireRecipe struct {
	DishName         string  `json:"dishName"`
	TotalWeightGrams float64 `json:"totalWeightGrams"`
	Ingredients      []struct {
		Item       string  `json:"item"`
		AmountType string  `json:"amountType"`
		Amount     float64 `json:"amount"`
	} `json:"ingredients"`
	Steps             []recipe.Step `json:"steps"`
	NutritionPer100g  float64       `json:"nutritionPer100g"`
	SaturationPer100g float64       `json:"saturationPer100g"`
	ExpirationHours   float64       `json:"expirationHours"`
}

// Parser turns model output into RecipeData. With a non-empty id list it
// snaps near-miss item ids onto known ones.
type Parser struct {
	itemIDs []string
}

func NewParser(itemIDs []string) *Parser {
	ids := append([]string(nil), itemIDs...)
	sort.Strings(ids)
	return &Parser{itemIDs: ids}
}

// Parse never returns a partial recipe: any error means a nil result.
func (p *Parser) Parse(text string) (*recipe.RecipeData, error) {
	raw := []byte(ExtractJSON(text))

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := recipeSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var w wireRecipe
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if !isWhole(w.TotalWeightGrams) || !isWhole(w.ExpirationHours) {
		return nil, fmt.Errorf("%w: totalWeightGrams and expirationHours must be integers", ErrParse)
	}

	r := &recipe.RecipeData{
		DishName:          w.DishName,
		TotalWeightGrams:  int(w.TotalWeightGrams),
		Steps:             w.Steps,
		NutritionPer100g:  w.NutritionPer100g,
		SaturationPer100g: w.SaturationPer100g,
		ExpirationHours:   int(w.ExpirationHours),
	}
	for _, ing := range w.Ingredients {
		r.Ingredients = append(r.Ingredients, recipe.Ingredient{
			ItemID:     p.resolve(ing.Item),
			AmountType: recipe.AmountType(ing.AmountType),
			Amount:     ing.Amount,
		})
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return r, nil
}

func isWhole(f float64) bool { return f == math.Trunc(f) && !math.IsInf(f, 0) }

func (p *Parser) resolve(id string) string {
	if len(p.itemIDs) == 0 {
		return id
	}
	i := sort.SearchStrings(p.itemIDs, id)
	if i < len(p.itemIDs) && p.itemIDs[i] == id {
		return id
	}
	// Distances are taken on the path so a wrong namespace alone still
	// resolves. An ambiguous best match is never snapped.
	path := itemPath(id)
	best, bestDist, ties := "", math.MaxInt, 0
	for _, cand := range p.itemIDs {
		d := levenshtein.ComputeDistance(path, itemPath(cand))
		switch {
		case d < bestDist:
			best, bestDist, ties = cand, d, 1
		case d == bestDist:
			ties++
		}
	}
	if ties != 1 || bestDist > snapLimit(len(path)) {
		return id
	}
	// Short names differ by one letter all the time (beet, beef). Only a
	// plural or truncation is close enough there.
	if bestPath := itemPath(best); len(path) <= 4 && bestDist > 0 &&
		!strings.HasPrefix(path, bestPath) && !strings.HasPrefix(bestPath, path) {
		return id
	}
	return best
}

func itemPath(id string) string {
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		return id[i+1:]
	}
	return id
}

func snapLimit(length int) int {
	switch {
	case length <= 8:
		return 1
	case length <= 16:
		return 2
	default:
		return 3
	}
}
