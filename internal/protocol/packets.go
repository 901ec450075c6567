package protocol

import (
	"fmt"
	"io"

	pk "github.com/Tnze/go-mc/net/packet"

	"kitchencraft.ai/internal/recipe"
)

// maxListLen bounds ingredient and step arrays on decode.
const maxListLen = 256

// RecipeRequest asks for a dish to be synthesised and stored into the AI
// kitchen at Pos.
type RecipeRequest struct {
	RequestID string
	DishName  string
	Category  string
	Pos       [3]int
}

func (q *RecipeRequest) WriteTo(w io.Writer) (int64, error) {
	return pk.Tuple{
		pk.String(q.RequestID),
		pk.String(q.DishName),
		pk.String(q.Category),
		pk.Int(q.Pos[0]),
		pk.Int(q.Pos[1]),
		pk.Int(q.Pos[2]),
	}.WriteTo(w)
}

func (q *RecipeRequest) ReadFrom(r io.Reader) (int64, error) {
	var id, dish, category pk.String
	var x, y, z pk.Int
	n, err := pk.Tuple{&id, &dish, &category, &x, &y, &z}.ReadFrom(r)
	if err != nil {
		return n, err
	}
	*q = RecipeRequest{
		RequestID: string(id),
		DishName:  string(dish),
		Category:  string(category),
		Pos:       [3]int{int(x), int(y), int(z)},
	}
	return n, nil
}

func (q *RecipeRequest) Encode() ([]byte, error) {
	return EncodeFrame(PacketRecipeRequest, q)
}

func DecodeRecipeRequest(b []byte) (RecipeRequest, error) {
	var q RecipeRequest
	err := Decode(b, PacketRecipeRequest, &q)
	return q, err
}

// RecipeResponse carries the recipe when Success is set. Code explains a
// failure; on success it is set only when the recipe could not be stored
// into the kitchen at the requested position.
type RecipeResponse struct {
	RequestID string
	Success   bool
	Code      string
	Recipe    *recipe.RecipeData
}

func (p *RecipeResponse) WriteTo(w io.Writer) (int64, error) {
	success := p.Success && p.Recipe != nil
	n, err := pk.Tuple{pk.String(p.RequestID), pk.Boolean(success), pk.String(p.Code)}.WriteTo(w)
	if err != nil || !success {
		return n, err
	}
	m, err := writeRecipe(w, p.Recipe)
	return n + m, err
}

func (p *RecipeResponse) ReadFrom(r io.Reader) (int64, error) {
	var id, code pk.String
	var success pk.Boolean
	n, err := pk.Tuple{&id, &success, &code}.ReadFrom(r)
	if err != nil {
		return n, err
	}
	*p = RecipeResponse{RequestID: string(id), Success: bool(success), Code: string(code)}
	if !p.Success {
		return n, nil
	}
	rd, m, err := readRecipe(r)
	n += m
	if err != nil {
		return n, err
	}
	p.Recipe = rd
	return n, nil
}

func (p *RecipeResponse) Encode() ([]byte, error) {
	return EncodeFrame(PacketRecipeResponse, p)
}

func DecodeRecipeResponse(b []byte) (RecipeResponse, error) {
	var p RecipeResponse
	err := Decode(b, PacketRecipeResponse, &p)
	return p, err
}

func writeRecipe(w io.Writer, rd *recipe.RecipeData) (int64, error) {
	fields := pk.Tuple{
		pk.String(rd.DishName),
		pk.VarInt(rd.TotalWeightGrams),
		pk.VarInt(len(rd.Ingredients)),
	}
	for _, ing := range rd.Ingredients {
		fields = append(fields, pk.String(ing.ItemID), pk.String(ing.AmountType), pk.Double(ing.Amount))
	}
	fields = append(fields, pk.VarInt(len(rd.Steps)))
	for _, st := range rd.Steps {
		fields = append(fields, pk.String(st.Action), pk.String(st.Description))
	}
	fields = append(fields,
		pk.Double(rd.NutritionPer100g),
		pk.Double(rd.SaturationPer100g),
		pk.VarInt(rd.ExpirationHours),
	)
	return fields.WriteTo(w)
}

func readRecipe(r io.Reader) (*recipe.RecipeData, int64, error) {
	var (
		total int64
		dish  pk.String
		grams pk.VarInt
		count pk.VarInt
	)
	n, err := pk.Tuple{&dish, &grams, &count}.ReadFrom(r)
	total += n
	if err != nil {
		return nil, total, err
	}
	if count < 0 || count > maxListLen {
		return nil, total, fmt.Errorf("ingredient count %d out of range", count)
	}
	rd := &recipe.RecipeData{DishName: string(dish), TotalWeightGrams: int(grams)}
	for i := 0; i < int(count); i++ {
		var item, unit pk.String
		var amount pk.Double
		n, err := pk.Tuple{&item, &unit, &amount}.ReadFrom(r)
		total += n
		if err != nil {
			return nil, total, fmt.Errorf("ingredient %d: %w", i, err)
		}
		rd.Ingredients = append(rd.Ingredients, recipe.Ingredient{
			ItemID:     string(item),
			AmountType: recipe.AmountType(unit),
			Amount:     float64(amount),
		})
	}

	n, err = count.ReadFrom(r)
	total += n
	if err != nil {
		return nil, total, err
	}
	if count < 0 || count > maxListLen {
		return nil, total, fmt.Errorf("step count %d out of range", count)
	}
	for i := 0; i < int(count); i++ {
		var action, desc pk.String
		n, err := pk.Tuple{&action, &desc}.ReadFrom(r)
		total += n
		if err != nil {
			return nil, total, fmt.Errorf("step %d: %w", i, err)
		}
		rd.Steps = append(rd.Steps, recipe.Step{Action: string(action), Description: string(desc)})
	}

	var nutrition, saturation pk.Double
	var hours pk.VarInt
	n, err = pk.Tuple{&nutrition, &saturation, &hours}.ReadFrom(r)
	total += n
	if err != nil {
		return nil, total, err
	}
	rd.NutritionPer100g = float64(nutrition)
	rd.SaturationPer100g = float64(saturation)
	rd.ExpirationHours = int(hours)
	if err := rd.Validate(); err != nil {
		return nil, total, err
	}
	return rd, total, nil
}
