package recipegen

import (
	"encoding/json"
	"fmt"
	"strings"

	"kitchencraft.ai/internal/catalogs"
)

const contractExample = `{
  "dishName": %s,
  "totalWeightGrams": 100,
  "ingredients": [
    {"item": "minecraft:wheat", "amountType": "grams", "amount": 60},
    {"item": "minecraft:egg", "amountType": "count", "amount": 0.5},
    {"item": "customcookingmod:salt", "amountType": "grams", "amount": 1}
  ],
  "steps": [
    {"action": "mix_in_bowl", "description": "Mix the wheat, egg and salt in a bowl"},
    {"action": "cook_in_oven", "description": "Bake in the oven"}
  ],
  "nutritionPer100g": 6,
  "saturationPer100g": 0.6,
  "expirationHours": 48
}`

// BuildPrompt renders the synthesis prompt. The output depends only on the
// catalog contents and the two arguments.
func BuildPrompt(cat *catalogs.Catalogs, dishName, category string) string {
	var b strings.Builder
	b.WriteString("You are a master chef inside a Minecraft kitchen.\n\n")
	fmt.Fprintf(&b, "The player wants to make %q.\n", dishName)
	fmt.Fprintf(&b, "Category: %s\n\n", category)

	b.WriteString("Design the recipe using only the ingredients and methods below.\n\n")
	b.WriteString("=== Ingredients ===\n")
	sources, bySource := cat.Ingredients()
	for _, src := range sources {
		fmt.Fprintf(&b, "[%s]\n", src)
		for _, d := range bySource[src] {
			fmt.Fprintf(&b, "- %s (%s)\n", d.ID, d.Name)
		}
	}

	b.WriteString("\n=== Cooking methods ===\n")
	for i, m := range cat.Methods.Defs {
		fmt.Fprintf(&b, "%d. %s: %s (%s)\n", i+1, m.ID, m.Name, strings.Join(m.Equipment, " + "))
	}

	b.WriteString("\n=== Tools ===\n")
	for _, d := range cat.Tools() {
		fmt.Fprintf(&b, "- %s (%s)\n", d.ID, d.Name)
	}

	b.WriteString("\n=== Output format ===\n")
	b.WriteString("All quantities describe 100 grams of the finished dish.\n")
	b.WriteString("Use amountType \"grams\" for uncountable materials (flour, salt, oil, water) and \"count\" for discrete items (eggs); count may be fractional.\n")
	b.WriteString("Every step action must be one of the cooking method ids above.\n")
	b.WriteString("Respond with JSON in exactly this shape:\n")
	name, _ := json.Marshal(dishName)
	fmt.Fprintf(&b, contractExample, name)
	b.WriteString("\n\nIMPORTANT: Return only the JSON. No explanations.")
	return b.String()
}
