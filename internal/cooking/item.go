// Package cooking implements the station kernel: ingredient ledgers, heat,
// the tick-driven cooking process and the weight-based food store.
//
// Nothing in this package is safe for concurrent use. Stations are owned by a
// single loop goroutine (see internal/kitchen).
package cooking

import "strings"

// ToolRole is resolved once from the item catalog; stations never inspect
// item ids to decide what a tool is.
type ToolRole int

const (
	ToolNone ToolRole = iota
	ToolKnife
	ToolSpatula
	ToolSpoon
	ToolLadle
)

var toolNames = map[ToolRole]string{
	ToolNone:    "none",
	ToolKnife:   "knife",
	ToolSpatula: "spatula",
	ToolSpoon:   "spoon",
	ToolLadle:   "ladle",
}

func (t ToolRole) String() string {
	if s, ok := toolNames[t]; ok {
		return s
	}
	return "none"
}

// ParseToolRole maps a catalog tool name to a role. Unknown names are ToolNone.
func ParseToolRole(s string) ToolRole {
	s = strings.ToLower(strings.TrimSpace(s))
	for role, name := range toolNames {
		if name == s {
			return role
		}
	}
	return ToolNone
}

// Item is the host inventory abstraction: one stack of a catalog item.
type Item struct {
	ID         string
	Name       string
	Count      int
	Edible     bool
	Nutrition  float64
	Saturation float64
	Tool       ToolRole
	// Utensil marks tools without a station role (bowl, kitchen scale).
	Utensil bool
	Chopped bool
}

func (it Item) IsEmpty() bool { return it.ID == "" || it.Count <= 0 }

// IsIngredient reports whether the item can be put on a station. Seasonings
// count even though they are not edible on their own.
func (it Item) IsIngredient() bool {
	return !it.IsEmpty() && it.Tool == ToolNone && !it.Utensil
}

// DisplayName falls back to the item id when the catalog has no name.
func (it Item) DisplayName() string {
	if it.Name != "" {
		return it.Name
	}
	return it.ID
}
