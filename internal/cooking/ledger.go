package cooking

// DefaultCapacity matches a 9-slot chest.
const DefaultCapacity = 9

// IngredientEntry is one ingredient held by a station.
type IngredientEntry struct {
	ItemID            string  `json:"item_id"`
	Name              string  `json:"name"`
	Quantity          int     `json:"quantity"`
	NutritionPerUnit  float64 `json:"nutrition_per_unit"`
	SaturationPerUnit float64 `json:"saturation_per_unit"`
	Edible            bool    `json:"edible"`
}

// EntryFromItem snapshots an item; later changes to the stack do not leak in.
func EntryFromItem(it Item) IngredientEntry {
	return IngredientEntry{
		ItemID:            it.ID,
		Name:              it.DisplayName(),
		Quantity:          it.Count,
		NutritionPerUnit:  it.Nutrition,
		SaturationPerUnit: it.Saturation,
		Edible:            it.Edible,
	}
}

// Ledger is a bounded, ordered ingredient list.
type Ledger struct {
	capacity int
	entries  []IngredientEntry
}

func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{capacity: capacity, entries: make([]IngredientEntry, 0, capacity)}
}

// Add appends a copy of e. It returns false and leaves the ledger untouched
// when the ledger is full.
func (l *Ledger) Add(e IngredientEntry) bool {
	if len(l.entries) >= l.capacity {
		return false
	}
	l.entries = append(l.entries, e)
	return true
}

// Ingredients returns a copy of the held entries in insertion order.
func (l *Ledger) Ingredients() []IngredientEntry {
	out := make([]IngredientEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Clear() { l.entries = l.entries[:0] }

func (l *Ledger) HasIngredients() bool { return len(l.entries) > 0 }

func (l *Ledger) Len() int { return len(l.entries) }

func (l *Ledger) Cap() int { return l.capacity }

func (l *Ledger) Full() bool { return len(l.entries) >= l.capacity }
