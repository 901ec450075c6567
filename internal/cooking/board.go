package cooking

// CuttingBoard holds a single item that can be chopped with a knife.
type CuttingBoard struct {
	item    Item
	chopped bool
}

func (b *CuttingBoard) HasItem() bool { return !b.item.IsEmpty() }

func (b *CuttingBoard) Item() Item { return b.item }

func (b *CuttingBoard) Chopped() bool { return b.chopped }

// Place puts one unit of it on the board.
func (b *CuttingBoard) Place(it Item) Reason {
	if b.HasItem() {
		return ReasonOccupied
	}
	if it.IsEmpty() {
		return ReasonEmpty
	}
	if !it.IsIngredient() {
		return ReasonNotIngredient
	}
	it.Count = 1
	b.item = it
	b.chopped = false
	return OK
}

func (b *CuttingBoard) Chop(tool ToolRole) Reason {
	switch {
	case tool != ToolKnife:
		return ReasonBadTool
	case !b.HasItem():
		return ReasonEmpty
	case b.chopped || b.item.Chopped:
		return ReasonAlreadyChopped
	}
	b.chopped = true
	return OK
}

// Remove empties the board. A chopped item comes back tagged and renamed.
func (b *CuttingBoard) Remove() (Item, bool) {
	if !b.HasItem() {
		return Item{}, false
	}
	it := b.item
	if b.chopped {
		it.Chopped = true
		it.Name = "Chopped " + it.DisplayName()
	}
	b.item = Item{}
	b.chopped = false
	return it, true
}

func (b *CuttingBoard) restore(it Item, chopped bool) {
	b.item = it
	b.chopped = chopped && !it.IsEmpty()
}
