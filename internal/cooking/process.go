package cooking

// ProcessState is the coarse lifecycle of a Process.
type ProcessState int

const (
	StateIdle ProcessState = iota
	StateLoaded
	StateCooking
)

func (s ProcessState) String() string {
	switch s {
	case StateLoaded:
		return "LOADED"
	case StateCooking:
		return "COOKING"
	default:
		return "IDLE"
	}
}

// TickOutcome reports what a single Tick did.
type TickOutcome int

const (
	TickIdle TickOutcome = iota
	TickProgress
	TickAborted
	TickCompleted
)

func (o TickOutcome) String() string {
	switch o {
	case TickProgress:
		return "progress"
	case TickAborted:
		return "aborted"
	case TickCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// Process is the per-station cooking state machine. It owns the ledger and
// writes completed dishes into the food store.
//
// Invariant: cooking implies required > 0 and a non-empty ledger.
type Process struct {
	ledger *Ledger
	food   *FoodStore
	heat   HeatSource

	action   Action
	progress int
	required int
	cooking  bool
}

func NewProcess(ledger *Ledger, food *FoodStore, heat HeatSource) *Process {
	if ledger == nil {
		ledger = NewLedger(DefaultCapacity)
	}
	if food == nil {
		food = &FoodStore{}
	}
	if heat == nil {
		heat = Independent{}
	}
	return &Process{ledger: ledger, food: food, heat: heat, action: ActionNone}
}

func (p *Process) State() ProcessState {
	switch {
	case p.cooking:
		return StateCooking
	case p.ledger.HasIngredients():
		return StateLoaded
	default:
		return StateIdle
	}
}

// AddIngredient copies e into the ledger.
func (p *Process) AddIngredient(e IngredientEntry) Reason {
	if p.cooking {
		return ReasonCooking
	}
	if p.food.HasFood() {
		return ReasonFoodReady
	}
	if !p.ledger.Add(e) {
		return ReasonFull
	}
	return OK
}

// StartCooking moves LOADED to COOKING. A refused start leaves every field
// untouched.
func (p *Process) StartCooking(action Action, durationTicks int) Reason {
	switch {
	case p.cooking:
		return ReasonCooking
	case !p.ledger.HasIngredients():
		return ReasonNoIngredients
	case durationTicks <= 0:
		return ReasonUnsupported
	case !HasHeat(p.heat):
		return ReasonNoHeat
	}
	p.action = action
	p.progress = 0
	p.required = durationTicks
	p.cooking = true
	return OK
}

// Tick advances cooking by one step. Losing heat aborts back to LOADED with
// the ingredients kept.
func (p *Process) Tick() TickOutcome {
	if !p.cooking {
		return TickIdle
	}
	if !HasHeat(p.heat) {
		p.abort()
		return TickAborted
	}
	step := int(p.heat.HeatMultiplier())
	if step < 1 {
		step = 1
	}
	p.progress += step
	if p.progress >= p.required {
		p.complete()
		return TickCompleted
	}
	return TickProgress
}

// StopCooking is a manual abort. It reports whether anything was cooking.
func (p *Process) StopCooking() bool {
	if !p.cooking {
		return false
	}
	p.abort()
	return true
}

func (p *Process) abort() {
	p.cooking = false
	p.progress = 0
	p.required = 0
	p.action = ActionNone
}

func (p *Process) complete() {
	p.food.StoreFood(Cook(p.action, p.ledger.Ingredients()))
	p.ledger.Clear()
	p.abort()
}

// Progress is progress/required clamped to [0,1].
func (p *Process) Progress() float64 {
	if p.required <= 0 {
		return 0
	}
	f := float64(p.progress) / float64(p.required)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func (p *Process) Cooking() bool { return p.cooking }

func (p *Process) Action() Action { return p.action }

func (p *Process) ProgressTicks() int { return p.progress }

func (p *Process) RequiredTicks() int { return p.required }

func (p *Process) HasHeat() bool { return HasHeat(p.heat) }

func (p *Process) Ingredients() []IngredientEntry { return p.ledger.Ingredients() }

// Clear drops ingredients and any in-flight cook. Resident food is kept.
func (p *Process) Clear() {
	p.ledger.Clear()
	p.abort()
}

// restore reinstates a cook read back from a snapshot. Inconsistent state is
// dropped rather than resumed.
func (p *Process) restore(action Action, progress, required int, cooking bool) {
	p.abort()
	if !cooking || required <= 0 || !p.ledger.HasIngredients() {
		return
	}
	if progress < 0 {
		progress = 0
	}
	p.action = action
	p.progress = progress
	p.required = required
	p.cooking = true
}
