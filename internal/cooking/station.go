package cooking

import "fmt"

// Kind names a station type.
type Kind string

const (
	KindOven         Kind = "oven"
	KindFryingPan    Kind = "frying_pan"
	KindHotPlate     Kind = "hot_plate"
	KindIHHeater     Kind = "ih_heater"
	KindPot          Kind = "pot"
	KindCuttingBoard Kind = "cutting_board"
	KindAIKitchen    Kind = "ai_kitchen"
)

// Profile is the per-kind strategy a Station is composed with.
type Profile struct {
	Kind            Kind
	DefaultCapacity int
	// DependsOnHeat stations read their heat from a provider (the heater below).
	DependsOnHeat bool
	// ProvidesHeat stations have an operator-controlled HeatLevel.
	ProvidesHeat bool
	// Cooks is false for stations without a cooking process.
	Cooks bool
	// Choose picks the action for a tool interaction given the ledger size.
	Choose func(tool ToolRole, ingredients int) (Action, Reason)
}

var profiles = map[Kind]Profile{
	KindOven: {
		Kind: KindOven, DefaultCapacity: 6, Cooks: true,
		Choose: func(tool ToolRole, _ int) (Action, Reason) {
			if tool != ToolNone {
				return ActionNone, ReasonBadTool
			}
			return ActionBake, OK
		},
	},
	KindFryingPan: {
		Kind: KindFryingPan, DefaultCapacity: 4, Cooks: true, DependsOnHeat: true,
		Choose: func(tool ToolRole, _ int) (Action, Reason) {
			if tool != ToolSpatula {
				return ActionNone, ReasonBadTool
			}
			return ActionFry, OK
		},
	},
	KindHotPlate: {
		Kind: KindHotPlate, DefaultCapacity: 4, Cooks: true,
		Choose: func(tool ToolRole, _ int) (Action, Reason) {
			switch tool {
			case ToolSpatula:
				return ActionStirFry, OK
			case ToolNone:
				return ActionFry, OK
			}
			return ActionNone, ReasonBadTool
		},
	},
	KindIHHeater: {
		Kind: KindIHHeater, DefaultCapacity: DefaultCapacity, Cooks: true, ProvidesHeat: true,
		Choose: func(tool ToolRole, n int) (Action, Reason) {
			switch tool {
			case ToolSpatula:
				return ActionStirFry, OK
			case ToolSpoon, ToolLadle:
				return ActionSimmer, OK
			case ToolNone:
				if n <= 2 {
					return ActionFry, OK
				}
				return ActionBoil, OK
			}
			return ActionNone, ReasonBadTool
		},
	},
	KindPot: {
		Kind: KindPot, DefaultCapacity: DefaultCapacity, Cooks: true,
		Choose: func(tool ToolRole, n int) (Action, Reason) {
			if tool != ToolSpoon && tool != ToolLadle {
				return ActionNone, ReasonBadTool
			}
			if n > 2 {
				return ActionSimmer, OK
			}
			return ActionBoil, OK
		},
	},
	KindCuttingBoard: {Kind: KindCuttingBoard, DefaultCapacity: 1},
	KindAIKitchen:    {Kind: KindAIKitchen},
}

func ProfileFor(k Kind) (Profile, bool) {
	p, ok := profiles[k]
	return p, ok
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := profiles[k]; !ok {
		return "", fmt.Errorf("unknown station kind: %q", s)
	}
	return k, nil
}

// StationOptions configures NewStation.
type StationOptions struct {
	// Capacity overrides the profile's ledger capacity when > 0.
	Capacity int
	// Heat finds the provider for heat-dependent stations. It may return nil.
	Heat func() HeatProvider
}

// Station is a cooking block: a ledger, a process and a food store composed
// with the strategy of its kind.
type Station struct {
	profile Profile
	ledger  *Ledger
	food    FoodStore
	process *Process
	board   *CuttingBoard
	heat    HeatLevel
}

func NewStation(kind Kind, opts StationOptions) (*Station, error) {
	p, ok := profiles[kind]
	if !ok {
		return nil, fmt.Errorf("unknown station kind: %q", kind)
	}
	s := &Station{profile: p}
	capacity := p.DefaultCapacity
	if opts.Capacity > 0 {
		capacity = opts.Capacity
	}
	if kind == KindCuttingBoard {
		s.board = &CuttingBoard{}
		return s, nil
	}
	if !p.Cooks {
		return s, nil
	}
	s.ledger = NewLedger(capacity)
	var heat HeatSource = Independent{}
	if p.DependsOnHeat {
		heat = Dependent{Lookup: opts.Heat}
	}
	s.process = NewProcess(s.ledger, &s.food, heat)
	return s, nil
}

func (s *Station) Kind() Kind { return s.profile.Kind }

func (s *Station) Profile() Profile { return s.profile }

func (s *Station) Cooking() bool { return s.process != nil && s.process.Cooking() }

// CurrentAction is the action in progress, or ActionNone.
func (s *Station) CurrentAction() Action {
	if s.process == nil {
		return ActionNone
	}
	return s.process.Action()
}

func (s *Station) Ingredients() []IngredientEntry {
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Ingredients()
}

// AddItem puts an item on the station: into the ledger for cooking stations,
// onto the board for the cutting board.
func (s *Station) AddItem(it Item) Reason {
	if s.board != nil {
		return s.board.Place(it)
	}
	if s.process == nil {
		return ReasonUnsupported
	}
	if !it.IsIngredient() {
		return ReasonNotIngredient
	}
	return s.process.AddIngredient(EntryFromItem(it))
}

// Use is a tool interaction. On cooking stations it picks an action and
// starts cooking; on the cutting board it chops.
func (s *Station) Use(tool ToolRole) (Action, Reason) {
	if s.board != nil {
		if r := s.board.Chop(tool); !r.OK() {
			return ActionNone, r
		}
		return ActionChop, OK
	}
	if s.process == nil || s.profile.Choose == nil {
		return ActionNone, ReasonUnsupported
	}
	if s.food.HasFood() {
		return ActionNone, ReasonFoodReady
	}
	if s.process.Cooking() {
		return ActionNone, ReasonCooking
	}
	if !s.ledger.HasIngredients() {
		return ActionNone, ReasonNoIngredients
	}
	action, r := s.profile.Choose(tool, s.ledger.Len())
	if !r.OK() {
		return ActionNone, r
	}
	if r := s.process.StartCooking(action, action.DefaultDurationTicks); !r.OK() {
		return ActionNone, r
	}
	return action, OK
}

// Start begins cooking with an explicit action and duration, bypassing the
// kind's tool policy.
func (s *Station) Start(action Action, durationTicks int) Reason {
	if s.process == nil {
		return ReasonUnsupported
	}
	if s.food.HasFood() {
		return ReasonFoodReady
	}
	return s.process.StartCooking(action, durationTicks)
}

func (s *Station) Stop() bool {
	if s.process == nil {
		return false
	}
	return s.process.StopCooking()
}

func (s *Station) Tick() TickOutcome {
	if s.process == nil {
		return TickIdle
	}
	return s.process.Tick()
}

// RemoveItem takes the item off a cutting board.
func (s *Station) RemoveItem() (Item, bool) {
	if s.board == nil {
		return Item{}, false
	}
	return s.board.Remove()
}

// StoreFood puts a finished dish on the station. Resident food is never
// overwritten here.
func (s *Station) StoreFood(f FoodResult) Reason {
	if s.board != nil {
		return ReasonUnsupported
	}
	if s.food.HasFood() {
		return ReasonFoodReady
	}
	if s.process != nil && s.process.Cooking() {
		return ReasonCooking
	}
	if !f.HasFood() {
		return ReasonNoFood
	}
	s.food.StoreFood(f)
	return OK
}

func (s *Station) TakeFood(grams int) int { return s.food.TakeFood(grams) }

func (s *Station) FillContainer(c *Container) (int, Reason) { return c.Fill(&s.food) }

func (s *Station) Food() FoodResult { return s.food.Food() }

func (s *Station) HasFood() bool { return s.food.HasFood() }

// CycleHeat advances the heater level. Only heat-providing stations have one.
func (s *Station) CycleHeat() (HeatLevel, Reason) {
	if !s.profile.ProvidesHeat {
		return HeatOff, ReasonUnsupported
	}
	s.heat = s.heat.Next()
	return s.heat, OK
}

// HeatLevel makes heaters usable as a HeatProvider.
func (s *Station) HeatLevel() HeatLevel {
	if !s.profile.ProvidesHeat {
		return HeatOff
	}
	return s.heat
}

// Break empties the station and returns what a player would get back.
func (s *Station) Break() []IngredientEntry {
	var out []IngredientEntry
	if s.ledger != nil {
		out = s.ledger.Ingredients()
	}
	if s.process != nil {
		s.process.Clear()
	}
	if s.board != nil {
		if it, ok := s.board.Remove(); ok {
			out = append(out, EntryFromItem(it))
		}
	}
	s.food.Clear()
	s.heat = HeatOff
	return out
}

// StationStatus is a read-only view for clients and logs.
type StationStatus struct {
	Kind        Kind       `json:"kind"`
	State       string     `json:"state"`
	Action      string     `json:"action"`
	Progress    float64    `json:"progress"`
	Ingredients int        `json:"ingredients"`
	Capacity    int        `json:"capacity"`
	HasHeat     bool       `json:"has_heat"`
	Heat        string     `json:"heat,omitempty"`
	Food        FoodResult `json:"food"`
	BoardItem   string     `json:"board_item,omitempty"`
	Chopped     bool       `json:"chopped,omitempty"`
}

func (s *Station) Status() StationStatus {
	st := StationStatus{
		Kind:   s.profile.Kind,
		State:  StateIdle.String(),
		Action: ActionNone.ID,
		Food:   s.food.Food(),
	}
	if s.process != nil {
		st.State = s.process.State().String()
		st.Action = s.process.Action().ID
		st.Progress = s.process.Progress()
		st.Ingredients = s.ledger.Len()
		st.Capacity = s.ledger.Cap()
		st.HasHeat = s.process.HasHeat()
	}
	if s.profile.ProvidesHeat {
		st.Heat = s.heat.String()
	}
	if s.board != nil {
		st.Capacity = 1
		if s.board.HasItem() {
			st.Ingredients = 1
			st.BoardItem = s.board.Item().ID
			st.State = StateLoaded.String()
		}
		st.Chopped = s.board.Chopped()
	}
	return st
}

// StationState is the resumable form of a station.
type StationState struct {
	Kind          Kind
	Capacity      int
	Ingredients   []IngredientEntry
	ActionID      string
	ProgressTicks int
	RequiredTicks int
	Cooking       bool
	Food          FoodResult
	Heat          HeatLevel
	BoardItem     Item
	BoardChopped  bool
}

func (s *Station) State() StationState {
	st := StationState{
		Kind: s.profile.Kind,
		Food: s.food.Food(),
		Heat: s.heat,
	}
	if s.process != nil {
		st.Capacity = s.ledger.Cap()
		st.Ingredients = s.ledger.Ingredients()
		st.ActionID = s.process.Action().ID
		st.ProgressTicks = s.process.ProgressTicks()
		st.RequiredTicks = s.process.RequiredTicks()
		st.Cooking = s.process.Cooking()
	}
	if s.board != nil {
		st.BoardItem = s.board.Item()
		st.BoardChopped = s.board.Chopped()
	}
	return st
}

// RestoreStation rebuilds a station from its saved state. Entries beyond
// capacity are dropped.
func RestoreStation(st StationState, heat func() HeatProvider) (*Station, error) {
	s, err := NewStation(st.Kind, StationOptions{Capacity: st.Capacity, Heat: heat})
	if err != nil {
		return nil, err
	}
	if s.ledger != nil {
		for _, e := range st.Ingredients {
			if !s.ledger.Add(e) {
				break
			}
		}
		s.process.restore(ActionFromID(st.ActionID), st.ProgressTicks, st.RequiredTicks, st.Cooking)
	}
	if s.board != nil {
		s.board.restore(st.BoardItem, st.BoardChopped)
	}
	if s.profile.ProvidesHeat && st.Heat >= HeatOff && st.Heat <= HeatHigh {
		s.heat = st.Heat
	}
	if st.Food.HasFood() {
		s.food.StoreFood(st.Food)
	}
	return s, nil
}
