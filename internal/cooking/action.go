package cooking

// Action is a cooking method. The set is fixed; look actions up by id.
type Action struct {
	ID                   string
	DisplayName          string
	DefaultDurationTicks int
	ResultPrefix         string
	requiresHeat         bool
}

// Durations assume 20 ticks per second.
var (
	ActionStirFry = Action{ID: "stir_fry", DisplayName: "Stir-Frying", DefaultDurationTicks: 200, ResultPrefix: "Stir-fried", requiresHeat: true}
	ActionSimmer  = Action{ID: "simmer", DisplayName: "Simmering", DefaultDurationTicks: 600, ResultPrefix: "Simmered", requiresHeat: true}
	ActionBoil    = Action{ID: "boil", DisplayName: "Boiling", DefaultDurationTicks: 300, ResultPrefix: "Boiled", requiresHeat: true}
	ActionGrill   = Action{ID: "grill", DisplayName: "Grilling", DefaultDurationTicks: 200, ResultPrefix: "Grilled", requiresHeat: true}
	ActionBake    = Action{ID: "bake", DisplayName: "Baking", DefaultDurationTicks: 400, ResultPrefix: "Baked", requiresHeat: true}
	ActionSteam   = Action{ID: "steam", DisplayName: "Steaming", DefaultDurationTicks: 300, ResultPrefix: "Steamed", requiresHeat: true}
	ActionMix     = Action{ID: "mix", DisplayName: "Mixing", DefaultDurationTicks: 100, ResultPrefix: "Mixed"}
	ActionChop    = Action{ID: "chop", DisplayName: "Chopping", DefaultDurationTicks: 40, ResultPrefix: "Chopped"}
	ActionFry     = Action{ID: "fry", DisplayName: "Frying", DefaultDurationTicks: 200, ResultPrefix: "Fried", requiresHeat: true}
	ActionNone    = Action{ID: "none", DisplayName: "None"}
)

var actions = []Action{
	ActionStirFry,
	ActionSimmer,
	ActionBoil,
	ActionGrill,
	ActionBake,
	ActionSteam,
	ActionMix,
	ActionChop,
	ActionFry,
	ActionNone,
}

var actionsByID = func() map[string]Action {
	m := make(map[string]Action, len(actions))
	for _, a := range actions {
		m[a.ID] = a
	}
	return m
}()

// Actions returns every known action, ActionNone last.
func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// ActionFromID returns ActionNone for unknown ids.
func ActionFromID(id string) Action {
	if a, ok := actionsByID[id]; ok {
		return a
	}
	return ActionNone
}

func (a Action) RequiresHeat() bool { return a.requiresHeat }

func (a Action) IsNone() bool { return a.ID == "" || a.ID == ActionNone.ID }

func (a Action) String() string { return a.ID }
