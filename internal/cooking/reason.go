package cooking

// Reason is a station rejection code. The empty reason means accepted.
type Reason string

const (
	OK Reason = ""

	// Ledger / process.
	ReasonFull          Reason = "E_FULL"
	ReasonCooking       Reason = "E_COOKING"
	ReasonFoodReady     Reason = "E_FOOD_READY"
	ReasonNoIngredients Reason = "E_NO_INGREDIENTS"
	ReasonNoHeat        Reason = "E_NO_HEAT"
	ReasonNotIngredient Reason = "E_NOT_INGREDIENT"

	// Interaction layer.
	ReasonBadTool        Reason = "E_BAD_TOOL"
	ReasonNoFood         Reason = "E_NO_FOOD"
	ReasonContainerFull  Reason = "E_CONTAINER_FULL"
	ReasonMixedFood      Reason = "E_MIXED_FOOD"
	ReasonOccupied       Reason = "E_OCCUPIED"
	ReasonEmpty          Reason = "E_EMPTY"
	ReasonAlreadyChopped Reason = "E_ALREADY_CHOPPED"
	ReasonUnsupported    Reason = "E_UNSUPPORTED"
)

func (r Reason) OK() bool { return r == OK }

func (r Reason) Error() string { return string(r) }
