package protocol

import "kitchencraft.ai/internal/cooking"

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoTooLarge   = "E_PROTO_TOO_LARGE"

	// Recipe pipeline. Every synthesis failure collapses to this code.
	ErrRecipeUnavailable = "E_RECIPE_UNAVAILABLE"

	// Kitchen routing.
	ErrStationNotFound = "E_STATION_NOT_FOUND"
	ErrPosTaken        = "E_POS_TAKEN"
	ErrUnknownItem     = "E_UNKNOWN_ITEM"
	ErrKitchenBusy     = "E_KITCHEN_BUSY"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrProtoTooLarge:     {},
	ErrRecipeUnavailable: {},
	ErrStationNotFound:   {},
	ErrPosTaken:          {},
	ErrUnknownItem:       {},
	ErrKitchenBusy:       {},
	ErrInternal:          {},

	string(cooking.ReasonFull):           {},
	string(cooking.ReasonCooking):        {},
	string(cooking.ReasonFoodReady):      {},
	string(cooking.ReasonNoIngredients):  {},
	string(cooking.ReasonNoHeat):         {},
	string(cooking.ReasonNotIngredient):  {},
	string(cooking.ReasonBadTool):        {},
	string(cooking.ReasonNoFood):         {},
	string(cooking.ReasonContainerFull):  {},
	string(cooking.ReasonMixedFood):      {},
	string(cooking.ReasonOccupied):       {},
	string(cooking.ReasonEmpty):          {},
	string(cooking.ReasonAlreadyChopped): {},
	string(cooking.ReasonUnsupported):    {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
