package cooking

import (
	"fmt"
	"math"
)

type ContainerKind string

const (
	PlasticContainer ContainerKind = "plastic_container"
	Plate            ContainerKind = "plate"
	LargePlate       ContainerKind = "large_plate"
)

var containerCapacity = map[ContainerKind]int{
	PlasticContainer: 200,
	Plate:            300,
	LargePlate:       500,
}

func (k ContainerKind) CapacityGrams() int { return containerCapacity[k] }

func ParseContainerKind(s string) (ContainerKind, error) {
	k := ContainerKind(s)
	if _, ok := containerCapacity[k]; !ok {
		return "", fmt.Errorf("unknown container kind: %q", s)
	}
	return k, nil
}

// Container is a portion of food carried away from a station.
type Container struct {
	Kind              ContainerKind `json:"kind"`
	FoodType          string        `json:"food_type,omitempty"`
	WeightGrams       int           `json:"weight_grams"`
	NutritionPer100g  float64       `json:"nutrition_per_100g"`
	SaturationPer100g float64       `json:"saturation_per_100g"`
}

func NewContainer(kind ContainerKind) Container { return Container{Kind: kind} }

func (c Container) IsEmpty() bool { return c.WeightGrams <= 0 || c.FoodType == "" }

func (c Container) Remaining() int {
	r := c.Kind.CapacityGrams() - c.WeightGrams
	if r < 0 {
		return 0
	}
	return r
}

// Fill moves as much food as fits from the store into c. Containers never
// mix dishes.
func (c *Container) Fill(store *FoodStore) (int, Reason) {
	if !store.HasFood() {
		return 0, ReasonNoFood
	}
	food := store.Food()
	if !c.IsEmpty() && c.FoodType != food.FoodType {
		return 0, ReasonMixedFood
	}
	room := c.Remaining()
	if room <= 0 {
		return 0, ReasonContainerFull
	}
	taken := store.TakeFood(room)
	if c.IsEmpty() {
		c.FoodType = food.FoodType
		c.NutritionPer100g = food.NutritionPer100g
		c.SaturationPer100g = food.SaturationPer100g
		c.WeightGrams = 0
	}
	c.WeightGrams += taken
	return taken, OK
}

// Meal is what eating a container gives the player.
type Meal struct {
	Hunger     int
	Saturation float64
}

// Eat empties the container.
func (c *Container) Eat() (Meal, bool) {
	if c.IsEmpty() {
		return Meal{}, false
	}
	w := float64(c.WeightGrams)
	m := Meal{
		Hunger:     int(math.Round(c.NutritionPer100g * w / 100.0)),
		Saturation: c.SaturationPer100g * w / 100.0,
	}
	*c = Container{Kind: c.Kind}
	return m, true
}
