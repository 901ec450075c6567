package cooking

import "strings"

// HeatLevel is the setting of a heat-producing station.
type HeatLevel int

const (
	HeatOff HeatLevel = iota
	HeatLow
	HeatMedium
	HeatHigh
)

var heatMultipliers = [...]float64{
	HeatOff:    0.0,
	HeatLow:    0.5,
	HeatMedium: 1.0,
	HeatHigh:   1.5,
}

func (h HeatLevel) Multiplier() float64 {
	if h < HeatOff || h > HeatHigh {
		return 0
	}
	return heatMultipliers[h]
}

// Next cycles OFF -> LOW -> MEDIUM -> HIGH -> OFF.
func (h HeatLevel) Next() HeatLevel {
	if h < HeatOff || h >= HeatHigh {
		return HeatOff
	}
	return h + 1
}

func (h HeatLevel) String() string {
	switch h {
	case HeatLow:
		return "LOW"
	case HeatMedium:
		return "MEDIUM"
	case HeatHigh:
		return "HIGH"
	default:
		return "OFF"
	}
}

func ParseHeatLevel(s string) HeatLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return HeatLow
	case "MEDIUM":
		return HeatMedium
	case "HIGH":
		return HeatHigh
	default:
		return HeatOff
	}
}

// HeatProvider is a station that can heat whatever sits on top of it.
type HeatProvider interface {
	HeatLevel() HeatLevel
}

// HeatSource tells a station how much heat reaches it.
type HeatSource interface {
	RequiresHeat() bool
	HeatMultiplier() float64
}

// HasHeat is true for independent stations and for dependent stations whose
// provider is switched on.
func HasHeat(h HeatSource) bool {
	return !h.RequiresHeat() || h.HeatMultiplier() > 0
}

// Independent stations carry their own heat and always cook at 1.0.
type Independent struct{}

func (Independent) RequiresHeat() bool      { return false }
func (Independent) HeatMultiplier() float64 { return 1.0 }

// Dependent stations need a provider, e.g. a frying pan sitting on a heater.
// Lookup returns nil when nothing usable is there.
type Dependent struct {
	Lookup func() HeatProvider
}

func (Dependent) RequiresHeat() bool { return true }

func (d Dependent) HeatMultiplier() float64 {
	if d.Lookup == nil {
		return 0
	}
	p := d.Lookup()
	if p == nil {
		return 0
	}
	return p.HeatLevel().Multiplier()
}
