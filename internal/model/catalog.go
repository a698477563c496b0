package model

// Potion is the capability column of the value table.
type Potion int

const (
	PotionNone Potion = iota
	PotionRide
	PotionFly
	PotionFlyRide
)

// PotionOf maps a capability set onto its value table column.
func PotionOf(c Capabilities) Potion {
	switch {
	case c.Has(Flyable | Rideable):
		return PotionFlyRide
	case c.Has(Flyable):
		return PotionFly
	case c.Has(Rideable):
		return PotionRide
	default:
		return PotionNone
	}
}

// ValueTable holds an item's value for every tier and potion combination.
// Indexed as [Tier][Potion].
type ValueTable [3][4]float64

// Lookup returns the value cell for the given variant.
func (t ValueTable) Lookup(v Variant) float64 {
	return t[v.Tier][PotionOf(v.Capabilities)]
}

// Set stores a single cell.
func (t *ValueTable) Set(tier Tier, p Potion, value float64) {
	t[tier][p] = value
}

// CatalogEntry is a reference item definition keyed by its in-game name.
type CatalogEntry struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	InGameName string     `json:"in_game_name"`
	Values     ValueTable `json:"-"`
}
