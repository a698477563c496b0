package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ItemState is the lifecycle state of an inventory item.
type ItemState string

const (
	ItemStateIdle        ItemState = "IDLE"
	ItemStateWithdrawing ItemState = "WITHDRAWING"
)

// TradeStatus tracks an in-flight withdrawal claim, separate from ItemState.
type TradeStatus string

const (
	TradeStatusNone             TradeStatus = "NONE"
	TradeStatusWithdrawAccepted TradeStatus = "WITHDRAW_ACCEPTED"
)

// InventoryItem represents a single deposited item held by a bot for a user.
type InventoryItem struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	BotID        int64       `json:"owner_bot_id"`
	CatalogID    int64       `json:"catalog_id"`
	CatalogName  string      `json:"name,omitempty"`
	InGameName   string      `json:"in_game_name,omitempty"`
	Value        float64     `json:"value"`
	Variant      Variant     `json:"variant"`
	State        ItemState   `json:"state"`
	TradeStatus  TradeStatus `json:"trade_status"`
	ItemInGameID string      `json:"item_in_game_id"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// DepositedItem is one item reported by a bot as received from a player.
type DepositedItem struct {
	Name         string `json:"name" validate:"required,max=244"`
	InGameName   string `json:"inGameName" validate:"required,max=244"`
	ItemInGameID string `json:"petInGameId" validate:"required,max=644"`
	IsNeon       bool   `json:"is_neon"`
	IsMega       bool   `json:"is_mega"`
	IsFlyable    bool   `json:"is_flyable"`
	IsRideable   bool   `json:"is_rideable"`
}

// Variant returns the normalized variant of the reported flags.
func (d DepositedItem) Variant() Variant {
	return NewVariant(d.IsMega, d.IsNeon, d.IsFlyable, d.IsRideable)
}

// Tier is the mutually exclusive potion tier of an item.
type Tier int

const (
	TierNone Tier = iota
	TierNeon
	TierMega
)

// String returns the tier's storage letter.
func (t Tier) String() string {
	switch t {
	case TierMega:
		return "M"
	case TierNeon:
		return "N"
	default:
		return ""
	}
}

// Capabilities is a set of orthogonal item abilities.
type Capabilities uint8

const (
	Flyable Capabilities = 1 << iota
	Rideable
)

// Has reports whether all capabilities in c are set.
func (c Capabilities) Has(o Capabilities) bool {
	return c&o == o
}

// Variant is a tier crossed with a capability set.
type Variant struct {
	Tier         Tier
	Capabilities Capabilities
}

// NewVariant builds a Variant from raw flags. Mega takes precedence over Neon.
func NewVariant(mega, neon, flyable, rideable bool) Variant {
	v := Variant{}
	switch {
	case mega:
		v.Tier = TierMega
	case neon:
		v.Tier = TierNeon
	}
	if flyable {
		v.Capabilities |= Flyable
	}
	if rideable {
		v.Capabilities |= Rideable
	}
	return v
}

// Letters returns the variant as stored letters, e.g. ["M", "R", "F"].
func (v Variant) Letters() []string {
	letters := make([]string, 0, 3)
	if t := v.Tier.String(); t != "" {
		letters = append(letters, t)
	}
	if v.Capabilities.Has(Rideable) {
		letters = append(letters, "R")
	}
	if v.Capabilities.Has(Flyable) {
		letters = append(letters, "F")
	}
	return letters
}

// String joins the variant letters with commas.
func (v Variant) String() string {
	return strings.Join(v.Letters(), ",")
}

// ParseVariant parses the comma-joined storage form produced by String.
func ParseVariant(s string) Variant {
	var mega, neon, fly, ride bool
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "M":
			mega = true
		case "N":
			neon = true
		case "F":
			fly = true
		case "R":
			ride = true
		}
	}
	return NewVariant(mega, neon, fly, ride)
}

// MarshalText encodes the variant in its storage form.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes the storage form.
func (v *Variant) UnmarshalText(b []byte) error {
	*v = ParseVariant(string(b))
	return nil
}

// MarshalJSON encodes the variant as its letter list.
func (v Variant) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Letters())
}

// UnmarshalJSON accepts either a letter list or the comma-joined form.
func (v *Variant) UnmarshalJSON(b []byte) error {
	var letters []string
	if err := json.Unmarshal(b, &letters); err == nil {
		*v = ParseVariant(strings.Join(letters, ","))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*v = ParseVariant(s)
	return nil
}
