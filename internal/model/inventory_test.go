package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValues() ValueTable {
	var t ValueTable
	t.Set(TierNone, PotionNone, 10)
	t.Set(TierNone, PotionFlyRide, 40)
	t.Set(TierNeon, PotionFly, 200)
	t.Set(TierMega, PotionFlyRide, 500)
	t.Set(TierMega, PotionRide, 300)
	return t
}

func TestValueTable_Lookup(t *testing.T) {
	values := testValues()

	tests := []struct {
		name    string
		variant Variant
		want    float64
	}{
		{"mega fly ride", NewVariant(true, false, true, true), 500},
		{"neon fly", NewVariant(false, true, true, false), 200},
		{"no flags", NewVariant(false, false, false, false), 10},
		{"plain fly ride", NewVariant(false, false, true, true), 40},
		{"mega wins over neon", NewVariant(true, true, false, true), 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, values.Lookup(tt.variant))
		})
	}
}

func TestPotionOf(t *testing.T) {
	assert.Equal(t, PotionNone, PotionOf(0))
	assert.Equal(t, PotionRide, PotionOf(Rideable))
	assert.Equal(t, PotionFly, PotionOf(Flyable))
	assert.Equal(t, PotionFlyRide, PotionOf(Flyable|Rideable))
}

func TestVariant_StorageForm(t *testing.T) {
	v := NewVariant(true, false, true, true)
	assert.Equal(t, "M,R,F", v.String())
	assert.Equal(t, v, ParseVariant("M,R,F"))
	assert.Equal(t, Variant{}, ParseVariant(""))
	assert.Equal(t, TierMega, ParseVariant("N, M").Tier)
}

func TestVariant_JSON(t *testing.T) {
	raw, err := json.Marshal(NewVariant(false, true, true, false))
	require.NoError(t, err)
	assert.JSONEq(t, `["N","F"]`, string(raw))

	var fromList, fromString Variant
	require.NoError(t, json.Unmarshal([]byte(`["N","F"]`), &fromList))
	require.NoError(t, json.Unmarshal([]byte(`"N,F"`), &fromString))
	assert.Equal(t, fromList, fromString)
	assert.Equal(t, TierNeon, fromList.Tier)
	assert.True(t, fromList.Capabilities.Has(Flyable))
}

func TestDepositedItem_Variant(t *testing.T) {
	d := DepositedItem{IsMega: true, IsNeon: true, IsRideable: true}
	v := d.Variant()
	assert.Equal(t, TierMega, v.Tier)
	assert.Equal(t, Rideable, v.Capabilities)
}
