package repository

import (
	"fmt"

	"botevents-api/internal/model"
)

// valueColumns lists the value table columns in [Tier][Potion] order.
const valueColumns = `rvalue_nopotion, rvalue_ride, rvalue_fly, rvalue_flyride,
	nvalue_nopotion, nvalue_ride, nvalue_fly, nvalue_flyride,
	mvalue_nopotion, mvalue_ride, mvalue_fly, mvalue_flyride`

const catalogColumns = `id, name, in_game_name, ` + valueColumns

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogEntry(row rowScanner) (model.CatalogEntry, error) {
	var e model.CatalogEntry
	dest := []any{&e.ID, &e.Name, &e.InGameName}
	for tier := range e.Values {
		for potion := range e.Values[tier] {
			dest = append(dest, &e.Values[tier][potion])
		}
	}
	if err := row.Scan(dest...); err != nil {
		return e, fmt.Errorf("failed to scan catalog entry: %w", err)
	}
	return e, nil
}

func valueArgs(t model.ValueTable) []any {
	args := make([]any, 0, 12)
	for tier := range t {
		for potion := range t[tier] {
			args = append(args, t[tier][potion])
		}
	}
	return args
}

// Fixtures is a set of reference and inventory rows used to seed a store
// for development and tests. Items reference catalog entries by InGameName.
type Fixtures struct {
	Bots    []model.Bot
	Users   []model.User
	Catalog []model.CatalogEntry
	Items   []model.InventoryItem
}
