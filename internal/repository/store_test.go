package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botevents-api/internal/model"
)

const (
	eligibleBot int64 = 100
	bannedBot   int64 = 200
)

func testFixtures() Fixtures {
	var dragon model.ValueTable
	dragon.Set(model.TierNone, model.PotionNone, 1)
	dragon.Set(model.TierMega, model.PotionFlyRide, 50)

	item := func(id string, bot int64, state model.ItemState, trade model.TradeStatus) model.InventoryItem {
		return model.InventoryItem{
			Username:     "Alice",
			BotID:        bot,
			InGameName:   "dragon_egg",
			Value:        1,
			State:        state,
			TradeStatus:  trade,
			ItemInGameID: id,
		}
	}

	return Fixtures{
		Bots: []model.Bot{
			{ID: eligibleBot, Active: true, CanJoin: true},
			{ID: bannedBot, Banned: true, Active: true, CanJoin: true},
		},
		Users:   []model.User{{Username: "Alice"}},
		Catalog: []model.CatalogEntry{{Name: "Dragon", InGameName: "dragon_egg", Values: dragon}},
		Items: []model.InventoryItem{
			item("a1", eligibleBot, model.ItemStateWithdrawing, model.TradeStatusNone),
			item("a2", eligibleBot, model.ItemStateIdle, model.TradeStatusNone),
			item("a3", eligibleBot, model.ItemStateWithdrawing, model.TradeStatusWithdrawAccepted),
			item("b1", bannedBot, model.ItemStateWithdrawing, model.TradeStatusNone),
		},
	}
}

func itemIDs(items []model.InventoryItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ItemInGameID
	}
	return ids
}

// exerciseStore runs the shared behavioural checks against a seeded store.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	t.Run("FindUser is case-insensitive", func(t *testing.T) {
		u, err := s.FindUser(ctx, "aLiCe")
		require.NoError(t, err)
		assert.Equal(t, "Alice", u.Username)

		_, err = s.FindUser(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Claim marks only unclaimed items of eligible bots", func(t *testing.T) {
		items, err := s.ClaimWithdrawingItems(ctx, "Alice", eligibleBot)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "a1", items[0].ItemInGameID)
		assert.Equal(t, model.TradeStatusWithdrawAccepted, items[0].TradeStatus)
		assert.Equal(t, "Dragon", items[0].CatalogName)

		again, err := s.ClaimWithdrawingItems(ctx, "Alice", eligibleBot)
		require.NoError(t, err)
		assert.Empty(t, again)

		banned, err := s.ClaimWithdrawingItems(ctx, "Alice", bannedBot)
		require.NoError(t, err)
		assert.Empty(t, banned)
	})

	t.Run("Release resets claims", func(t *testing.T) {
		n, err := s.ReleaseWithdrawClaims(ctx, "Alice", eligibleBot)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		items, err := s.ClaimWithdrawingItems(ctx, "Alice", eligibleBot)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a1", "a3"}, itemIDs(items))
	})

	var entry model.CatalogEntry
	t.Run("FindCatalogEntries resolves known names", func(t *testing.T) {
		entries, err := s.FindCatalogEntries(ctx, []string{"dragon_egg", "missing"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		entry = entries[0]
		assert.Equal(t, "Dragon", entry.Name)
		assert.Equal(t, 50.0, entry.Values.Lookup(model.NewVariant(true, false, true, true)))
		assert.Equal(t, 1.0, entry.Values.Lookup(model.Variant{}))
	})

	t.Run("InsertItems skips natural-key duplicates", func(t *testing.T) {
		newItem := func(id string) model.InventoryItem {
			return model.InventoryItem{
				Username:     "Alice",
				BotID:        eligibleBot,
				CatalogID:    entry.ID,
				Value:        50,
				Variant:      model.NewVariant(true, false, true, true),
				State:        model.ItemStateIdle,
				TradeStatus:  model.TradeStatusNone,
				ItemInGameID: id,
			}
		}
		created, err := s.InsertItems(ctx, []model.InventoryItem{newItem("n1"), newItem("n2"), newItem("a2")})
		require.NoError(t, err)
		assert.Equal(t, int64(2), created)
	})

	t.Run("DeleteOwnedItems removes only the owned subset", func(t *testing.T) {
		deleted, err := s.DeleteOwnedItems(ctx, "Alice", eligibleBot, []string{"n1", "b1", "zzz"})
		require.NoError(t, err)
		require.Len(t, deleted, 1)
		assert.Equal(t, "n1", deleted[0].ItemInGameID)
		assert.Equal(t, "M,R,F", deleted[0].Variant.String())

		again, err := s.DeleteOwnedItems(ctx, "Alice", eligibleBot, []string{"n1"})
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("GetStats counts rows", func(t *testing.T) {
		stats, err := s.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats["total_users"])
		assert.Equal(t, int64(5), stats["total_items"])
	})
}
