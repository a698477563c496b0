package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"botevents-api/internal/logger"
	"botevents-api/internal/metrics"
	"botevents-api/internal/model"
	"botevents-api/internal/notify"
	"botevents-api/internal/repository"
)

// ErrUserNotFound is returned by mutating ledger operations for an unknown user.
var ErrUserNotFound = errors.New("user not found")

// DepositRequest reports items a bot received from a player.
type DepositRequest struct {
	Username string                `json:"username" validate:"required,max=244"`
	Items    []model.DepositedItem `json:"pets" validate:"required,min=1,dive"`
	BotID    int64                 `json:"ownerBotId" validate:"required"`
}

// WithdrawRequest reports items a bot handed back to a player.
type WithdrawRequest struct {
	Username string   `json:"username" validate:"required,max=244"`
	BotID    int64    `json:"ownerBotId" validate:"required"`
	ItemIDs  []string `json:"itemIds" validate:"required,min=1,dive,required,max=644"`
}

// DeclineRequest reports that a player declined a pending withdrawal.
type DeclineRequest struct {
	Username string `json:"username" validate:"required,max=244"`
	BotID    int64  `json:"ownerBotId" validate:"required"`
}

// QueryResult lists the items claimed for withdrawal.
// Found is false only when the user does not exist.
type QueryResult struct {
	Found bool
	Items []model.InventoryItem
}

// DepositResult summarises a deposit.
type DepositResult struct {
	Success      bool   `json:"success"`
	ItemsCreated int64  `json:"petsCreated"`
	Processed    int    `json:"processed"`
	Dropped      int    `json:"dropped"`
	Message      string `json:"message,omitempty"`
}

// WithdrawnItem is one item removed by a withdrawal.
type WithdrawnItem struct {
	ID           int64         `json:"id"`
	ItemInGameID string        `json:"item_in_game_id"`
	Name         string        `json:"name"`
	Variant      model.Variant `json:"variant"`
}

// WithdrawResult summarises a withdrawal.
type WithdrawResult struct {
	Requested int             `json:"requested"`
	Deleted   int             `json:"deleted"`
	Items     []WithdrawnItem `json:"items"`
}

// DeclineResult reports how many claims were released.
type DeclineResult struct {
	Updated int64 `json:"count"`
}

// NoValidItemsMessage is returned when no deposited item matched the catalog.
const NoValidItemsMessage = "No valid items found in deposit"

// LedgerService reconciles bot-reported trades against the inventory store.
type LedgerService struct {
	store    repository.InventoryStore
	notifier notify.Notifier
	catalog  *catalogCache
}

// LedgerOptions configures a LedgerService.
type LedgerOptions struct {
	CatalogCacheSize int
	CatalogCacheTTL  time.Duration
}

// NewLedgerService creates a ledger over store. A nil notifier disables notifications.
func NewLedgerService(store repository.InventoryStore, notifier notify.Notifier, opts LedgerOptions) *LedgerService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &LedgerService{
		store:    store,
		notifier: notifier,
		catalog:  newCatalogCache(opts.CatalogCacheSize, opts.CatalogCacheTTL),
	}
}

func (s *LedgerService) findUser(ctx context.Context, username string) (*model.User, error) {
	user, err := s.store.FindUser(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Query claims the user's WITHDRAWING items held by an eligible bot.
func (s *LedgerService) Query(ctx context.Context, username string, botID int64) (QueryResult, error) {
	log := logger.FromContext(ctx)

	user, err := s.findUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		log.Warn("[Ledger] User not found", "username", username)
		return QueryResult{Found: false}, nil
	}
	if err != nil {
		return QueryResult{}, err
	}

	items, err := s.store.ClaimWithdrawingItems(ctx, user.Username, botID)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to claim withdrawing items: %w", err)
	}

	log.Info("[Ledger] Retrieved withdrawing items", "username", user.Username, "bot_id", botID, "count", len(items))
	return QueryResult{Found: true, Items: items}, nil
}

// Deposit records received items. Items whose in-game name is not in the
// catalog are dropped; natural-key duplicates are skipped by the store.
func (s *LedgerService) Deposit(ctx context.Context, req DepositRequest) (DepositResult, error) {
	log := logger.FromContext(ctx)

	user, err := s.findUser(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Error("[Ledger] Deposit failed - user not found", "username", req.Username, "bot_id", req.BotID)
		}
		return DepositResult{}, err
	}

	catalog, err := s.resolveCatalog(ctx, req.Items)
	if err != nil {
		return DepositResult{}, err
	}

	items := make([]model.InventoryItem, 0, len(req.Items))
	notice := notify.Notice{Kind: notify.KindDeposit, BotID: req.BotID, Username: req.Username, At: time.Now()}
	for _, d := range req.Items {
		entry, ok := catalog[d.InGameName]
		if !ok {
			log.Error("[Ledger] Catalog entry not found during deposit",
				"name", d.Name, "in_game_name", d.InGameName, "item_in_game_id", d.ItemInGameID,
				"bot_id", req.BotID, "username", req.Username)
			continue
		}

		variant := d.Variant()
		value := entry.Values.Lookup(variant)
		items = append(items, model.InventoryItem{
			Username:     user.Username,
			BotID:        req.BotID,
			CatalogID:    entry.ID,
			CatalogName:  entry.Name,
			InGameName:   entry.InGameName,
			Value:        value,
			Variant:      variant,
			State:        model.ItemStateIdle,
			TradeStatus:  model.TradeStatusNone,
			ItemInGameID: d.ItemInGameID,
		})
		notice.Items = append(notice.Items, notify.Item{Name: entry.Name, Value: value, Variant: variant})
	}

	result := DepositResult{Processed: len(items), Dropped: len(req.Items) - len(items)}
	if len(items) == 0 {
		result.Message = NoValidItemsMessage
		return result, nil
	}

	created, err := s.store.InsertItems(ctx, items)
	if err != nil {
		log.Error("[Ledger] Failed to save deposited items", "username", req.Username, "error", err)
		return DepositResult{}, fmt.Errorf("failed to insert items: %w", err)
	}
	result.Success = true
	result.ItemsCreated = created

	metrics.ItemsDeposited.Add(float64(created))
	s.notifier.Notify(ctx, notice)

	log.Info("[Ledger] Deposit successful",
		"username", user.Username, "bot_id", req.BotID, "created", created, "processed", len(items), "dropped", result.Dropped)
	return result, nil
}

// resolveCatalog maps every distinct in-game name to its entry, consulting
// the cache first and the store once for all misses.
func (s *LedgerService) resolveCatalog(ctx context.Context, items []model.DepositedItem) (map[string]model.CatalogEntry, error) {
	resolved := make(map[string]model.CatalogEntry, len(items))
	var misses []string
	seen := make(map[string]struct{}, len(items))

	for _, it := range items {
		if _, dup := seen[it.InGameName]; dup {
			continue
		}
		seen[it.InGameName] = struct{}{}

		if e, ok := s.catalog.Get(it.InGameName); ok {
			resolved[it.InGameName] = e
			metrics.CatalogCacheLookups.WithLabelValues("hit").Inc()
			continue
		}
		misses = append(misses, it.InGameName)
		metrics.CatalogCacheLookups.WithLabelValues("miss").Inc()
	}

	if len(misses) == 0 {
		return resolved, nil
	}

	entries, err := s.store.FindCatalogEntries(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("failed to find catalog entries: %w", err)
	}
	for _, e := range entries {
		resolved[e.InGameName] = e
		s.catalog.Set(e)
	}
	return resolved, nil
}

// Withdraw removes the requested items that the user still owns on the bot.
// A partial match is logged, not returned as an error.
func (s *LedgerService) Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error) {
	log := logger.FromContext(ctx)

	user, err := s.findUser(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Error("[Ledger] Withdraw failed - user not found", "username", req.Username, "bot_id", req.BotID)
		}
		return WithdrawResult{}, err
	}

	deleted, err := s.store.DeleteOwnedItems(ctx, user.Username, req.BotID, req.ItemIDs)
	if err != nil {
		log.Error("[Ledger] Failed to process withdraw", "username", req.Username, "bot_id", req.BotID, "error", err)
		return WithdrawResult{}, fmt.Errorf("failed to delete items: %w", err)
	}

	if len(deleted) != len(req.ItemIDs) {
		log.Warn("[Ledger] Not all requested items were deleted during withdraw",
			"username", req.Username, "bot_id", req.BotID,
			"requested", len(req.ItemIDs), "deleted", len(deleted), "item_ids", req.ItemIDs)
	}

	result := WithdrawResult{
		Requested: len(req.ItemIDs),
		Deleted:   len(deleted),
		Items:     make([]WithdrawnItem, 0, len(deleted)),
	}
	notice := notify.Notice{Kind: notify.KindWithdrawal, BotID: req.BotID, Username: req.Username, At: time.Now()}
	for _, it := range deleted {
		result.Items = append(result.Items, WithdrawnItem{
			ID:           it.ID,
			ItemInGameID: it.ItemInGameID,
			Name:         it.CatalogName,
			Variant:      it.Variant,
		})
		notice.Items = append(notice.Items, notify.Item{Name: it.CatalogName, Value: it.Value, Variant: it.Variant})
	}

	metrics.ItemsWithdrawn.Add(float64(len(deleted)))
	s.notifier.Notify(ctx, notice)
	return result, nil
}

// DeclineWithdraw releases the claims on the user's WITHDRAWING items.
func (s *LedgerService) DeclineWithdraw(ctx context.Context, req DeclineRequest) (DeclineResult, error) {
	log := logger.FromContext(ctx)

	user, err := s.findUser(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Error("[Ledger] Withdraw decline failed - user not found", "username", req.Username)
		}
		return DeclineResult{}, err
	}

	n, err := s.store.ReleaseWithdrawClaims(ctx, user.Username, req.BotID)
	if err != nil {
		log.Error("[Ledger] Failed to process withdraw decline", "username", req.Username, "error", err)
		return DeclineResult{}, fmt.Errorf("failed to release claims: %w", err)
	}

	log.Info("[Ledger] Withdraw decline processed", "username", user.Username, "items_updated", n)
	return DeclineResult{Updated: n}, nil
}

// Stats returns store statistics plus the catalog cache size.
func (s *LedgerService) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	stats["catalog_cache_entries"] = s.catalog.Len()
	return stats, nil
}
