package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/browningluke/FruitTycoon/internal/store"
)

// Service is the game economy engine. It owns every mutation of player and
// trade state, keyed off an abstract record store; transports (HTTP, Discord)
// call into it with plain values and render its typed results.
type Service struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
	locks *playerLocks

	// idxMu serializes read-modify-write cycles on the shared player index;
	// per-player locks alone let two joins interleave and lose an entry.
	idxMu sync.Mutex

	lbMu   sync.Mutex
	lbRows []LeaderboardRow
	lbAt   time.Time
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store: st,
		log:   logger,
		now:   time.Now,
		locks: newPlayerLocks(),
	}
}

// Join registers a new player growing the given fruit. The fruit choice is
// permanent.
func (s *Service) Join(ctx context.Context, id string, fruit Kind) (*Player, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotAPlayer
	}
	fruit = Kind(strings.ToLower(string(fruit)))
	if !ValidFruit(fruit) {
		return nil, ErrInvalidFruit
	}

	unlock := s.locks.lock(id)
	defer unlock()
	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range index {
		if existing == id {
			return nil, ErrAlreadyJoined
		}
	}

	player := NewPlayer(id, fruit, s.now())
	if err := s.savePlayer(ctx, player); err != nil {
		return nil, err
	}
	index = append(index, id)
	if err := s.saveIndex(ctx, index); err != nil {
		// The index is the membership source of truth; without it the player
		// record is unreachable, so take it back out.
		if derr := s.store.Delete(ctx, store.PlayerKey(id)); derr != nil {
			s.log.Error("join rollback failed", "player", id, "err", derr)
		}
		return nil, err
	}

	s.log.Info("player joined", "player", id, "fruit", fruit)
	return player, nil
}

// Harvest collects the player's fruit if the cooldown has elapsed. Inside the
// cooldown it reports the remaining wait and mutates nothing, so repeated
// calls are free.
func (s *Service) Harvest(ctx context.Context, id string) (HarvestResult, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	player, err := s.loadPlayer(ctx, id)
	if err != nil {
		return HarvestResult{}, err
	}

	now := s.now().Unix()
	cooldown := int64(HarvestCooldown / time.Second)
	elapsed := now - player.LastHarvest
	if elapsed < cooldown {
		return HarvestResult{Ready: false, RemainingSeconds: cooldown - elapsed}, nil
	}

	yield := HarvestYield(player.Upgrades.Size, player.Upgrades.Multiplier)
	player.Credit(player.Fruit, yield)
	player.LastHarvest = now
	if err := s.savePlayer(ctx, player); err != nil {
		return HarvestResult{}, err
	}
	return HarvestResult{Ready: true, Yield: yield, Fruit: player.Fruit}, nil
}

// Upgrade buys the next level of a stat. Size and multiplier raise harvest
// yield; farm unlocks the next production recipe.
func (s *Service) Upgrade(ctx context.Context, id string, stat UpgradeKind) (UpgradeResult, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	player, err := s.loadPlayer(ctx, id)
	if err != nil {
		return UpgradeResult{}, err
	}

	var out UpgradeResult
	switch stat {
	case UpgradeSize, UpgradeMultiplier:
		level := player.Upgrades.Size
		if stat == UpgradeMultiplier {
			level = player.Upgrades.Multiplier
		}
		cost := UpgradeCost(stat, level)
		if player.Money < cost {
			return UpgradeResult{}, ErrInsufficientFunds
		}
		player.Money -= cost
		level++
		if stat == UpgradeSize {
			player.Upgrades.Size = level
			out.Value = float64(SizeValue(level))
		} else {
			player.Upgrades.Multiplier = level
			out.Value = MultiplierValue(level)
		}
		out = UpgradeResult{
			Stat:     stat,
			Level:    level,
			Cost:     cost,
			NextCost: UpgradeCost(stat, level),
			Value:    out.Value,
			Money:    player.Money,
		}
	case UpgradeFarm:
		if player.FarmLevel >= MaxFarmLevel {
			return UpgradeResult{}, ErrMaxLevelReached
		}
		next := player.FarmLevel + 1
		cost := FarmUnlockCost(next)
		if player.Money < cost {
			return UpgradeResult{}, ErrInsufficientFunds
		}
		player.Money -= cost
		player.FarmLevel = next
		recipe, _ := RecipeForFarmLevel(next)
		player.Recipes = append(player.Recipes, recipe.Name)
		out = UpgradeResult{
			Stat:     stat,
			Level:    next,
			Cost:     cost,
			NextCost: FarmUnlockCost(next + 1),
			Recipe:   recipe.Name,
			Money:    player.Money,
		}
	default:
		return UpgradeResult{}, ErrAccessDenied
	}

	if err := s.savePlayer(ctx, player); err != nil {
		return UpgradeResult{}, err
	}
	return out, nil
}

// Produce debits the recipe inputs and opens a durable production ticket that
// pays out once its refine time has passed. A quantity of zero or less means
// "as many as the inventory allows".
func (s *Service) Produce(ctx context.Context, id, recipeName string, selections []Kind, quantity int64) (ProductionTicket, error) {
	recipe, ok := RecipeByName(strings.ToLower(strings.TrimSpace(recipeName)))
	if !ok {
		return ProductionTicket{}, ErrAccessDenied
	}
	if len(selections) != recipe.FruitCount {
		return ProductionTicket{}, ErrInvalidFruit
	}
	seen := make(map[Kind]bool, len(selections))
	for _, f := range selections {
		if !ValidFruit(f) || seen[f] {
			return ProductionTicket{}, ErrInvalidFruit
		}
		seen[f] = true
	}

	unlock := s.locks.lock(id)
	defer unlock()

	player, err := s.loadPlayer(ctx, id)
	if err != nil {
		return ProductionTicket{}, err
	}
	if player.FarmLevel < recipe.FarmLevel {
		return ProductionTicket{}, ErrAccessDenied
	}

	maxAffordable := int64(-1)
	for _, f := range selections {
		n := player.Inventory[f] / recipe.UnitsPerFruit
		if maxAffordable < 0 || n < maxAffordable {
			maxAffordable = n
		}
	}
	if quantity <= 0 {
		quantity = maxAffordable
	}
	if maxAffordable == 0 || quantity > maxAffordable {
		return ProductionTicket{}, ErrInsufficientInventory
	}

	inputs := make([]Stake, 0, len(selections))
	for _, f := range selections {
		amount := recipe.UnitsPerFruit * quantity
		if err := player.Debit(f, amount); err != nil {
			return ProductionTicket{}, err
		}
		inputs = append(inputs, Stake{Kind: f, Quantity: amount})
	}

	ticket := NewProductionTicket(id, recipe, inputs, quantity, s.now())
	if err := s.saveTicket(ctx, ticket); err != nil {
		return ProductionTicket{}, err
	}
	if err := s.savePlayer(ctx, player); err != nil {
		if derr := s.store.Delete(ctx, store.TicketKey(ticket.ID)); derr != nil {
			s.log.Error("produce rollback failed", "ticket", ticket.ID, "err", derr)
		}
		return ProductionTicket{}, err
	}

	s.log.Info("production started", "player", id, "recipe", recipe.Name, "quantity", quantity)
	return ticket, nil
}

// Sell converts raw fruit into money at the fixed unit price.
func (s *Service) Sell(ctx context.Context, id string, kind Kind, quantity int64) (SaleResult, error) {
	kind = Kind(strings.ToLower(string(kind)))
	if !ValidFruit(kind) {
		return SaleResult{}, ErrInvalidFruit
	}
	if quantity <= 0 {
		return SaleResult{}, ErrInsufficientInventory
	}

	unlock := s.locks.lock(id)
	defer unlock()

	player, err := s.loadPlayer(ctx, id)
	if err != nil {
		return SaleResult{}, err
	}
	if err := player.Debit(kind, quantity); err != nil {
		return SaleResult{}, err
	}
	proceeds := quantity * FruitPrice(kind)
	player.Money += proceeds
	if err := s.savePlayer(ctx, player); err != nil {
		return SaleResult{}, err
	}
	return SaleResult{
		Kind:      kind,
		Quantity:  quantity,
		UnitPrice: FruitPrice(kind),
		Proceeds:  proceeds,
		Money:     player.Money,
	}, nil
}

// ProposeTrade escrows the offer from the sender and parks the trade in the
// first free slot on each side. The offer cannot be double-spent while the
// trade is pending.
func (s *Service) ProposeTrade(ctx context.Context, senderID, recipientID string, request, offer Stake) (TradeSummary, error) {
	if senderID == recipientID {
		return TradeSummary{}, ErrSelfTrade
	}
	request.Kind = Kind(strings.ToLower(string(request.Kind)))
	offer.Kind = Kind(strings.ToLower(string(offer.Kind)))
	if !ValidStakeKind(request.Kind) || !ValidStakeKind(offer.Kind) {
		return TradeSummary{}, ErrInvalidFruit
	}
	if request.Quantity <= 0 {
		return TradeSummary{}, ErrInsufficientRequest
	}
	if offer.Quantity <= 0 {
		return TradeSummary{}, ErrInsufficientOffer
	}

	unlock := s.locks.lockPair(senderID, recipientID)
	defer unlock()

	sender, err := s.loadPlayer(ctx, senderID)
	if err != nil {
		return TradeSummary{}, err
	}
	recipient, err := s.loadPlayer(ctx, recipientID)
	if err != nil {
		return TradeSummary{}, err
	}

	outSlot, ok := sender.FreeOutSlot()
	if !ok {
		return TradeSummary{}, ErrNoFreeOutboundSlot
	}
	inSlot, ok := recipient.FreeInSlot()
	if !ok {
		return TradeSummary{}, ErrNoFreeInboundSlot
	}
	if !sender.CanCover(offer) {
		return TradeSummary{}, ErrInsufficientOffer
	}

	origSender := sender.Clone()
	trade := NewTrade(senderID, recipientID, outSlot, inSlot, request, offer, s.now())
	if err := sender.Debit(offer.Kind, offer.Quantity); err != nil {
		return TradeSummary{}, err
	}
	senderCopy, recipientCopy := trade, trade
	sender.OutTrades[outSlot] = &senderCopy
	recipient.InTrades[inSlot] = &recipientCopy

	if err := s.savePair(ctx, sender, origSender, recipient); err != nil {
		return TradeSummary{}, err
	}

	s.log.Info("trade proposed", "trade", trade.ID, "sender", senderID, "recipient", recipientID)
	return trade, nil
}

// AcceptTrade settles the trade in the recipient's slot: offer to recipient,
// request to sender, both slots cleared. The request side is checked now, not
// at propose time, because the recipient's balance may have moved since.
func (s *Service) AcceptTrade(ctx context.Context, recipientID string, slot int) (SettlementResult, error) {
	pending, err := s.peekInbound(ctx, recipientID, slot)
	if err != nil {
		return SettlementResult{}, err
	}

	unlock := s.locks.lockPair(pending.Sender, recipientID)
	defer unlock()

	recipient, sender, trade, err := s.reloadTradePair(ctx, recipientID, slot, pending.ID)
	if err != nil {
		return SettlementResult{}, err
	}
	if !recipient.CanCover(trade.Request) {
		return SettlementResult{}, ErrInsufficientRequest
	}

	origSender := sender.Clone()
	recipient.Credit(trade.Offer.Kind, trade.Offer.Quantity)
	if err := recipient.Debit(trade.Request.Kind, trade.Request.Quantity); err != nil {
		return SettlementResult{}, err
	}
	sender.Credit(trade.Request.Kind, trade.Request.Quantity)
	clearOutSlot(sender, trade.ID, trade.SenderSlot)
	recipient.InTrades[slot] = nil

	if err := s.savePair(ctx, sender, origSender, recipient); err != nil {
		return SettlementResult{}, err
	}

	s.log.Info("trade accepted", "trade", trade.ID, "sender", trade.Sender, "recipient", recipientID)
	return SettlementResult{Trade: trade, RecipientMoney: recipient.Money}, nil
}

// DeclineTrade refunds the escrowed offer to the sender and clears both slots.
func (s *Service) DeclineTrade(ctx context.Context, recipientID string, slot int) (RefundResult, error) {
	pending, err := s.peekInbound(ctx, recipientID, slot)
	if err != nil {
		return RefundResult{}, err
	}

	unlock := s.locks.lockPair(pending.Sender, recipientID)
	defer unlock()

	recipient, sender, trade, err := s.reloadTradePair(ctx, recipientID, slot, pending.ID)
	if err != nil {
		return RefundResult{}, err
	}

	origSender := sender.Clone()
	sender.Credit(trade.Offer.Kind, trade.Offer.Quantity)
	clearOutSlot(sender, trade.ID, trade.SenderSlot)
	recipient.InTrades[slot] = nil

	if err := s.savePair(ctx, sender, origSender, recipient); err != nil {
		return RefundResult{}, err
	}

	s.log.Info("trade declined", "trade", trade.ID, "sender", trade.Sender, "recipient", recipientID)
	return RefundResult{Trade: trade, Refunded: trade.Offer}, nil
}

// Profile returns a read-only view of one player, including pending
// production tickets.
func (s *Service) Profile(ctx context.Context, id string) (ProfileView, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	player, err := s.loadPlayer(ctx, id)
	if err != nil {
		return ProfileView{}, err
	}
	tickets, err := s.ticketsFor(ctx, id)
	if err != nil {
		return ProfileView{}, err
	}

	cooldown := int64(HarvestCooldown / time.Second)
	readyIn := cooldown - (s.now().Unix() - player.LastHarvest)
	if readyIn < 0 {
		readyIn = 0
	}
	return ProfileView{
		ID:              player.ID,
		Fruit:           player.Fruit,
		Money:           player.Money,
		Inventory:       player.Inventory,
		LastHarvest:     player.LastHarvest,
		HarvestReadyIn:  readyIn,
		Upgrades:        player.Upgrades,
		HarvestPerCycle: HarvestYield(player.Upgrades.Size, player.Upgrades.Multiplier),
		FarmLevel:       player.FarmLevel,
		Recipes:         player.Recipes,
		InTrades:        player.InTrades,
		OutTrades:       player.OutTrades,
		PendingProduce:  tickets,
		JoinedAt:        player.JoinedAt,
	}, nil
}

// Leaderboard returns the cached top-N rows. On a cold cache it first tries
// the persisted snapshot, so a restart does not force a recompute; only a
// missing or day-old snapshot triggers one.
func (s *Service) Leaderboard(ctx context.Context, topN int) ([]LeaderboardRow, error) {
	if topN <= 0 {
		topN = 10
	}
	s.lbMu.Lock()
	fresh := s.lbRows != nil && s.now().Sub(s.lbAt) < 24*time.Hour
	rows := s.lbRows
	s.lbMu.Unlock()

	if !fresh {
		if rec, ok := s.loadLeaderboard(ctx); ok && s.now().Sub(time.Unix(rec.ComputedAt, 0)) < 24*time.Hour {
			rows = rec.Rows
			s.lbMu.Lock()
			s.lbRows = rec.Rows
			s.lbAt = time.Unix(rec.ComputedAt, 0)
			s.lbMu.Unlock()
		} else {
			var err error
			rows, err = s.SnapshotLeaderboard(ctx)
			if err != nil {
				return nil, err
			}
		}
	}
	if topN > len(rows) {
		topN = len(rows)
	}
	out := make([]LeaderboardRow, topN)
	copy(out, rows[:topN])
	return out, nil
}

type leaderboardRecord struct {
	Version    int              `json:"version"`
	Rows       []LeaderboardRow `json:"rows"`
	ComputedAt int64            `json:"computed_at"`
}

// loadLeaderboard reads the persisted snapshot; ok is false when it is
// missing or unreadable.
func (s *Service) loadLeaderboard(ctx context.Context) (leaderboardRecord, bool) {
	raw, err := s.store.Get(ctx, store.LeaderboardKey)
	if err != nil {
		return leaderboardRecord{}, false
	}
	var rec leaderboardRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Version != 1 {
		s.log.Warn("skipping corrupt leaderboard snapshot", "err", err)
		return leaderboardRecord{}, false
	}
	return rec, true
}

// SnapshotLeaderboard recomputes the full ranking, persists it and refreshes
// the in-memory cache. The daily scheduler drives this.
func (s *Service) SnapshotLeaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	type entry struct {
		id       string
		money    int64
		joinedAt int64
	}
	entries := make([]entry, 0, len(index))
	for _, id := range index {
		player, err := s.loadPlayer(ctx, id)
		if err != nil {
			// A missing or unreadable record must not sink the whole board.
			s.log.Warn("leaderboard skipping player", "player", id, "err", err)
			continue
		}
		entries = append(entries, entry{id: player.ID, money: player.Money, joinedAt: player.JoinedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].money != entries[j].money {
			return entries[i].money > entries[j].money
		}
		if entries[i].joinedAt != entries[j].joinedAt {
			return entries[i].joinedAt < entries[j].joinedAt
		}
		return entries[i].id < entries[j].id
	})

	rows := make([]LeaderboardRow, len(entries))
	for i, e := range entries {
		rows[i] = LeaderboardRow{Rank: i + 1, ID: e.id, Money: e.money}
	}

	now := s.now()
	raw, err := json.Marshal(leaderboardRecord{Version: 1, Rows: rows, ComputedAt: now.Unix()})
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, store.LeaderboardKey, raw); err != nil {
		return nil, s.storeErr(err)
	}

	s.lbMu.Lock()
	s.lbRows = rows
	s.lbAt = now
	s.lbMu.Unlock()

	s.log.Info("leaderboard snapshot", "players", len(rows))
	return rows, nil
}

// RemovePlayer deletes a player, their index entry and their production
// tickets. Pending trades with other players are unwound: inbound offers are
// refunded to their senders, outbound slots on counterparties cleared.
func (s *Service) RemovePlayer(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.lock(id)
	player, err := s.loadPlayer(ctx, id)
	if errors.Is(err, ErrNotAPlayer) {
		unlock()
		return false, nil
	}
	if err != nil {
		unlock()
		return false, err
	}

	s.idxMu.Lock()
	index, err := s.loadIndex(ctx)
	if err != nil {
		s.idxMu.Unlock()
		unlock()
		return false, err
	}
	kept := index[:0]
	for _, existing := range index {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if err := s.saveIndex(ctx, kept); err != nil {
		s.idxMu.Unlock()
		unlock()
		return false, err
	}
	s.idxMu.Unlock()
	if err := s.store.Delete(ctx, store.PlayerKey(id)); err != nil {
		unlock()
		return false, s.storeErr(err)
	}
	tickets, err := s.ticketsFor(ctx, id)
	if err == nil {
		for _, t := range tickets {
			if derr := s.store.Delete(ctx, store.TicketKey(t.ID)); derr != nil {
				s.log.Warn("ticket delete failed", "ticket", t.ID, "err", derr)
			}
		}
	}
	unlock()

	// The record is gone and the index pruned, so no new trades can form.
	// Unwind what was pending.
	for _, t := range player.InTrades {
		if t == nil {
			continue
		}
		s.unwindCounterparty(ctx, t.Sender, t.ID, t.Offer, true)
	}
	for _, t := range player.OutTrades {
		if t == nil {
			continue
		}
		s.unwindCounterparty(ctx, t.Recipient, t.ID, Stake{}, false)
	}

	s.log.Info("player removed", "player", id)
	return true, nil
}

// unwindCounterparty clears the slot a removed player's trade occupied on the
// other side, refunding the escrowed offer when the other side was the sender.
func (s *Service) unwindCounterparty(ctx context.Context, otherID, tradeID string, refund Stake, otherIsSender bool) {
	unlock := s.locks.lock(otherID)
	defer unlock()

	other, err := s.loadPlayer(ctx, otherID)
	if err != nil {
		s.log.Warn("trade unwind skipped", "player", otherID, "trade", tradeID, "err", err)
		return
	}
	if otherIsSender {
		clearOutSlot(other, tradeID, -1)
		other.Credit(refund.Kind, refund.Quantity)
	} else {
		clearInSlot(other, tradeID, -1)
	}
	if err := s.savePlayer(ctx, other); err != nil {
		s.log.Warn("trade unwind save failed", "player", otherID, "trade", tradeID, "err", err)
	}
}

// SettleDue settles every production ticket whose refine time has passed and
// returns how many were paid out.
func (s *Service) SettleDue(ctx context.Context) (int, error) {
	keys, err := s.store.List(ctx, store.TicketPrefix())
	if err != nil {
		return 0, s.storeErr(err)
	}

	now := s.now().Unix()
	settled := 0
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return settled, s.storeErr(err)
		}
		var ticket ProductionTicket
		if err := json.Unmarshal(raw, &ticket); err != nil || ticket.Version != ticketRecordVersion {
			s.log.Warn("skipping corrupt ticket", "key", key)
			continue
		}
		if ticket.ReadyAt > now {
			continue
		}
		if err := s.settleTicket(ctx, ticket); err != nil {
			s.log.Error("ticket settle failed", "ticket", ticket.ID, "err", err)
			continue
		}
		settled++
	}
	return settled, nil
}

func (s *Service) settleTicket(ctx context.Context, ticket ProductionTicket) error {
	unlock := s.locks.lock(ticket.PlayerID)
	defer unlock()

	player, err := s.loadPlayer(ctx, ticket.PlayerID)
	if errors.Is(err, ErrNotAPlayer) {
		// Owner removed mid-flight; the payout has nowhere to go.
		return s.store.Delete(ctx, store.TicketKey(ticket.ID))
	}
	if err != nil {
		return err
	}
	player.Money += ticket.Payout
	if err := s.savePlayer(ctx, player); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, store.TicketKey(ticket.ID)); err != nil {
		return s.storeErr(err)
	}
	s.log.Info("production settled", "player", ticket.PlayerID, "recipe", ticket.Recipe, "payout", ticket.Payout)
	return nil
}

// --- persistence helpers -------------------------------------------------

func (s *Service) storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (s *Service) loadPlayer(ctx context.Context, id string) (*Player, error) {
	raw, err := s.store.Get(ctx, store.PlayerKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotAPlayer
	}
	if err != nil {
		return nil, s.storeErr(err)
	}
	var player Player
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if player.Version != playerRecordVersion {
		return nil, fmt.Errorf("%w: unknown player record version %d", ErrCorruptRecord, player.Version)
	}
	return &player, nil
}

func (s *Service) savePlayer(ctx context.Context, player *Player) error {
	raw, err := json.Marshal(player)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, store.PlayerKey(player.ID), raw); err != nil {
		return s.storeErr(err)
	}
	return nil
}

// savePair persists both sides of a two-player operation. If the second write
// fails the first is restored from its pre-mutation copy, so no half of a
// transfer ever survives alone.
func (s *Service) savePair(ctx context.Context, first, firstOrig, second *Player) error {
	if err := s.savePlayer(ctx, first); err != nil {
		return err
	}
	if err := s.savePlayer(ctx, second); err != nil {
		if rerr := s.savePlayer(ctx, firstOrig); rerr != nil {
			s.log.Error("pair rollback failed", "player", firstOrig.ID, "err", rerr)
		}
		return err
	}
	return nil
}

type indexRecord struct {
	Players []string `json:"players"`
}

func (s *Service) loadIndex(ctx context.Context) ([]string, error) {
	raw, err := s.store.Get(ctx, store.IndexKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeErr(err)
	}
	var rec indexRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return rec.Players, nil
}

func (s *Service) saveIndex(ctx context.Context, players []string) error {
	raw, err := json.Marshal(indexRecord{Players: players})
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, store.IndexKey, raw); err != nil {
		return s.storeErr(err)
	}
	return nil
}

func (s *Service) saveTicket(ctx context.Context, ticket ProductionTicket) error {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, store.TicketKey(ticket.ID), raw); err != nil {
		return s.storeErr(err)
	}
	return nil
}

func (s *Service) ticketsFor(ctx context.Context, playerID string) ([]ProductionTicket, error) {
	keys, err := s.store.List(ctx, store.TicketPrefix())
	if err != nil {
		return nil, s.storeErr(err)
	}
	var out []ProductionTicket
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, s.storeErr(err)
		}
		var ticket ProductionTicket
		if err := json.Unmarshal(raw, &ticket); err != nil {
			s.log.Warn("skipping corrupt ticket", "key", key)
			continue
		}
		if ticket.PlayerID == playerID {
			out = append(out, ticket)
		}
	}
	return out, nil
}

// --- trade helpers -------------------------------------------------------

// peekInbound reads the recipient's slot without holding the pair lock, just
// to learn the sender id. Callers re-verify under the pair lock.
func (s *Service) peekInbound(ctx context.Context, recipientID string, slot int) (TradeSummary, error) {
	if slot < 0 || slot >= MaxTradeSlots {
		return TradeSummary{}, ErrInvalidSlot
	}
	recipient, err := s.loadPlayer(ctx, recipientID)
	if err != nil {
		return TradeSummary{}, err
	}
	pending := recipient.InTrades[slot]
	if pending == nil {
		return TradeSummary{}, ErrEmptySlot
	}
	return *pending, nil
}

// reloadTradePair loads both sides under the pair lock and confirms the slot
// still holds the trade seen at peek time.
func (s *Service) reloadTradePair(ctx context.Context, recipientID string, slot int, tradeID string) (recipient, sender *Player, trade TradeSummary, err error) {
	recipient, err = s.loadPlayer(ctx, recipientID)
	if err != nil {
		return nil, nil, TradeSummary{}, err
	}
	pending := recipient.InTrades[slot]
	if pending == nil || pending.ID != tradeID {
		return nil, nil, TradeSummary{}, ErrEmptySlot
	}
	sender, err = s.loadPlayer(ctx, pending.Sender)
	if err != nil {
		return nil, nil, TradeSummary{}, err
	}
	return recipient, sender, *pending, nil
}

func clearOutSlot(p *Player, tradeID string, hint int) {
	if hint >= 0 && hint < MaxTradeSlots && p.OutTrades[hint] != nil && p.OutTrades[hint].ID == tradeID {
		p.OutTrades[hint] = nil
		return
	}
	for i, t := range p.OutTrades {
		if t != nil && t.ID == tradeID {
			p.OutTrades[i] = nil
			return
		}
	}
}

func clearInSlot(p *Player, tradeID string, hint int) {
	if hint >= 0 && hint < MaxTradeSlots && p.InTrades[hint] != nil && p.InTrades[hint].ID == tradeID {
		p.InTrades[hint] = nil
		return
	}
	for i, t := range p.InTrades {
		if t != nil && t.ID == tradeID {
			p.InTrades[i] = nil
			return
		}
	}
}
