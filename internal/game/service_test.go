package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/browningluke/FruitTycoon/internal/store"
)

// slowStore delays every operation, widening the window in which interleaved
// read-modify-write cycles on a shared record can collide.
type slowStore struct {
	inner store.Store
	delay time.Duration
}

func (s *slowStore) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(s.delay)
	return s.inner.Get(ctx, key)
}

func (s *slowStore) Put(ctx context.Context, key string, value []byte) error {
	time.Sleep(s.delay)
	return s.inner.Put(ctx, key, value)
}

func (s *slowStore) Delete(ctx context.Context, key string) error {
	time.Sleep(s.delay)
	return s.inner.Delete(ctx, key)
}

func (s *slowStore) List(ctx context.Context, prefix string) ([]string, error) {
	time.Sleep(s.delay)
	return s.inner.List(ctx, prefix)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine returns a service over an in-memory store with a frozen clock.
// Tests advance time through the returned pointer.
func newTestEngine(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store.NewMemory(), testLogger())
	svc.now = func() time.Time { return now }
	return svc, &now
}

func mustJoin(t *testing.T, svc *Service, id string, fruit Kind) *Player {
	t.Helper()
	p, err := svc.Join(context.Background(), id, fruit)
	if err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
	return p
}

// fund sets a player's money directly, bypassing the economy.
func fund(t *testing.T, svc *Service, id string, money int64) {
	t.Helper()
	ctx := context.Background()
	p, err := svc.loadPlayer(ctx, id)
	if err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	p.Money = money
	if err := svc.savePlayer(ctx, p); err != nil {
		t.Fatalf("save %s: %v", id, err)
	}
}

func balance(t *testing.T, svc *Service, id string, kind Kind) int64 {
	t.Helper()
	p, err := svc.loadPlayer(context.Background(), id)
	if err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return p.BalanceOf(kind)
}

func TestJoin(t *testing.T) {
	svc, _ := newTestEngine(t)
	ctx := context.Background()

	p := mustJoin(t, svc, "alice", Apple)
	if p.Fruit != Apple || p.Money != 0 || p.FarmLevel != 0 {
		t.Fatalf("unexpected new player: %+v", p)
	}
	if p.Upgrades.Size != 1 || p.Upgrades.Multiplier != 1 {
		t.Fatalf("upgrades should start at 1: %+v", p.Upgrades)
	}

	if _, err := svc.Join(ctx, "alice", Banana); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("rejoin: got %v, want ErrAlreadyJoined", err)
	}
	if _, err := svc.Join(ctx, "bob", "mango"); !errors.Is(err, ErrInvalidFruit) {
		t.Fatalf("bad fruit: got %v, want ErrInvalidFruit", err)
	}
	if _, err := svc.Join(ctx, "  ", Apple); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("blank id: got %v, want ErrNotAPlayer", err)
	}

	// Fruit names are case-insensitive on the way in.
	p2 := mustJoin(t, svc, "carol", "GRAPE")
	if p2.Fruit != Grape {
		t.Fatalf("fruit not normalized: %q", p2.Fruit)
	}
}

func TestHarvestCooldown(t *testing.T) {
	svc, clock := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)

	// Joining starts the cooldown, so an immediate harvest just reports it.
	out, err := svc.Harvest(ctx, "alice")
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if out.Ready || out.RemainingSeconds != 7200 {
		t.Fatalf("expected full cooldown, got %+v", out)
	}
	if got := balance(t, svc, "alice", Apple); got != 0 {
		t.Fatalf("cooldown harvest must not credit fruit, inventory = %d", got)
	}

	*clock = clock.Add(HarvestCooldown)
	out, err = svc.Harvest(ctx, "alice")
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if !out.Ready || out.Yield != 1000 || out.Fruit != Apple {
		t.Fatalf("expected 1000 apples, got %+v", out)
	}
	if got := balance(t, svc, "alice", Apple); got != 1000 {
		t.Fatalf("inventory = %d, want 1000", got)
	}

	// The cooldown restarts from the successful harvest.
	out, err = svc.Harvest(ctx, "alice")
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if out.Ready || out.RemainingSeconds != 7200 {
		t.Fatalf("expected cooldown reset, got %+v", out)
	}

	if _, err := svc.Harvest(ctx, "ghost"); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("unknown player: got %v, want ErrNotAPlayer", err)
	}
}

func TestSell(t *testing.T) {
	svc, clock := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	*clock = clock.Add(HarvestCooldown)
	if _, err := svc.Harvest(ctx, "alice"); err != nil {
		t.Fatalf("harvest: %v", err)
	}

	out, err := svc.Sell(ctx, "alice", Apple, 300)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if out.Proceeds != 300 || out.Money != 300 {
		t.Fatalf("unexpected sale: %+v", out)
	}
	if got := balance(t, svc, "alice", Apple); got != 700 {
		t.Fatalf("inventory = %d, want 700", got)
	}

	if _, err := svc.Sell(ctx, "alice", Apple, 10000); !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("oversell: got %v, want ErrInsufficientInventory", err)
	}
	if _, err := svc.Sell(ctx, "alice", Apple, 0); !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("zero sell: got %v, want ErrInsufficientInventory", err)
	}
	if _, err := svc.Sell(ctx, "alice", Money, 1); !errors.Is(err, ErrInvalidFruit) {
		t.Fatalf("selling money: got %v, want ErrInvalidFruit", err)
	}
}

func TestUpgradeSizeAndMultiplier(t *testing.T) {
	svc, _ := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)

	if _, err := svc.Upgrade(ctx, "alice", UpgradeSize); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("broke upgrade: got %v, want ErrInsufficientFunds", err)
	}

	fund(t, svc, "alice", 11000)
	out, err := svc.Upgrade(ctx, "alice", UpgradeSize)
	if err != nil {
		t.Fatalf("upgrade size: %v", err)
	}
	if out.Level != 2 || out.Cost != 10000 || out.NextCost != 12500 || out.Money != 1000 {
		t.Fatalf("unexpected size upgrade: %+v", out)
	}
	if out.Value != 2500 {
		t.Fatalf("size value = %v, want 2500", out.Value)
	}

	out, err = svc.Upgrade(ctx, "alice", UpgradeMultiplier)
	if err != nil {
		t.Fatalf("upgrade multiplier: %v", err)
	}
	if out.Level != 2 || out.Cost != 1000 || out.Money != 0 {
		t.Fatalf("unexpected multiplier upgrade: %+v", out)
	}

	if _, err := svc.Upgrade(ctx, "alice", "luck"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("unknown stat: got %v, want ErrAccessDenied", err)
	}
}

func TestUpgradeFarm(t *testing.T) {
	svc, _ := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	fund(t, svc, "alice", 630000)

	wantRecipes := []string{"juice", "fine-juice", "smoothie", "fine-smoothie"}
	for level := 1; level <= MaxFarmLevel; level++ {
		out, err := svc.Upgrade(ctx, "alice", UpgradeFarm)
		if err != nil {
			t.Fatalf("farm upgrade to %d: %v", level, err)
		}
		if out.Level != level || out.Cost != FarmUnlockCost(level) {
			t.Fatalf("unexpected farm upgrade: %+v", out)
		}
		if out.Recipe != wantRecipes[level-1] {
			t.Fatalf("level %d unlocked %q, want %q", level, out.Recipe, wantRecipes[level-1])
		}
	}

	if _, err := svc.Upgrade(ctx, "alice", UpgradeFarm); !errors.Is(err, ErrMaxLevelReached) {
		t.Fatalf("beyond max: got %v, want ErrMaxLevelReached", err)
	}
	if got := balance(t, svc, "alice", Money); got != 0 {
		t.Fatalf("money = %d, want 0 after buying every level", got)
	}
}

func TestProduceAndSettle(t *testing.T) {
	svc, clock := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	fund(t, svc, "alice", 5000)
	if _, err := svc.Upgrade(ctx, "alice", UpgradeFarm); err != nil {
		t.Fatalf("unlock farm: %v", err)
	}
	*clock = clock.Add(HarvestCooldown)
	if _, err := svc.Harvest(ctx, "alice"); err != nil {
		t.Fatalf("harvest: %v", err)
	}

	// 1000 apples at 100 per unit caps production at 10 units.
	ticket, err := svc.Produce(ctx, "alice", "juice", []Kind{Apple}, 0)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if ticket.Quantity != 10 || ticket.Payout != 1500 {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
	if ticket.ReadyAt != clock.Add(10*time.Minute).Unix() {
		t.Fatalf("ready at %d, want %d", ticket.ReadyAt, clock.Add(10*time.Minute).Unix())
	}
	if got := balance(t, svc, "alice", Apple); got != 0 {
		t.Fatalf("inputs not debited, inventory = %d", got)
	}

	// Nothing is due yet.
	n, err := svc.SettleDue(ctx)
	if err != nil || n != 0 {
		t.Fatalf("early settle: n=%d err=%v", n, err)
	}
	if got := balance(t, svc, "alice", Money); got != 0 {
		t.Fatalf("money = %d before refine time", got)
	}

	*clock = clock.Add(10 * time.Minute)
	n, err = svc.SettleDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("settle: n=%d err=%v", n, err)
	}
	if got := balance(t, svc, "alice", Money); got != 1500 {
		t.Fatalf("money = %d, want 1500", got)
	}

	// The ticket is gone; settling again pays nothing.
	n, err = svc.SettleDue(ctx)
	if err != nil || n != 0 {
		t.Fatalf("resettle: n=%d err=%v", n, err)
	}
}

func TestProduceValidation(t *testing.T) {
	svc, clock := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)

	if _, err := svc.Produce(ctx, "alice", "wine", []Kind{Apple}, 1); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("unknown recipe: got %v, want ErrAccessDenied", err)
	}
	if _, err := svc.Produce(ctx, "alice", "juice", []Kind{Apple, Banana}, 1); !errors.Is(err, ErrInvalidFruit) {
		t.Fatalf("wrong selection count: got %v, want ErrInvalidFruit", err)
	}
	if _, err := svc.Produce(ctx, "alice", "smoothie", []Kind{Apple, Apple, Apple}, 1); !errors.Is(err, ErrInvalidFruit) {
		t.Fatalf("duplicate selections: got %v, want ErrInvalidFruit", err)
	}
	// Juice is gated behind farm level 1.
	if _, err := svc.Produce(ctx, "alice", "juice", []Kind{Apple}, 1); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("locked recipe: got %v, want ErrAccessDenied", err)
	}

	fund(t, svc, "alice", 5000)
	if _, err := svc.Upgrade(ctx, "alice", UpgradeFarm); err != nil {
		t.Fatalf("unlock farm: %v", err)
	}
	if _, err := svc.Produce(ctx, "alice", "juice", []Kind{Apple}, 1); !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("empty inventory: got %v, want ErrInsufficientInventory", err)
	}

	*clock = clock.Add(HarvestCooldown)
	if _, err := svc.Harvest(ctx, "alice"); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if _, err := svc.Produce(ctx, "alice", "juice", []Kind{Apple}, 11); !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("over max: got %v, want ErrInsufficientInventory", err)
	}
}

func TestTicketsSurviveRestart(t *testing.T) {
	records := store.NewMemory()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	svc := NewService(records, testLogger())
	svc.now = func() time.Time { return now }
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	fund(t, svc, "alice", 5000)
	if _, err := svc.Upgrade(ctx, "alice", UpgradeFarm); err != nil {
		t.Fatalf("unlock farm: %v", err)
	}
	now = now.Add(HarvestCooldown)
	if _, err := svc.Harvest(ctx, "alice"); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if _, err := svc.Produce(ctx, "alice", "juice", []Kind{Apple}, 10); err != nil {
		t.Fatalf("produce: %v", err)
	}

	// A fresh service over the same store stands in for a restarted process
	// whose downtime outlasted the refine time.
	now = now.Add(2 * time.Hour)
	restarted := NewService(records, testLogger())
	restarted.now = func() time.Time { return now }
	n, err := restarted.SettleDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("settle after restart: n=%d err=%v", n, err)
	}
	if got := balance(t, restarted, "alice", Money); got != 1500 {
		t.Fatalf("money = %d, want 1500", got)
	}
}

func TestTradeLifecycleAccept(t *testing.T) {
	svc, clock := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	mustJoin(t, svc, "bob", Banana)
	*clock = clock.Add(HarvestCooldown)
	if _, err := svc.Harvest(ctx, "alice"); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	fund(t, svc, "bob", 5000)

	trade, err := svc.ProposeTrade(ctx, "alice", "bob",
		Stake{Kind: Money, Quantity: 2000}, Stake{Kind: Apple, Quantity: 500})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if trade.SenderSlot != 0 || trade.RecipientSlot != 0 {
		t.Fatalf("expected first slots, got %+v", trade)
	}
	// The offer is escrowed immediately and cannot be spent twice.
	if got := balance(t, svc, "alice", Apple); got != 500 {
		t.Fatalf("escrow not taken, alice apples = %d", got)
	}
	if _, err := svc.Sell(ctx, "alice", Apple, 600); !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("spending escrowed fruit: got %v, want ErrInsufficientInventory", err)
	}

	out, err := svc.AcceptTrade(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if out.Trade.ID != trade.ID {
		t.Fatalf("settled trade %s, want %s", out.Trade.ID, trade.ID)
	}
	if got := balance(t, svc, "alice", Money); got != 2000 {
		t.Fatalf("alice money = %d, want 2000", got)
	}
	if got := balance(t, svc, "bob", Money); got != 3000 {
		t.Fatalf("bob money = %d, want 3000", got)
	}
	if got := balance(t, svc, "bob", Apple); got != 500 {
		t.Fatalf("bob apples = %d, want 500", got)
	}
	// Totals are conserved across the settlement.
	total := balance(t, svc, "alice", Apple) + balance(t, svc, "bob", Apple)
	if total != 1000 {
		t.Fatalf("apples not conserved: %d", total)
	}

	// Both slots are free again.
	alice, _ := svc.loadPlayer(ctx, "alice")
	bob, _ := svc.loadPlayer(ctx, "bob")
	if alice.OutTrades[0] != nil || bob.InTrades[0] != nil {
		t.Fatal("trade slots not cleared after settlement")
	}
}

func TestTradeDeclineRefunds(t *testing.T) {
	svc, clock := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	mustJoin(t, svc, "bob", Banana)
	*clock = clock.Add(HarvestCooldown)
	if _, err := svc.Harvest(ctx, "alice"); err != nil {
		t.Fatalf("harvest: %v", err)
	}

	if _, err := svc.ProposeTrade(ctx, "alice", "bob",
		Stake{Kind: Money, Quantity: 100}, Stake{Kind: Apple, Quantity: 400}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	out, err := svc.DeclineTrade(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if out.Refunded.Kind != Apple || out.Refunded.Quantity != 400 {
		t.Fatalf("unexpected refund: %+v", out.Refunded)
	}
	if got := balance(t, svc, "alice", Apple); got != 1000 {
		t.Fatalf("refund not applied, alice apples = %d", got)
	}
	if got := balance(t, svc, "bob", Apple); got != 0 {
		t.Fatalf("bob should get nothing, apples = %d", got)
	}
}

func TestTradeValidation(t *testing.T) {
	svc, _ := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	mustJoin(t, svc, "bob", Banana)

	cases := []struct {
		name      string
		recipient string
		request   Stake
		offer     Stake
		want      error
	}{
		{"self trade", "alice", Stake{Money, 1}, Stake{Money, 1}, ErrSelfTrade},
		{"bad request kind", "bob", Stake{"gem", 1}, Stake{Money, 1}, ErrInvalidFruit},
		{"zero request", "bob", Stake{Money, 0}, Stake{Money, 1}, ErrInsufficientRequest},
		{"zero offer", "bob", Stake{Money, 1}, Stake{Money, 0}, ErrInsufficientOffer},
		{"uncovered offer", "bob", Stake{Money, 1}, Stake{Apple, 10}, ErrInsufficientOffer},
		{"unknown recipient", "ghost", Stake{Money, 1}, Stake{Money, 1}, ErrNotAPlayer},
	}
	for _, tc := range cases {
		_, err := svc.ProposeTrade(ctx, "alice", tc.recipient, tc.request, tc.offer)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	if _, err := svc.AcceptTrade(ctx, "bob", -1); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("negative slot: got %v, want ErrInvalidSlot", err)
	}
	if _, err := svc.AcceptTrade(ctx, "bob", MaxTradeSlots); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("slot out of range: got %v, want ErrInvalidSlot", err)
	}
	if _, err := svc.AcceptTrade(ctx, "bob", 0); !errors.Is(err, ErrEmptySlot) {
		t.Fatalf("empty slot: got %v, want ErrEmptySlot", err)
	}
}

func TestTradeSlotExhaustion(t *testing.T) {
	svc, _ := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	mustJoin(t, svc, "bob", Banana)
	fund(t, svc, "alice", 1000)

	for i := 0; i < MaxTradeSlots; i++ {
		trade, err := svc.ProposeTrade(ctx, "alice", "bob",
			Stake{Kind: Money, Quantity: 1}, Stake{Kind: Money, Quantity: 1})
		if err != nil {
			t.Fatalf("propose %d: %v", i, err)
		}
		if trade.SenderSlot != i || trade.RecipientSlot != i {
			t.Fatalf("propose %d landed in slots %d/%d", i, trade.SenderSlot, trade.RecipientSlot)
		}
	}
	if _, err := svc.ProposeTrade(ctx, "alice", "bob",
		Stake{Kind: Money, Quantity: 1}, Stake{Kind: Money, Quantity: 1}); !errors.Is(err, ErrNoFreeOutboundSlot) {
		t.Fatalf("fourth outbound: got %v, want ErrNoFreeOutboundSlot", err)
	}

	// Bob's inbound side is also full now, even for a fresh sender.
	mustJoin(t, svc, "carol", Grape)
	fund(t, svc, "carol", 100)
	if _, err := svc.ProposeTrade(ctx, "carol", "bob",
		Stake{Kind: Money, Quantity: 1}, Stake{Kind: Money, Quantity: 1}); !errors.Is(err, ErrNoFreeInboundSlot) {
		t.Fatalf("inbound full: got %v, want ErrNoFreeInboundSlot", err)
	}

	// Declining one frees the lowest slot, and the next proposal reuses it.
	if _, err := svc.DeclineTrade(ctx, "bob", 1); err != nil {
		t.Fatalf("decline: %v", err)
	}
	trade, err := svc.ProposeTrade(ctx, "carol", "bob",
		Stake{Kind: Money, Quantity: 1}, Stake{Kind: Money, Quantity: 1})
	if err != nil {
		t.Fatalf("propose after free: %v", err)
	}
	if trade.RecipientSlot != 1 {
		t.Fatalf("expected freed slot 1, got %d", trade.RecipientSlot)
	}
}

func TestAcceptRequiresCoverage(t *testing.T) {
	svc, _ := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	mustJoin(t, svc, "bob", Banana)
	fund(t, svc, "alice", 500)

	if _, err := svc.ProposeTrade(ctx, "alice", "bob",
		Stake{Kind: Money, Quantity: 2000}, Stake{Kind: Money, Quantity: 500}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := svc.AcceptTrade(ctx, "bob", 0); !errors.Is(err, ErrInsufficientRequest) {
		t.Fatalf("accept without funds: got %v, want ErrInsufficientRequest", err)
	}

	// The trade survives the failed accept and settles once bob can pay.
	fund(t, svc, "bob", 2000)
	if _, err := svc.AcceptTrade(ctx, "bob", 0); err != nil {
		t.Fatalf("accept after funding: %v", err)
	}
	if got := balance(t, svc, "bob", Money); got != 500 {
		t.Fatalf("bob money = %d, want 500", got)
	}
	if got := balance(t, svc, "alice", Money); got != 2000 {
		t.Fatalf("alice money = %d, want 2000", got)
	}
}

func TestAcceptCannotPayRequestFromOffer(t *testing.T) {
	svc, _ := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	mustJoin(t, svc, "bob", Banana)
	fund(t, svc, "alice", 1000)

	// Same kind on both sides: bob holds nothing, the incoming 1000 must not
	// count toward the 600 he owes.
	if _, err := svc.ProposeTrade(ctx, "alice", "bob",
		Stake{Kind: Money, Quantity: 600}, Stake{Kind: Money, Quantity: 1000}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := svc.AcceptTrade(ctx, "bob", 0); !errors.Is(err, ErrInsufficientRequest) {
		t.Fatalf("accept: got %v, want ErrInsufficientRequest", err)
	}
}

func TestProfile(t *testing.T) {
	svc, clock := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)

	view, err := svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if view.HarvestReadyIn != 7200 || view.HarvestPerCycle != 1000 {
		t.Fatalf("unexpected profile: %+v", view)
	}

	fund(t, svc, "alice", 5000)
	if _, err := svc.Upgrade(ctx, "alice", UpgradeFarm); err != nil {
		t.Fatalf("unlock farm: %v", err)
	}
	*clock = clock.Add(HarvestCooldown)
	if _, err := svc.Harvest(ctx, "alice"); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if _, err := svc.Produce(ctx, "alice", "juice", []Kind{Apple}, 5); err != nil {
		t.Fatalf("produce: %v", err)
	}

	view, err = svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if view.HarvestReadyIn != 7200 {
		t.Fatalf("ready in %d, want 7200", view.HarvestReadyIn)
	}
	if len(view.PendingProduce) != 1 || view.PendingProduce[0].Recipe != "juice" {
		t.Fatalf("unexpected pending produce: %+v", view.PendingProduce)
	}
	if len(view.Recipes) != 1 || view.Recipes[0] != "juice" {
		t.Fatalf("unexpected recipes: %v", view.Recipes)
	}

	if _, err := svc.Profile(ctx, "ghost"); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("unknown player: got %v, want ErrNotAPlayer", err)
	}
}

func TestLeaderboard(t *testing.T) {
	svc, clock := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	*clock = clock.Add(time.Minute)
	mustJoin(t, svc, "bob", Banana)
	*clock = clock.Add(time.Minute)
	mustJoin(t, svc, "carol", Grape)

	fund(t, svc, "alice", 100)
	fund(t, svc, "bob", 300)
	fund(t, svc, "carol", 100)

	rows, err := svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].ID != "bob" || rows[0].Rank != 1 || rows[0].Money != 300 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	// Ties break toward the earlier joiner.
	if rows[1].ID != "alice" || rows[2].ID != "carol" {
		t.Fatalf("tie order wrong: %+v", rows)
	}

	// The cached snapshot serves until the next recompute, so a balance change
	// is not visible immediately.
	fund(t, svc, "carol", 9000)
	rows, err = svc.Leaderboard(ctx, 1)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "bob" {
		t.Fatalf("expected cached top row, got %+v", rows)
	}

	if _, err := svc.SnapshotLeaderboard(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	rows, err = svc.Leaderboard(ctx, 1)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if rows[0].ID != "carol" || rows[0].Money != 9000 {
		t.Fatalf("snapshot not refreshed: %+v", rows[0])
	}
}

func TestConcurrentJoinsKeepIndexComplete(t *testing.T) {
	svc := NewService(&slowStore{inner: store.NewMemory(), delay: 2 * time.Millisecond}, testLogger())
	ctx := context.Background()

	const players = 20
	var wg sync.WaitGroup
	errs := make(chan error, players)
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Join(ctx, fmt.Sprintf("player-%02d", i), Apple); err != nil {
				errs <- fmt.Errorf("player-%02d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("join: %v", err)
	}

	index, err := svc.loadIndex(ctx)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if len(index) != players {
		t.Fatalf("index has %d players after %d successful joins", len(index), players)
	}
}

func TestConcurrentRemovalsPruneIndex(t *testing.T) {
	svc := NewService(&slowStore{inner: store.NewMemory(), delay: 2 * time.Millisecond}, testLogger())
	ctx := context.Background()

	const players = 10
	for i := 0; i < players; i++ {
		mustJoin(t, svc, fmt.Sprintf("player-%02d", i), Apple)
	}

	// Remove the odd ids concurrently; the even half must survive intact.
	var wg sync.WaitGroup
	for i := 1; i < players; i += 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.RemovePlayer(ctx, fmt.Sprintf("player-%02d", i)); err != nil {
				t.Errorf("remove player-%02d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	index, err := svc.loadIndex(ctx)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if len(index) != players/2 {
		t.Fatalf("index has %d players, want %d", len(index), players/2)
	}
	for _, id := range index {
		if (id[len(id)-1]-'0')%2 == 1 {
			t.Fatalf("removed player %s still in index", id)
		}
	}
}

func TestLeaderboardSnapshotServesAcrossRestart(t *testing.T) {
	records := store.NewMemory()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(records, testLogger())
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	mustJoin(t, svc, "alice", Apple)
	fund(t, svc, "alice", 100)
	if _, err := svc.SnapshotLeaderboard(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// The live balance moves after the snapshot was taken.
	fund(t, svc, "alice", 999)

	// A fresh service an hour later serves the persisted snapshot rather than
	// recomputing from the player records.
	now = now.Add(time.Hour)
	restarted := NewService(records, testLogger())
	restarted.now = func() time.Time { return now }
	rows, err := restarted.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 || rows[0].Money != 100 {
		t.Fatalf("expected persisted snapshot row with money 100, got %+v", rows)
	}

	// A day past the snapshot the board is stale and recomputed.
	now = now.Add(24 * time.Hour)
	rows, err = restarted.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 || rows[0].Money != 999 {
		t.Fatalf("expected recomputed row with money 999, got %+v", rows)
	}
}

func TestRemovePlayerUnwindsTrades(t *testing.T) {
	svc, _ := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	mustJoin(t, svc, "bob", Banana)
	mustJoin(t, svc, "carol", Grape)
	fund(t, svc, "alice", 1000)
	fund(t, svc, "bob", 1000)

	// alice -> bob (bob inbound), bob -> carol (bob outbound).
	if _, err := svc.ProposeTrade(ctx, "alice", "bob",
		Stake{Kind: Money, Quantity: 10}, Stake{Kind: Money, Quantity: 400}); err != nil {
		t.Fatalf("propose alice->bob: %v", err)
	}
	if _, err := svc.ProposeTrade(ctx, "bob", "carol",
		Stake{Kind: Money, Quantity: 10}, Stake{Kind: Money, Quantity: 300}); err != nil {
		t.Fatalf("propose bob->carol: %v", err)
	}

	removed, err := svc.RemovePlayer(ctx, "bob")
	if err != nil || !removed {
		t.Fatalf("remove: removed=%t err=%v", removed, err)
	}

	// Alice's escrow came back and her slot is free.
	if got := balance(t, svc, "alice", Money); got != 1000 {
		t.Fatalf("alice money = %d, want 1000", got)
	}
	alice, _ := svc.loadPlayer(ctx, "alice")
	if alice.OutTrades[0] != nil {
		t.Fatal("alice outbound slot not cleared")
	}
	// Carol's inbound slot is cleared; bob's escrow dies with his record.
	carol, _ := svc.loadPlayer(ctx, "carol")
	if carol.InTrades[0] != nil {
		t.Fatal("carol inbound slot not cleared")
	}

	if _, err := svc.Profile(ctx, "bob"); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("removed player profile: got %v, want ErrNotAPlayer", err)
	}
	index, err := svc.loadIndex(ctx)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	for _, id := range index {
		if id == "bob" {
			t.Fatal("bob still in index")
		}
	}

	// Removing twice is a no-op, not an error.
	removed, err = svc.RemovePlayer(ctx, "bob")
	if err != nil || removed {
		t.Fatalf("second remove: removed=%t err=%v", removed, err)
	}
}

func TestRemovePlayerDropsTickets(t *testing.T) {
	svc, clock := newTestEngine(t)
	ctx := context.Background()
	mustJoin(t, svc, "alice", Apple)
	fund(t, svc, "alice", 5000)
	if _, err := svc.Upgrade(ctx, "alice", UpgradeFarm); err != nil {
		t.Fatalf("unlock farm: %v", err)
	}
	*clock = clock.Add(HarvestCooldown)
	if _, err := svc.Harvest(ctx, "alice"); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if _, err := svc.Produce(ctx, "alice", "juice", []Kind{Apple}, 10); err != nil {
		t.Fatalf("produce: %v", err)
	}

	if _, err := svc.RemovePlayer(ctx, "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	*clock = clock.Add(time.Hour)
	n, err := svc.SettleDue(ctx)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if n != 0 {
		t.Fatalf("settled %d tickets for a removed player", n)
	}
}

func TestMessageTexts(t *testing.T) {
	if got := Message(ErrNotAPlayer); got != "you have not joined the game yet" {
		t.Fatalf("unexpected message: %q", got)
	}
	wrapped := fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
	if got := Message(wrapped); got != "the game data store is unavailable, try again" {
		t.Fatalf("wrapped error message: %q", got)
	}
	if got := Message(errors.New("boom")); got != "something went wrong" {
		t.Fatalf("fallback message: %q", got)
	}
}
