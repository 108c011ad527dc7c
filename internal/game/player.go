package game

import "time"

const playerRecordVersion = 1

// Stake is one side of a trade: a kind and a positive quantity. Money is a
// valid stake kind alongside the fruits.
type Stake struct {
	Kind     Kind  `json:"kind"`
	Quantity int64 `json:"quantity"`
}

// Upgrades holds the two purchasable yield levels. Both start at 1.
type Upgrades struct {
	Size       int `json:"size"`
	Multiplier int `json:"multiplier"`
}

// Player is the durable per-player record. Trade slots hold value summaries,
// never references into another player's record; nil marks an empty slot.
type Player struct {
	Version     int                          `json:"version"`
	ID          string                       `json:"id"`
	Fruit       Kind                         `json:"fruit"`
	Money       int64                        `json:"money"`
	Inventory   map[Kind]int64               `json:"inventory"`
	LastHarvest int64                        `json:"last_harvest"`
	Upgrades    Upgrades                     `json:"upgrades"`
	FarmLevel   int                          `json:"farm_level"`
	Recipes     []string                     `json:"recipes,omitempty"`
	InTrades    [MaxTradeSlots]*TradeSummary `json:"in_trades"`
	OutTrades   [MaxTradeSlots]*TradeSummary `json:"out_trades"`
	JoinedAt    int64                        `json:"joined_at"`
}

func NewPlayer(id string, fruit Kind, now time.Time) *Player {
	inv := make(map[Kind]int64, len(Fruits()))
	for _, f := range Fruits() {
		inv[f] = 0
	}
	return &Player{
		Version:     playerRecordVersion,
		ID:          id,
		Fruit:       fruit,
		Inventory:   inv,
		LastHarvest: now.Unix(),
		Upgrades:    Upgrades{Size: 1, Multiplier: 1},
		JoinedAt:    now.Unix(),
	}
}

// BalanceOf returns the player's holding of a stake kind.
func (p *Player) BalanceOf(kind Kind) int64 {
	if kind == Money {
		return p.Money
	}
	return p.Inventory[kind]
}

// CanCover reports whether the player holds at least the stake's quantity.
func (p *Player) CanCover(s Stake) bool {
	return p.BalanceOf(s.Kind) >= s.Quantity
}

// Credit adds quantity of kind to the player's holdings.
func (p *Player) Credit(kind Kind, quantity int64) {
	if kind == Money {
		p.Money += quantity
		return
	}
	if p.Inventory == nil {
		p.Inventory = make(map[Kind]int64)
	}
	p.Inventory[kind] += quantity
}

// Debit removes quantity of kind, refusing to let any balance go negative.
func (p *Player) Debit(kind Kind, quantity int64) error {
	if kind == Money {
		if p.Money < quantity {
			return ErrInsufficientFunds
		}
		p.Money -= quantity
		return nil
	}
	if p.Inventory[kind] < quantity {
		return ErrInsufficientInventory
	}
	p.Inventory[kind] -= quantity
	return nil
}

// FreeInSlot scans inbound slots in index order and returns the first empty
// one. Deterministic: the lowest free index always wins.
func (p *Player) FreeInSlot() (int, bool) {
	for i, t := range p.InTrades {
		if t == nil {
			return i, true
		}
	}
	return 0, false
}

func (p *Player) FreeOutSlot() (int, bool) {
	for i, t := range p.OutTrades {
		if t == nil {
			return i, true
		}
	}
	return 0, false
}

// Clone returns a deep copy, used to roll back a partially persisted
// two-player operation.
func (p *Player) Clone() *Player {
	out := *p
	out.Inventory = make(map[Kind]int64, len(p.Inventory))
	for k, v := range p.Inventory {
		out.Inventory[k] = v
	}
	out.Recipes = append([]string(nil), p.Recipes...)
	for i, t := range p.InTrades {
		if t != nil {
			c := *t
			out.InTrades[i] = &c
		}
	}
	for i, t := range p.OutTrades {
		if t != nil {
			c := *t
			out.OutTrades[i] = &c
		}
	}
	return &out
}
