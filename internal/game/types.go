package game

// HarvestResult reports either a completed harvest or the cooldown remaining.
type HarvestResult struct {
	Ready            bool  `json:"ready"`
	RemainingSeconds int64 `json:"remaining_seconds,omitempty"`
	Yield            int64 `json:"yield,omitempty"`
	Fruit            Kind  `json:"fruit,omitempty"`
}

type UpgradeResult struct {
	Stat     UpgradeKind `json:"stat"`
	Level    int         `json:"level"`
	Cost     int64       `json:"cost"`
	NextCost int64       `json:"next_cost,omitempty"`
	// Value is the new effective size yield or multiplier; unused for farm.
	Value float64 `json:"value,omitempty"`
	// Recipe names the production good unlocked by a farm upgrade.
	Recipe string `json:"recipe,omitempty"`
	Money  int64  `json:"money"`
}

type SaleResult struct {
	Kind      Kind  `json:"kind"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
	Proceeds  int64 `json:"proceeds"`
	Money     int64 `json:"money"`
}

// SettlementResult is the outcome of accepting a trade.
type SettlementResult struct {
	Trade          TradeSummary `json:"trade"`
	RecipientMoney int64        `json:"recipient_money"`
}

// RefundResult is the outcome of declining a trade: the escrowed offer went
// back to the sender untouched.
type RefundResult struct {
	Trade    TradeSummary `json:"trade"`
	Refunded Stake        `json:"refunded"`
}

type ProfileView struct {
	ID              string                       `json:"id"`
	Fruit           Kind                         `json:"fruit"`
	Money           int64                        `json:"money"`
	Inventory       map[Kind]int64               `json:"inventory"`
	LastHarvest     int64                        `json:"last_harvest"`
	HarvestReadyIn  int64                        `json:"harvest_ready_in_seconds"`
	Upgrades        Upgrades                     `json:"upgrades"`
	HarvestPerCycle int64                        `json:"harvest_per_cycle"`
	FarmLevel       int                          `json:"farm_level"`
	Recipes         []string                     `json:"recipes,omitempty"`
	InTrades        [MaxTradeSlots]*TradeSummary `json:"in_trades"`
	OutTrades       [MaxTradeSlots]*TradeSummary `json:"out_trades"`
	PendingProduce  []ProductionTicket           `json:"pending_produce,omitempty"`
	JoinedAt        int64                        `json:"joined_at"`
}

type LeaderboardRow struct {
	Rank  int    `json:"rank"`
	ID    string `json:"id"`
	Money int64  `json:"money"`
}
