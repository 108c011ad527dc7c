package main

import (
	"fmt"
	"time"

	"github.com/browningluke/FruitTycoon/internal/game"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printJoined(p *game.Player) {
	success.Printf("Welcome to FruitTycoon, %s!\n", p.ID)
	fmt.Printf("You now run a %s farm. Harvest with: tycoon harvest\n", p.Fruit)
}

func printProfile(p game.ProfileView) {
	accent.Printf("\n== %s's farm ==\n", p.ID)
	fmt.Printf("Fruit:        %s\n", p.Fruit)
	fmt.Printf("Money:        %d\n", p.Money)
	fmt.Printf("Farm level:   %d\n", p.FarmLevel)
	fmt.Printf("Size lvl:     %d\n", p.Upgrades.Size)
	fmt.Printf("Mult lvl:     %d\n", p.Upgrades.Multiplier)
	fmt.Printf("Per harvest:  %d %s\n", p.HarvestPerCycle, p.Fruit)
	if p.HarvestReadyIn > 0 {
		warn.Printf("Next harvest: in %s\n", formatSeconds(p.HarvestReadyIn))
	} else {
		success.Println("Next harvest: ready now")
	}

	fmt.Println()
	accent.Println("Inventory")
	for _, k := range game.Fruits() {
		fmt.Printf("  %-8s %d\n", k, p.Inventory[k])
	}

	if len(p.Recipes) > 0 {
		fmt.Println()
		accent.Println("Known recipes")
		for _, r := range p.Recipes {
			fmt.Printf("  %s\n", r)
		}
	}

	if len(p.PendingProduce) > 0 {
		fmt.Println()
		accent.Println("Producing")
		now := time.Now().Unix()
		for _, t := range p.PendingProduce {
			remaining := t.ReadyAt - now
			if remaining < 0 {
				remaining = 0
			}
			fmt.Printf("  %dx %-14s ready in %s (pays %d)\n",
				t.Quantity, t.Recipe, formatSeconds(remaining), t.Payout)
		}
	}

	printTradeSlots("Incoming trades", p.InTrades, true)
	printTradeSlots("Outgoing trades", p.OutTrades, false)
	fmt.Println()
}

func printTradeSlots(title string, slots [game.MaxTradeSlots]*game.TradeSummary, incoming bool) {
	fmt.Println()
	accent.Println(title)
	empty := true
	for i, t := range slots {
		if t == nil {
			continue
		}
		empty = false
		other := t.Sender
		if !incoming {
			other = t.Recipient
		}
		fmt.Printf("  [%d] %-16s wants %d %s for %d %s\n",
			i+1, other, t.Request.Quantity, t.Request.Kind, t.Offer.Quantity, t.Offer.Kind)
	}
	if empty {
		neutral.Println("  (none)")
	}
}

func printHarvest(h game.HarvestResult) {
	if !h.Ready {
		warn.Printf("Your %s trees are still growing. Try again in %s.\n",
			h.Fruit, formatSeconds(h.RemainingSeconds))
		return
	}
	success.Printf("Harvested %d %s!\n", h.Yield, h.Fruit)
}

func printSale(s game.SaleResult) {
	success.Printf("Sold %d %s at %d each for %d money.\n", s.Quantity, s.Kind, s.UnitPrice, s.Proceeds)
	fmt.Printf("Balance: %d\n", s.Money)
}

func printTicket(t game.ProductionTicket) {
	remaining := t.ReadyAt - time.Now().Unix()
	if remaining < 0 {
		remaining = 0
	}
	success.Printf("Started producing %dx %s.\n", t.Quantity, t.Recipe)
	fmt.Printf("Ready in %s, pays %d money on completion.\n", formatSeconds(remaining), t.Payout)
}

func printUpgrade(u game.UpgradeResult) {
	switch u.Stat {
	case game.UpgradeFarm:
		success.Printf("Farm upgraded to level %d for %d money!\n", u.Level, u.Cost)
		if u.Recipe != "" {
			fmt.Printf("New recipe unlocked: %s\n", u.Recipe)
		}
	case game.UpgradeSize:
		success.Printf("Size upgraded to level %d for %d money.\n", u.Level, u.Cost)
		fmt.Printf("Base yield is now %.0f per harvest.\n", u.Value)
	case game.UpgradeMultiplier:
		success.Printf("Multiplier upgraded to level %d for %d money.\n", u.Level, u.Cost)
		fmt.Printf("Yield multiplier is now x%.1f.\n", u.Value)
	}
	if u.NextCost > 0 {
		fmt.Printf("Next level costs %d.\n", u.NextCost)
	}
	fmt.Printf("Balance: %d\n", u.Money)
}

func printTradeProposed(t game.TradeSummary) {
	success.Printf("Trade sent to %s.\n", t.Recipient)
	fmt.Printf("You want %d %s and escrowed %d %s.\n",
		t.Request.Quantity, t.Request.Kind, t.Offer.Quantity, t.Offer.Kind)
	fmt.Printf("It fills their slot %d; yours is slot %d.\n", t.RecipientSlot+1, t.SenderSlot+1)
}

func printTradeAccepted(s game.SettlementResult) {
	t := s.Trade
	success.Printf("Trade with %s settled.\n", t.Sender)
	fmt.Printf("You paid %d %s and received %d %s.\n",
		t.Request.Quantity, t.Request.Kind, t.Offer.Quantity, t.Offer.Kind)
	fmt.Printf("Balance: %d\n", s.RecipientMoney)
}

func printTradeDeclined(r game.RefundResult) {
	warn.Printf("Declined trade from %s.\n", r.Trade.Sender)
	fmt.Printf("Their %d %s went back to them.\n", r.Refunded.Quantity, r.Refunded.Kind)
}

func printLeaderboard(rows []game.LeaderboardRow) {
	accent.Println("\n== RICHEST FARMERS ==")
	if len(rows) == 0 {
		neutral.Println("No farmers yet.")
		return
	}
	fmt.Printf("%-6s %-24s %12s\n", "RANK", "PLAYER", "MONEY")
	for _, r := range rows {
		fmt.Printf("%-6d %-24s %12d\n", r.Rank, r.ID, r.Money)
	}
	fmt.Println()
}

func printRecipes(recipes []game.Recipe) {
	accent.Println("\n== RECIPES ==")
	fmt.Printf("%-14s %-6s %-8s %-12s %-10s %s\n", "NAME", "LEVEL", "FRUITS", "FRUIT/UNIT", "TIME", "SELLS FOR")
	for _, r := range recipes {
		fmt.Printf("%-14s %-6d %-8d %-12d %-10s %d\n",
			r.Name, r.FarmLevel, r.FruitCount, r.UnitsPerFruit, r.RefineTime, r.SellPrice)
	}
	fmt.Println()
}

func formatSeconds(s int64) string {
	return (time.Duration(s) * time.Second).String()
}
