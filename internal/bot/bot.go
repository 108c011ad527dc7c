package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/browningluke/FruitTycoon/internal/config"
	"github.com/browningluke/FruitTycoon/internal/game"

	"github.com/bwmarrin/discordgo"
)

// Bot maps prefix commands from Discord messages onto engine calls. It parses
// and renders; every rule lives in the engine.
type Bot struct {
	log     *slog.Logger
	game    *game.Service
	prefix  string
	session *discordgo.Session
}

func New(cfg config.BotConfig, logger *slog.Logger, gameSvc *game.Service) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	b := &Bot{
		log:     logger,
		game:    gameSvc,
		prefix:  cfg.CommandPrefix,
		session: session,
	}
	session.AddHandler(b.onMessage)
	return b, nil
}

// Run opens the gateway connection and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	b.log.Info("bot connected", "prefix", b.prefix)
	<-ctx.Done()
	return b.session.Close()
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, b.prefix) {
		return
	}
	args := strings.Fields(strings.TrimPrefix(m.Content, b.prefix))
	if len(args) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reply := b.dispatch(ctx, m, args[0], args[1:])
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.log.Warn("reply failed", "channel", m.ChannelID, "err", err)
	}
}

func (b *Bot) dispatch(ctx context.Context, m *discordgo.MessageCreate, cmd string, args []string) string {
	playerID := m.Author.ID
	switch cmd {
	case "join":
		if len(args) != 1 {
			return "usage: " + b.prefix + "join <apple|banana|grape>"
		}
		player, err := b.game.Join(ctx, playerID, game.Kind(args[0]))
		if err != nil {
			return game.Message(err)
		}
		return fmt.Sprintf("welcome to the orchard, %s farmer! harvest with %sharvest", player.Fruit, b.prefix)

	case "harvest":
		out, err := b.game.Harvest(ctx, playerID)
		if err != nil {
			return game.Message(err)
		}
		if !out.Ready {
			return fmt.Sprintf("your trees need %s more", formatDuration(out.RemainingSeconds))
		}
		return fmt.Sprintf("you harvested %d %ss!", out.Yield, out.Fruit)

	case "profile":
		out, err := b.game.Profile(ctx, playerID)
		if err != nil {
			return game.Message(err)
		}
		return renderProfile(out)

	case "sell":
		if len(args) != 2 {
			return "usage: " + b.prefix + "sell <fruit> <quantity>"
		}
		qty, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "quantity must be a number"
		}
		out, serr := b.game.Sell(ctx, playerID, game.Kind(args[0]), qty)
		if serr != nil {
			return game.Message(serr)
		}
		return fmt.Sprintf("sold %d %ss for %d money (balance %d)", out.Quantity, out.Kind, out.Proceeds, out.Money)

	case "produce":
		if len(args) < 2 {
			return "usage: " + b.prefix + "produce <recipe> <fruit[,fruit,fruit]> [quantity]"
		}
		var selections []game.Kind
		for _, f := range strings.Split(args[1], ",") {
			selections = append(selections, game.Kind(strings.TrimSpace(f)))
		}
		var qty int64
		if len(args) >= 3 {
			n, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return "quantity must be a number"
			}
			qty = n
		}
		ticket, err := b.game.Produce(ctx, playerID, args[0], selections, qty)
		if err != nil {
			return game.Message(err)
		}
		ready := time.Until(time.Unix(ticket.ReadyAt, 0)).Round(time.Second)
		return fmt.Sprintf("refining %d %s, ready in %s (pays %d money)", ticket.Quantity, ticket.Recipe, ready, ticket.Payout)

	case "upgrade":
		if len(args) != 1 {
			return "usage: " + b.prefix + "upgrade <size|multiplier|farm>"
		}
		out, err := b.game.Upgrade(ctx, playerID, game.UpgradeKind(args[0]))
		if err != nil {
			return game.Message(err)
		}
		if out.Stat == game.UpgradeFarm {
			return fmt.Sprintf("farm is now level %d, unlocked %s (balance %d)", out.Level, out.Recipe, out.Money)
		}
		return fmt.Sprintf("%s is now level %d (balance %d)", out.Stat, out.Level, out.Money)

	case "trade":
		if len(m.Mentions) != 1 || len(args) != 3 {
			return "usage: " + b.prefix + "trade @player <kind:qty wanted> <kind:qty offered>"
		}
		request, err := parseStake(args[1])
		if err != nil {
			return err.Error()
		}
		offer, err := parseStake(args[2])
		if err != nil {
			return err.Error()
		}
		trade, terr := b.game.ProposeTrade(ctx, playerID, m.Mentions[0].ID, request, offer)
		if terr != nil {
			return game.Message(terr)
		}
		return fmt.Sprintf("trade sent: you offer %d %s for %d %s (their slot %d)",
			trade.Offer.Quantity, trade.Offer.Kind, trade.Request.Quantity, trade.Request.Kind, trade.RecipientSlot+1)

	case "accept":
		slot, ok := parseSlot(args)
		if !ok {
			return "usage: " + b.prefix + "accept <slot>"
		}
		out, err := b.game.AcceptTrade(ctx, playerID, slot)
		if err != nil {
			return game.Message(err)
		}
		return fmt.Sprintf("trade complete: you received %d %s and paid %d %s",
			out.Trade.Offer.Quantity, out.Trade.Offer.Kind, out.Trade.Request.Quantity, out.Trade.Request.Kind)

	case "decline":
		slot, ok := parseSlot(args)
		if !ok {
			return "usage: " + b.prefix + "decline <slot>"
		}
		out, err := b.game.DeclineTrade(ctx, playerID, slot)
		if err != nil {
			return game.Message(err)
		}
		return fmt.Sprintf("trade declined, %d %s returned to the sender", out.Refunded.Quantity, out.Refunded.Kind)

	case "leaderboard":
		rows, err := b.game.Leaderboard(ctx, 10)
		if err != nil {
			return game.Message(err)
		}
		if len(rows) == 0 {
			return "nobody has joined yet"
		}
		var sb strings.Builder
		sb.WriteString("richest farmers:\n")
		for _, r := range rows {
			fmt.Fprintf(&sb, "%d. <@%s> with %d money\n", r.Rank, r.ID, r.Money)
		}
		return sb.String()

	case "help":
		return "commands: join, harvest, profile, sell, produce, upgrade, trade, accept, decline, leaderboard"
	}
	return ""
}

// parseStake reads "kind:qty", e.g. "apple:500" or "money:2000".
func parseStake(s string) (game.Stake, error) {
	kind, qtyText, ok := strings.Cut(s, ":")
	if !ok {
		return game.Stake{}, fmt.Errorf("expected kind:quantity, got %q", s)
	}
	qty, err := strconv.ParseInt(qtyText, 10, 64)
	if err != nil {
		return game.Stake{}, fmt.Errorf("quantity in %q must be a number", s)
	}
	return game.Stake{Kind: game.Kind(strings.ToLower(kind)), Quantity: qty}, nil
}

// parseSlot converts the 1-based slot players type into the engine's 0-based
// index.
func parseSlot(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, false
	}
	return n - 1, true
}

func renderProfile(p game.ProfileView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s farm**: %d money, farm level %d\n", p.Fruit, p.Money, p.FarmLevel)
	fmt.Fprintf(&sb, "inventory: %d apples, %d bananas, %d grapes\n",
		p.Inventory[game.Apple], p.Inventory[game.Banana], p.Inventory[game.Grape])
	fmt.Fprintf(&sb, "upgrades: size %d, multiplier %d (%d fruit per harvest)\n",
		p.Upgrades.Size, p.Upgrades.Multiplier, p.HarvestPerCycle)
	if p.HarvestReadyIn > 0 {
		fmt.Fprintf(&sb, "next harvest in %s\n", formatDuration(p.HarvestReadyIn))
	} else {
		sb.WriteString("harvest is ready!\n")
	}
	for i, t := range p.InTrades {
		if t != nil {
			fmt.Fprintf(&sb, "incoming trade %d: %d %s for your %d %s\n",
				i+1, t.Offer.Quantity, t.Offer.Kind, t.Request.Quantity, t.Request.Kind)
		}
	}
	for _, ticket := range p.PendingProduce {
		fmt.Fprintf(&sb, "refining %d %s, pays %d\n", ticket.Quantity, ticket.Recipe, ticket.Payout)
	}
	return sb.String()
}

func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%d hours %d minutes", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	return fmt.Sprintf("%d seconds", seconds)
}
