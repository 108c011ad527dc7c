package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	cl "github.com/browningluke/FruitTycoon/internal/cli"
	"github.com/browningluke/FruitTycoon/internal/config"
	"github.com/browningluke/FruitTycoon/internal/game"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "tycoon",
		Short:        "FruitTycoon terminal game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newJoinCmd(&apiBase),
		newLeaveCmd(),
		newProfileCmd(&apiBase),
		newHarvestCmd(&apiBase),
		newSellCmd(&apiBase),
		newProduceCmd(&apiBase),
		newUpgradeCmd(&apiBase),
		newTradeCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newRecipesCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func currentPlayer() (string, error) {
	session, err := cl.LoadSession()
	if err != nil {
		return "", err
	}
	return session.PlayerID, nil
}

func newJoinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join <player-id> <apple|banana|grape>",
		Short: "Join the game and claim a fruit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			player, err := newClient(apiBase).Join(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{PlayerID: player.ID}); err != nil {
				return err
			}
			printJoined(player)
			return nil
		},
	}
}

func newLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Forget the saved player session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.ClearSession()
		},
	}
}

func newProfileCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show your farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentPlayer()
			if err != nil {
				return err
			}
			out, err := newClient(apiBase).Profile(cmd.Context(), id)
			if err != nil {
				return err
			}
			printProfile(out)
			return nil
		},
	}
}

func newHarvestCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Harvest your fruit",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentPlayer()
			if err != nil {
				return err
			}
			out, err := newClient(apiBase).Harvest(cmd.Context(), id)
			if err != nil {
				return err
			}
			printHarvest(out)
			return nil
		},
	}
}

func newSellCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sell <fruit> <quantity>",
		Short: "Sell raw fruit for money",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentPlayer()
			if err != nil {
				return err
			}
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("quantity must be a number")
			}
			out, err := newClient(apiBase).Sell(cmd.Context(), id, args[0], qty)
			if err != nil {
				return err
			}
			printSale(out)
			return nil
		},
	}
}

func newProduceCmd(apiBase *string) *cobra.Command {
	var quantity int64
	cmd := &cobra.Command{
		Use:   "produce <recipe> <fruit[,fruit,fruit]>",
		Short: "Refine fruit into goods",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentPlayer()
			if err != nil {
				return err
			}
			fruits := strings.Split(args[1], ",")
			for i := range fruits {
				fruits[i] = strings.TrimSpace(fruits[i])
			}
			out, err := newClient(apiBase).Produce(cmd.Context(), id, args[0], fruits, quantity)
			if err != nil {
				return err
			}
			printTicket(out)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&quantity, "quantity", "q", 0, "units to produce (0 = as many as possible)")
	return cmd
}

func newUpgradeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <size|multiplier|farm>",
		Short: "Buy a permanent upgrade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentPlayer()
			if err != nil {
				return err
			}
			out, err := newClient(apiBase).Upgrade(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			printUpgrade(out)
			return nil
		},
	}
}

func newTradeCmd(apiBase *string) *cobra.Command {
	trade := &cobra.Command{
		Use:   "trade",
		Short: "Propose, accept or decline trades",
	}
	trade.AddCommand(
		&cobra.Command{
			Use:   "propose <recipient> <kind:qty wanted> <kind:qty offered>",
			Short: "Offer a trade to another player",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := currentPlayer()
				if err != nil {
					return err
				}
				request, err := parseStakeArg(args[1])
				if err != nil {
					return err
				}
				offer, err := parseStakeArg(args[2])
				if err != nil {
					return err
				}
				out, err := newClient(apiBase).ProposeTrade(cmd.Context(), id, args[0], request, offer)
				if err != nil {
					return err
				}
				printTradeProposed(out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "accept <slot>",
			Short: "Accept an incoming trade",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := currentPlayer()
				if err != nil {
					return err
				}
				slot, err := parseSlotArg(args[0])
				if err != nil {
					return err
				}
				out, err := newClient(apiBase).AcceptTrade(cmd.Context(), id, slot)
				if err != nil {
					return err
				}
				printTradeAccepted(out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "decline <slot>",
			Short: "Decline an incoming trade",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := currentPlayer()
				if err != nil {
					return err
				}
				slot, err := parseSlotArg(args[0])
				if err != nil {
					return err
				}
				out, err := newClient(apiBase).DeclineTrade(cmd.Context(), id, slot)
				if err != nil {
					return err
				}
				printTradeDeclined(out)
				return nil
			},
		},
	)
	return trade
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the richest farmers",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := newClient(apiBase).Leaderboard(cmd.Context(), topN)
			if err != nil {
				return err
			}
			printLeaderboard(rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topN, "top", "t", 10, "number of rows")
	return cmd
}

func newRecipesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recipes",
		Short: "List production recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			recipes, err := newClient(apiBase).Recipes(cmd.Context())
			if err != nil {
				return err
			}
			printRecipes(recipes)
			return nil
		},
	}
}

func parseStakeArg(s string) (game.Stake, error) {
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

func parseSlotArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("slot must be a positive number")
	}
	return n - 1, nil
}
