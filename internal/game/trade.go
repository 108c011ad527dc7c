package game

import (
	"time"

	"github.com/google/uuid"
)

// TradeSummary is the value stored in a player's trade slot. Both sides keep
// an identical copy; the trade id ties them together.
type TradeSummary struct {
	ID            string `json:"id"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	SenderSlot    int    `json:"sender_slot"`
	RecipientSlot int    `json:"recipient_slot"`
	Request       Stake  `json:"request"`
	Offer         Stake  `json:"offer"`
	CreatedAt     int64  `json:"created_at"`
}

// NewTrade builds the summary for a freshly proposed trade. The offer is
// escrowed from the sender at the same moment this is slotted.
func NewTrade(sender, recipient string, senderSlot, recipientSlot int, request, offer Stake, now time.Time) TradeSummary {
	return TradeSummary{
		ID:            uuid.NewString(),
		Sender:        sender,
		Recipient:     recipient,
		SenderSlot:    senderSlot,
		RecipientSlot: recipientSlot,
		Request:       request,
		Offer:         offer,
		CreatedAt:     now.Unix(),
	}
}

const ticketRecordVersion = 1

// ProductionTicket is the durable record of an in-flight produce call: inputs
// already debited, payout owed once ReadyAt passes. Tickets survive restarts;
// the worker settles them, late ones immediately on startup.
type ProductionTicket struct {
	Version   int     `json:"version"`
	ID        string  `json:"id"`
	PlayerID  string  `json:"player_id"`
	Recipe    string  `json:"recipe"`
	Inputs    []Stake `json:"inputs"`
	Quantity  int64   `json:"quantity"`
	Payout    int64   `json:"payout"`
	CreatedAt int64   `json:"created_at"`
	ReadyAt   int64   `json:"ready_at"`
}

func NewProductionTicket(playerID string, recipe Recipe, inputs []Stake, quantity int64, now time.Time) ProductionTicket {
	return ProductionTicket{
		Version:   ticketRecordVersion,
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		Recipe:    recipe.Name,
		Inputs:    inputs,
		Quantity:  quantity,
		Payout:    recipe.SellPrice * quantity,
		CreatedAt: now.Unix(),
		ReadyAt:   now.Add(recipe.RefineTime).Unix(),
	}
}
