package game

import "errors"

var (
	ErrNotAPlayer            = errors.New("not a player")
	ErrAlreadyJoined         = errors.New("already joined")
	ErrInvalidFruit          = errors.New("invalid fruit type")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInsufficientRequest   = errors.New("cannot cover requested amount")
	ErrInsufficientOffer     = errors.New("cannot cover offered amount")
	ErrSelfTrade             = errors.New("cannot trade with yourself")
	ErrNoFreeOutboundSlot    = errors.New("no free outbound trade slot")
	ErrNoFreeInboundSlot     = errors.New("no free inbound trade slot")
	ErrInvalidSlot           = errors.New("invalid trade slot")
	ErrEmptySlot             = errors.New("trade slot is empty")
	ErrAccessDenied          = errors.New("recipe locked")
	ErrMaxLevelReached       = errors.New("already at max level")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrCorruptRecord         = errors.New("corrupt record")
)

// messages maps every error kind to the short, stable text shown to players.
// Internal error detail never leaves the engine boundary.
var messages = []struct {
	err  error
	text string
}{
	{ErrNotAPlayer, "you have not joined the game yet"},
	{ErrAlreadyJoined, "you already have a farm"},
	{ErrInvalidFruit, "that is not a fruit you can grow"},
	{ErrInsufficientFunds, "you do not have enough money"},
	{ErrInsufficientInventory, "you do not have enough fruit"},
	{ErrInsufficientRequest, "you cannot cover the requested amount"},
	{ErrInsufficientOffer, "you cannot cover the offered amount"},
	{ErrSelfTrade, "you cannot trade with yourself"},
	{ErrNoFreeOutboundSlot, "all of your outgoing trade slots are full"},
	{ErrNoFreeInboundSlot, "their incoming trade slots are full"},
	{ErrInvalidSlot, "that trade slot does not exist"},
	{ErrEmptySlot, "there is no trade in that slot"},
	{ErrAccessDenied, "that is not unlocked for you yet"},
	{ErrMaxLevelReached, "that is already at its maximum level"},
	{ErrStoreUnavailable, "the game data store is unavailable, try again"},
	{ErrCorruptRecord, "your save data could not be read"},
}

// Message returns the user-facing text for an engine error, or a generic
// fallback for anything unrecognized.
func Message(err error) string {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.text
		}
	}
	return "something went wrong"
}
