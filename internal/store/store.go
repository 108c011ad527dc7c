package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists under the key.
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary of the engine: opaque records keyed by
// string. The engine owns serialization; backends never inspect values.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

const (
	playerKeyPrefix = "player:"
	ticketKeyPrefix = "ticket:"

	IndexKey       = "index:players"
	LeaderboardKey = "leaderboard:latest"
)

func PlayerKey(id string) string {
	return playerKeyPrefix + id
}

func TicketKey(id string) string {
	return ticketKeyPrefix + id
}

// TicketPrefix is the scan prefix for all production tickets.
func TicketPrefix() string {
	return ticketKeyPrefix
}
